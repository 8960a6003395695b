package config

import (
	"time"

	"github.com/finagent-io/finagent/pkg/models"
)

// defaultConfig returns the built-in configuration. User YAML overrides
// these values field by field; an absent profile_fields section keeps the
// built-in registry.
func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			APIKeyEnv: "OPENROUTER_API_KEY",
			Model:     "openai/gpt-4o",
			Timeout:   60 * time.Second,
		},
		Debate: DebateConfig{
			Rounds:          5,
			StanceTimeout:   90 * time.Second,
			JudgeTimeout:    120 * time.Second,
			SuggestFollowUp: true,
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SweepInterval: 5 * time.Minute,
			ContextWindow: 12,
		},
		Retrieval: RetrievalConfig{
			WeaviateScheme: "http",
			Timeout:        15 * time.Second,
		},
		Retention: RetentionConfig{
			ReportRetentionDays: 365,
			CleanupInterval:     12 * time.Hour,
		},
		ProfileFields: defaultProfileFields(),
	}
}

// defaultProfileFields is the built-in profile registry. Enum domains
// mirror the constraints enforced by the profile store schema.
func defaultProfileFields() []models.FieldSpec {
	return []models.FieldSpec{
		{Name: "name_display", Kind: models.FieldKindString, Required: true,
			Prompt: "preferred name or nickname"},
		{Name: "age_range", Kind: models.FieldKindString, Required: true,
			Prompt: "age bracket, e.g. '30s'"},
		{Name: "income_bracket", Kind: models.FieldKindString, Required: true,
			Prompt: "annual income bracket"},
		{Name: "invest_experience_yr", Kind: models.FieldKindNumber, Required: true,
			Prompt: "years of investing experience"},
		{Name: "financial_knowledge_level", Kind: models.FieldKindEnum, Required: true,
			Domain: []string{"beginner", "intermediate", "advanced"},
			Prompt: "self-assessed financial knowledge"},
		{Name: "current_holdings_note", Kind: models.FieldKindString, Required: true,
			Prompt: "free-text note on current holdings"},
		{Name: "preferred_asset_types", Kind: models.FieldKindStringList, Required: true,
			Prompt: "asset classes of interest, e.g. stocks, ETFs, bonds"},
		{Name: "risk_tolerance_level", Kind: models.FieldKindEnum, Required: true,
			Domain: []string{"conservative", "moderately_conservative", "moderate",
				"moderately_aggressive", "aggressive"},
			Prompt: "risk tolerance"},
		{Name: "total_investable_amt", Kind: models.FieldKindNumber, Required: true,
			Prompt: "total investable amount"},
		{Name: "goal_type", Kind: models.FieldKindEnum, Required: true,
			Domain: []string{"retirement", "short_term", "mid_term", "long_term",
				"wealth_building"},
			Prompt: "investment goal horizon"},
		{Name: "goal_description", Kind: models.FieldKindString, Required: true,
			Prompt: "what the user wants to achieve, in their own words"},
		{Name: "preferred_style", Kind: models.FieldKindString, Required: true,
			Prompt: "preferred advisor communication style"},
	}
}
