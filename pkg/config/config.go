// Package config loads and validates FinAgent configuration from YAML
// files plus environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/finagent-io/finagent/pkg/models"
)

// Config is the fully loaded, validated runtime configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Debate    DebateConfig    `yaml:"debate"`
	Session   SessionConfig   `yaml:"session"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Retention RetentionConfig `yaml:"retention"`

	// ProfileFields is the ordered registry of profile fields the
	// interview stage collects. Order matters: questions are asked in
	// registry order.
	ProfileFields []models.FieldSpec `yaml:"profile_fields"`
}

// LLMConfig configures the completion service adapter.
type LLMConfig struct {
	// BaseURL points at an OpenAI-compatible endpoint (OpenRouter, vLLM, ...).
	BaseURL string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
	// Model is the default model identifier.
	Model string `yaml:"model"`
	// Timeout bounds every single completion call.
	Timeout time.Duration `yaml:"timeout"`
}

// DebateConfig parameterizes the debate engine.
type DebateConfig struct {
	// Rounds is the fixed round count R.
	Rounds int `yaml:"rounds"`
	// StanceTimeout bounds one stance argument call (per attempt).
	StanceTimeout time.Duration `yaml:"stance_timeout"`
	// JudgeTimeout bounds one judge verdict call (per attempt).
	JudgeTimeout time.Duration `yaml:"judge_timeout"`
	// SuggestFollowUp controls whether a sealed debate may raise a
	// pending suggestion.
	SuggestFollowUp bool `yaml:"suggest_follow_up"`
}

// SessionConfig controls session lifecycle.
type SessionConfig struct {
	// TTL after which an idle session is expired and archived.
	TTL time.Duration `yaml:"ttl"`
	// SweepInterval is how often expired sessions are collected.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// ContextWindow is the number of trailing turns visible to the
	// guardrail and router classifiers.
	ContextWindow int `yaml:"context_window"`
}

// RetrievalConfig configures the retrieval collaborators.
type RetrievalConfig struct {
	// WeaviateHost/WeaviateScheme locate the semantic search index.
	WeaviateHost   string `yaml:"weaviate_host"`
	WeaviateScheme string `yaml:"weaviate_scheme"`
	// WebSearchURL is the base URL of the web search API; empty disables
	// the web search fallback.
	WebSearchURL    string `yaml:"web_search_url"`
	WebSearchKeyEnv string `yaml:"web_search_key_env"`
	// MarketDataURL is the base URL of the quote API; empty disables
	// live quotes.
	MarketDataURL string `yaml:"market_data_url"`
	// Timeout bounds each retrieval collaborator call.
	Timeout time.Duration `yaml:"timeout"`
}

// RetentionConfig controls persisted data cleanup.
type RetentionConfig struct {
	// ReportRetentionDays is how long advisory reports are kept; 0
	// disables the purge.
	ReportRetentionDays int `yaml:"report_retention_days"`
	// CleanupInterval is how often the retention loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RequiredProfileFields returns the names of fields that must be set (or
// explicitly deferred) before advisory flows may run.
func (c *Config) RequiredProfileFields() []string {
	names := make([]string, 0, len(c.ProfileFields))
	for _, f := range c.ProfileFields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// FieldSpec looks up a profile field by name.
func (c *Config) FieldSpec(name string) (models.FieldSpec, error) {
	for _, f := range c.ProfileFields {
		if f.Name == name {
			return f, nil
		}
	}
	return models.FieldSpec{}, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
}

// Stats summarizes loaded configuration for startup logging.
type Stats struct {
	ProfileFields  int
	RequiredFields int
	DebateRounds   int
}

// Stats returns configuration statistics.
func (c *Config) Stats() Stats {
	return Stats{
		ProfileFields:  len(c.ProfileFields),
		RequiredFields: len(c.RequiredProfileFields()),
		DebateRounds:   c.Debate.Rounds,
	}
}
