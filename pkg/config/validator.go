package config

import (
	"errors"
	"fmt"

	"github.com/finagent-io/finagent/pkg/models"
)

// validate checks the merged configuration for internal consistency.
func validate(cfg *Config) error {
	var errs []error

	if cfg.LLM.BaseURL == "" {
		errs = append(errs, NewValidationError("llm", "base_url", "",
			errors.New("must not be empty")))
	}
	if cfg.LLM.Model == "" {
		errs = append(errs, NewValidationError("llm", "model", "",
			errors.New("must not be empty")))
	}
	if cfg.LLM.Timeout <= 0 {
		errs = append(errs, NewValidationError("llm", "timeout", "",
			errors.New("must be positive")))
	}

	if cfg.Debate.Rounds < 2 {
		errs = append(errs, NewValidationError("debate", "rounds", "",
			fmt.Errorf("need at least 2 rounds (opening + closing), got %d", cfg.Debate.Rounds)))
	}
	if cfg.Debate.StanceTimeout <= 0 || cfg.Debate.JudgeTimeout <= 0 {
		errs = append(errs, NewValidationError("debate", "timeouts", "",
			errors.New("stance_timeout and judge_timeout must be positive")))
	}

	if cfg.Session.ContextWindow < 2 {
		errs = append(errs, NewValidationError("session", "context_window", "",
			errors.New("window must include at least the last exchange")))
	}
	if cfg.Session.TTL <= 0 {
		errs = append(errs, NewValidationError("session", "ttl", "",
			errors.New("must be positive")))
	}

	if cfg.Retention.ReportRetentionDays > 0 && cfg.Retention.CleanupInterval <= 0 {
		errs = append(errs, NewValidationError("retention", "cleanup_interval", "",
			errors.New("must be positive when retention is enabled")))
	}

	if len(cfg.ProfileFields) == 0 {
		errs = append(errs, NewValidationError("profile_fields", "registry", "",
			errors.New("at least one profile field is required")))
	}
	seen := make(map[string]bool, len(cfg.ProfileFields))
	for _, f := range cfg.ProfileFields {
		if f.Name == "" {
			errs = append(errs, NewValidationError("profile_field", "(unnamed)", "name",
				errors.New("must not be empty")))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, NewValidationError("profile_field", f.Name, "",
				errors.New("duplicate field name")))
		}
		seen[f.Name] = true
		switch f.Kind {
		case models.FieldKindEnum:
			if len(f.Domain) == 0 {
				errs = append(errs, NewValidationError("profile_field", f.Name, "domain",
					errors.New("enum field needs a non-empty domain")))
			}
		case models.FieldKindString, models.FieldKindNumber, models.FieldKindStringList:
			if len(f.Domain) > 0 {
				errs = append(errs, NewValidationError("profile_field", f.Name, "domain",
					fmt.Errorf("domain is only valid for enum fields, not %q", f.Kind)))
			}
		default:
			errs = append(errs, NewValidationError("profile_field", f.Name, "kind",
				fmt.Errorf("unknown kind %q", f.Kind)))
		}
	}

	return errors.Join(errs...)
}
