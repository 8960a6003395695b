// Package services implements the Postgres-backed external stores: user
// profiles, advisory reports, and the investment product catalog.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finagent-io/finagent/pkg/models"
)

// ProfileStore is the profile store adapter contract consumed by the
// interview stage and the orchestrator.
type ProfileStore interface {
	// Get returns the stored profile, or ErrNotFound when the user has
	// no profile yet.
	Get(ctx context.Context, userID string) (*models.Profile, error)
	// Upsert merges delta into the stored profile, last-write-wins per
	// field, creating the row if absent.
	Upsert(ctx context.Context, userID string, delta map[string]any, deferred []string) error
}

// ProfileService implements ProfileStore on Postgres.
type ProfileService struct {
	db *sql.DB
}

// NewProfileService creates a new ProfileService.
func NewProfileService(db *sql.DB) *ProfileService {
	return &ProfileService{db: db}
}

// Get retrieves a profile by external user key.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	var fieldsJSON, deferredJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fields, deferred_fields FROM user_profiles WHERE external_user_key = $1`,
		userID,
	).Scan(&fieldsJSON, &deferredJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile := models.NewProfile(userID)
	if err := json.Unmarshal(fieldsJSON, &profile.Values); err != nil {
		return nil, fmt.Errorf("failed to decode profile fields: %w", err)
	}
	if err := json.Unmarshal(deferredJSON, &profile.Deferred); err != nil {
		return nil, fmt.Errorf("failed to decode deferred fields: %w", err)
	}
	return profile, nil
}

// Upsert merges the delta into the stored profile. The JSONB || operator
// gives last-write-wins per field without read-modify-write races.
func (s *ProfileService) Upsert(ctx context.Context, userID string, delta map[string]any, deferred []string) error {
	if userID == "" {
		return NewValidationError("user_id", "required")
	}
	if len(delta) == 0 && len(deferred) == 0 {
		return nil
	}

	deltaJSON, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("failed to encode profile delta: %w", err)
	}
	if deferred == nil {
		deferred = []string{}
	}
	deferredJSON, err := json.Marshal(deferred)
	if err != nil {
		return fmt.Errorf("failed to encode deferred fields: %w", err)
	}

	// Writes use a bounded background context so an HTTP disconnect does
	// not lose collected fields mid-interview.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(writeCtx, `
		INSERT INTO user_profiles (external_user_key, fields, deferred_fields, updated_at)
		VALUES ($1, $2::jsonb, $3::jsonb, now())
		ON CONFLICT (external_user_key) DO UPDATE SET
			fields          = user_profiles.fields || EXCLUDED.fields,
			deferred_fields = EXCLUDED.deferred_fields,
			updated_at      = now()`,
		userID, deltaJSON, deferredJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
