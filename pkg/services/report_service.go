package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finagent-io/finagent/pkg/models"
)

// ReportStore is the report store adapter contract consumed by the
// synthesis stage.
type ReportStore interface {
	// Save persists a report and returns its ID.
	Save(ctx context.Context, userID, topic, text string, metadata map[string]any) (string, error)
	// Latest returns the most recent report for a user, or ErrNotFound.
	Latest(ctx context.Context, userID string) (*models.Report, error)
}

// ReportService implements ReportStore on Postgres.
type ReportService struct {
	db *sql.DB
}

// NewReportService creates a new ReportService.
func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{db: db}
}

// Save persists a report.
func (s *ReportService) Save(ctx context.Context, userID, topic, text string, metadata map[string]any) (string, error) {
	if userID == "" {
		return "", NewValidationError("user_id", "required")
	}
	if text == "" {
		return "", NewValidationError("report_text", "required")
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode report metadata: %w", err)
	}

	reportID := uuid.New().String()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(writeCtx, `
		INSERT INTO advisory_reports (id, external_user_key, topic, report_text, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)`,
		reportID, userID, topic, text, metaJSON,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return reportID, nil
}

// PurgeOlderThan deletes reports past the retention horizon and returns
// the number removed. Idempotent and safe to run from multiple replicas.
func (s *ReportService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM advisory_reports WHERE created_at < now() - make_interval(days => $1)`,
		days,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old reports: %w", err)
	}
	return res.RowsAffected()
}

// Latest returns the most recent report for the user.
func (s *ReportService) Latest(ctx context.Context, userID string) (*models.Report, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	var (
		report   models.Report
		metaJSON []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_user_key, topic, report_text, metadata, created_at
		FROM advisory_reports
		WHERE external_user_key = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		userID,
	).Scan(&report.ID, &report.UserID, &report.Topic, &report.Text, &metaJSON, &report.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}

	if err := json.Unmarshal(metaJSON, &report.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode report metadata: %w", err)
	}
	return &report, nil
}
