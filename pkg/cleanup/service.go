// Package cleanup provides the data retention loop for persisted
// advisory reports.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/finagent-io/finagent/pkg/config"
)

// ReportPurger deletes reports past a retention horizon.
type ReportPurger interface {
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// Service periodically enforces the report retention policy. Runs are
// idempotent and safe from multiple replicas.
type Service struct {
	config  config.RetentionConfig
	reports ReportPurger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.RetentionConfig, reports ReportPurger) *Service {
	return &Service{config: cfg, reports: reports}
}

// Start launches the background retention loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	if s.config.ReportRetentionDays <= 0 {
		slog.Info("Cleanup service disabled, report retention not configured")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"report_retention_days", s.config.ReportRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the retention loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.purge(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

func (s *Service) purge(ctx context.Context) {
	count, err := s.reports.PurgeOlderThan(ctx, s.config.ReportRetentionDays)
	if err != nil {
		slog.Error("Retention: report purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged old reports", "count", count)
	}
}
