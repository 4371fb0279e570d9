package fraud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"participation/internal/ledger"
	"participation/internal/participation"
	"participation/internal/platform/metrics"
	id "participation/pkg/domain"
	dErrors "participation/pkg/domain-errors"
	"participation/pkg/platform/sentinel"
	"participation/pkg/requestcontext"
)

// Service runs the event-level fraud heuristics. Scans are read-only and
// advisory; nothing here mutates records or blocks an operation.
type Service struct {
	records participation.Store
	entries ledger.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(records participation.Store, entries ledger.Store, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("participation store is required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	svc := &Service{records: records, entries: entries, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ScanEvent loads the event's full record set and runs every heuristic over
// it. Results may be slightly stale under concurrent writes; that is
// acceptable for an advisory signal.
func (s *Service) ScanEvent(ctx context.Context, eventID id.EventID) (*Report, error) {
	started := time.Now()

	event, err := s.records.Event(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}

	snap := snapshot{event: event}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.registrations, err = s.records.RegistrationsByEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.attendance, err = s.records.AttendanceByEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.certificates, err = s.records.CertificatesByEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.verifications, err = s.entries.ListByAction(gctx, eventID, ledger.ActionCertificateVerified)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event records")
	}

	alerts := scan(snap)

	summary := Summary{TotalAlerts: len(alerts)}
	critical := map[AlertType]bool{}
	for _, alert := range alerts {
		switch alert.Severity {
		case participation.SeverityHigh:
			summary.HighSeverity++
			critical[alert.Type] = true
		case participation.SeverityMedium:
			summary.MediumSeverity++
		case participation.SeverityLow:
			summary.LowSeverity++
		}
		if s.metrics != nil {
			s.metrics.IncFraudAlert(string(alert.Type), string(alert.Severity))
		}
	}
	for _, alertType := range sortedTypes(critical) {
		summary.CriticalTypes = append(summary.CriticalTypes, alertType)
	}

	if s.metrics != nil {
		s.metrics.ObserveFraudScan(time.Since(started))
	}
	s.logger.InfoContext(ctx, "fraud scan complete",
		"event_id", eventID,
		"alerts", summary.TotalAlerts,
		"high", summary.HighSeverity,
		"duration", time.Since(started))

	return &Report{
		EventID:   eventID,
		Alerts:    alerts,
		Summary:   summary,
		ScannedAt: requestcontext.Now(ctx),
	}, nil
}

func sortedTypes(m map[AlertType]bool) []AlertType {
	out := make([]AlertType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
