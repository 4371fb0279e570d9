package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"participation/internal/participation"
	"participation/internal/platform/metrics"
	id "participation/pkg/domain"
	dErrors "participation/pkg/domain-errors"
	"participation/pkg/platform/sentinel"
	"participation/pkg/requestcontext"
)

const recentEntriesLimit = 10

// Service is the change-ledger write and query path. Every retroactive
// correction in the system flows through Record; the query paths merge ledger
// entries with revocation/invalidation facts reconstructed from the record
// store so history is complete even for changes applied outside this engine.
type Service struct {
	store   Store
	records participation.Store
	mirror  Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMirror(mirror Publisher) Option {
	return func(s *Service) { s.mirror = mirror }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, records participation.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("participation store is required")
	}
	svc := &Service{store: store, records: records, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Record appends one audit entry. Callers inside a store transaction pass
// their transactional context so the entry commits with the mutation.
func (s *Service) Record(ctx context.Context, entry Entry) (Entry, error) {
	if entry.EventID.IsZero() {
		return Entry{}, dErrors.New(dErrors.CodeValidation, "event_id is required")
	}
	if entry.ActionType == "" {
		return Entry{}, dErrors.New(dErrors.CodeValidation, "action_type is required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}

	appended, err := s.store.Append(ctx, entry)
	if err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
	}
	if s.metrics != nil {
		s.metrics.IncLedgerAppend(string(appended.ActionType))
	}
	if s.mirror != nil {
		s.mirror.Emit(ctx, appended)
	}
	return appended, nil
}

// HistoryFor returns the merged change history for one (event, student)
// pair, most recent first.
func (s *Service) HistoryFor(ctx context.Context, eventID id.EventID, studentID id.StudentID, limit int) (*History, error) {
	if _, err := s.records.Event(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}

	var changes []Change

	certs, err := s.records.CertificatesFor(ctx, eventID, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificates")
	}
	for _, cert := range certs {
		if !cert.Revoked || cert.RevokedAt == nil {
			continue
		}
		changes = append(changes, Change{
			Timestamp:   *cert.RevokedAt,
			Action:      ActionCertificateRevoked,
			Kind:        KindRevocation,
			PerformedBy: cert.RevokedBy,
			Reason:      cert.RevocationReason,
			BeforeState: map[string]any{"certificate_valid": true},
			AfterState:  map[string]any{"certificate_valid": false, "certificate_id": cert.ID.String()},
		})
	}

	attendance, err := s.records.AttendanceFor(ctx, eventID, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	for _, rec := range attendance {
		if !rec.Invalidated || rec.InvalidatedAt == nil {
			continue
		}
		changes = append(changes, Change{
			Timestamp:   *rec.InvalidatedAt,
			Action:      ActionAttendanceInvalidated,
			Kind:        KindInvalidation,
			PerformedBy: rec.InvalidatedBy,
			Reason:      rec.InvalidationReason,
			BeforeState: map[string]any{"attendance_valid": true},
			AfterState:  map[string]any{"attendance_valid": false, "day_number": rec.DayNumber},
		})
	}

	entries, err := s.store.ListByStudent(ctx, eventID, studentID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
	}
	for _, entry := range entries {
		changes = append(changes, Change{
			Timestamp:   entry.Timestamp,
			Action:      entry.ActionType,
			Kind:        KindAudit,
			PerformedBy: entry.ActorID,
			Reason:      entry.Reason,
			BeforeState: entry.BeforeState,
			AfterState:  entry.AfterState,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Timestamp.After(changes[j].Timestamp)
	})

	summary := HistorySummary{TotalChanges: len(changes)}
	for _, change := range changes {
		switch change.Kind {
		case KindRevocation:
			summary.Revocations++
		case KindInvalidation:
			summary.Invalidations++
		case KindAudit:
			summary.AuditEntries++
		}
		if correctionActions[change.Action] {
			summary.Corrections++
		}
	}

	return &History{
		EventID:   eventID,
		StudentID: studentID,
		Changes:   changes,
		Summary:   summary,
	}, nil
}

// SummaryFor rolls up all retroactive changes for one event.
func (s *Service) SummaryFor(ctx context.Context, eventID id.EventID) (*EventSummary, error) {
	if _, err := s.records.Event(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}

	certs, err := s.records.CertificatesByEvent(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificates")
	}
	revocations := 0
	for _, cert := range certs {
		if cert.Revoked {
			revocations++
		}
	}

	attendance, err := s.records.AttendanceByEvent(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	invalidations := 0
	for _, rec := range attendance {
		if rec.Invalidated {
			invalidations++
		}
	}

	counts, err := s.store.CountByAction(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count audit entries")
	}
	total, corrections := 0, 0
	for action, count := range counts {
		total += count
		if correctionActions[action] {
			corrections += count
		}
	}

	recent, err := s.store.ListByEvent(ctx, eventID, recentEntriesLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list recent entries")
	}

	return &EventSummary{
		EventID:            eventID,
		TotalRevocations:   revocations,
		TotalInvalidations: invalidations,
		TotalCorrections:   corrections,
		TotalEntries:       total,
		RecentEntries:      recent,
	}, nil
}
