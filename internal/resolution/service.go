package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"participation/internal/ledger"
	"participation/internal/participation"
	"participation/internal/platform/metrics"
	id "participation/pkg/domain"
	dErrors "participation/pkg/domain-errors"
	"participation/pkg/platform/sentinel"
	"participation/pkg/requestcontext"
)

const defaultBatchReason = "bulk conflict resolution"

// CertificateCache is the slice of the verification cache a revocation must
// touch. Dropping the entry right after the write keeps cached verifications
// from vouching for a certificate that is no longer valid.
type CertificateCache interface {
	Invalidate(ctx context.Context, certificateID id.CertificateID) error
}

// Service applies operator corrections: single revocations and
// invalidations, and whole resolution batches. Every mutation and its audit
// entry commit in one transaction; the batch as a whole never does.
type Service struct {
	records participation.Store
	entries *ledger.Service
	cache   CertificateCache
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

// WithCertificateCache registers the verification cache so revocations can
// evict the stale record immediately instead of waiting out the TTL.
func WithCertificateCache(cache CertificateCache) Option {
	return func(s *Service) { s.cache = cache }
}

func NewService(records participation.Store, entries *ledger.Service, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("participation store is required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	svc := &Service{records: records, entries: entries, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RevokeCertificate applies a one-way revocation. The pre-read classifies a
// certificate that is already revoked as a terminal-state error; if the
// guarded write then misses anyway, a racing writer got there first and the
// caller sees a concurrent-modification error instead.
func (s *Service) RevokeCertificate(ctx context.Context, certificateID id.CertificateID, actorID id.ActorID, reason string) (*ledger.Entry, error) {
	cert, err := s.records.CertificateByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	if cert.Revoked {
		return nil, dErrors.New(dErrors.CodeTerminalState, "certificate is already revoked")
	}

	now := requestcontext.Now(ctx)
	var entry ledger.Entry
	err = s.records.InTx(ctx, func(ctx context.Context) error {
		revoked, err := s.records.RevokeCertificate(ctx, certificateID, actorID, reason, now)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrInvalidState):
				return dErrors.New(dErrors.CodeConcurrentModification, "certificate was revoked concurrently")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "certificate not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
		}

		entry, err = s.entries.Record(ctx, ledger.Entry{
			EventID:    revoked.EventID,
			StudentID:  revoked.StudentID,
			ActorID:    actorID,
			ActionType: ledger.ActionCertificateRevoked,
			BeforeState: map[string]any{
				"certificate_id": revoked.ID.String(),
				"revoked":        false,
			},
			AfterState: map[string]any{
				"certificate_id": revoked.ID.String(),
				"revoked":        true,
				"revoked_at":     now,
			},
			Reason:    reason,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.dropCachedCertificate(ctx, certificateID)

	s.logger.InfoContext(ctx, "certificate revoked",
		"certificate_id", certificateID,
		"actor_id", actorID)
	return &entry, nil
}

// dropCachedCertificate evicts a just-revoked certificate from the
// verification cache. Failures are logged, not returned; the entry expires
// on its own TTL regardless.
func (s *Service) dropCachedCertificate(ctx context.Context, certificateID id.CertificateID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, certificateID); err != nil {
		s.logger.WarnContext(ctx, "failed to evict cached certificate",
			"certificate_id", certificateID,
			"error", err.Error())
	}
}

// InvalidateAttendance marks one attendance record invalid. Same optimistic
// scheme as RevokeCertificate.
func (s *Service) InvalidateAttendance(ctx context.Context, attendanceID id.AttendanceID, actorID id.ActorID, reason string) (*ledger.Entry, error) {
	rec, err := s.records.AttendanceByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "attendance record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
	}
	if rec.Invalidated {
		return nil, dErrors.New(dErrors.CodeTerminalState, "attendance record is already invalidated")
	}

	now := requestcontext.Now(ctx)
	var entry ledger.Entry
	err = s.records.InTx(ctx, func(ctx context.Context) error {
		invalidated, err := s.records.InvalidateAttendance(ctx, attendanceID, actorID, reason, now)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrInvalidState):
				return dErrors.New(dErrors.CodeConcurrentModification, "attendance record was invalidated concurrently")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "attendance record not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to invalidate attendance record")
		}

		entry, err = s.entries.Record(ctx, ledger.Entry{
			EventID:    invalidated.EventID,
			StudentID:  invalidated.StudentID,
			ActorID:    actorID,
			ActionType: ledger.ActionAttendanceInvalidated,
			BeforeState: map[string]any{
				"attendance_id": invalidated.ID.String(),
				"invalidated":   false,
			},
			AfterState: map[string]any{
				"attendance_id":  invalidated.ID.String(),
				"invalidated":    true,
				"invalidated_at": now,
				"day_number":     invalidated.DayNumber,
			},
			Reason:    reason,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "attendance invalidated",
		"attendance_id", attendanceID,
		"actor_id", actorID)
	return &entry, nil
}

// ResolveBatch applies each action independently. One transaction per item;
// a failing item becomes a detail row and the batch moves on.
func (s *Service) ResolveBatch(ctx context.Context, eventID id.EventID, actions []BatchAction, actorID id.ActorID) (*BatchResult, error) {
	if _, err := s.records.Event(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}

	result := &BatchResult{EventID: eventID, TotalActions: len(actions)}
	for _, action := range actions {
		detail := s.applyAction(ctx, eventID, action, actorID)
		result.Details = append(result.Details, detail)
		if detail.Status == OutcomeSuccess {
			result.Successful++
		} else {
			result.Failed++
		}
		if s.metrics != nil {
			s.metrics.IncResolutionAction(string(action.Action), string(detail.Status))
		}
	}

	s.logger.InfoContext(ctx, "resolution batch complete",
		"event_id", eventID,
		"actor_id", actorID,
		"total", result.TotalActions,
		"successful", result.Successful,
		"failed", result.Failed)
	return result, nil
}

func (s *Service) applyAction(ctx context.Context, eventID id.EventID, action BatchAction, actorID id.ActorID) Detail {
	detail := Detail{StudentID: action.StudentID, Action: action.Action}
	reason := action.Reason
	if reason == "" {
		reason = defaultBatchReason
	}

	if action.StudentID.IsZero() {
		detail.Status = OutcomeFailed
		detail.Reason = "student_id is required"
		return detail
	}

	var err error
	switch action.Action {
	case ActionAddAttendance:
		err = s.addAttendance(ctx, eventID, action.StudentID, actorID, reason)
	case ActionRevokeCertificate:
		err = s.revokeForStudent(ctx, eventID, action.StudentID, actorID, reason)
	case ActionIgnore:
		err = s.recordDecision(ctx, eventID, action.StudentID, actorID, ledger.ActionResolutionIgnored, reason)
	case ActionManualReview:
		err = s.recordDecision(ctx, eventID, action.StudentID, actorID, ledger.ActionResolutionManualReview, reason)
	default:
		err = dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown action %q", action.Action))
	}

	if err != nil {
		detail.Status = OutcomeFailed
		detail.Reason = err.Error()
		return detail
	}
	detail.Status = OutcomeSuccess
	return detail
}

// addAttendance backfills one manual attendance record. An already-present
// active record is a no-op success so retried batches stay idempotent.
func (s *Service) addAttendance(ctx context.Context, eventID id.EventID, studentID id.StudentID, actorID id.ActorID, reason string) error {
	if _, err := s.records.Registration(ctx, eventID, studentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodePreconditionFailed, "no registration found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}

	existing, err := s.records.AttendanceFor(ctx, eventID, studentID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	for _, rec := range existing {
		if rec.Active() {
			return nil
		}
	}

	now := requestcontext.Now(ctx)
	return s.records.InTx(ctx, func(ctx context.Context) error {
		rec, err := s.records.InsertAttendance(ctx, participation.AttendanceRecord{
			EventID:        eventID,
			StudentID:      studentID,
			DayNumber:      1,
			ScannedAt:      now,
			ScanSource:     participation.SourceAdminOverride,
			ScannerActorID: actorID,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert attendance")
		}

		_, err = s.entries.Record(ctx, ledger.Entry{
			EventID:    eventID,
			StudentID:  studentID,
			ActorID:    actorID,
			ActionType: ledger.ActionResolutionAttendance,
			AfterState: map[string]any{
				"attendance_id": rec.ID.String(),
				"scan_source":   string(rec.ScanSource),
				"day_number":    rec.DayNumber,
			},
			Reason:    reason,
			Timestamp: now,
		})
		return err
	})
}

// revokeForStudent revokes the student's active certificate for the event.
// A missing or already-revoked certificate fails this item only.
func (s *Service) revokeForStudent(ctx context.Context, eventID id.EventID, studentID id.StudentID, actorID id.ActorID, reason string) error {
	certs, err := s.records.CertificatesFor(ctx, eventID, studentID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificates")
	}
	var target *participation.CertificateRecord
	for i := range certs {
		if certs[i].Active() {
			target = &certs[i]
			break
		}
	}
	if target == nil {
		return dErrors.New(dErrors.CodeNotFound, "no active certificate found")
	}

	now := requestcontext.Now(ctx)
	err = s.records.InTx(ctx, func(ctx context.Context) error {
		revoked, err := s.records.RevokeCertificate(ctx, target.ID, actorID, reason, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConcurrentModification, "certificate was revoked concurrently")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
		}

		_, err = s.entries.Record(ctx, ledger.Entry{
			EventID:    eventID,
			StudentID:  studentID,
			ActorID:    actorID,
			ActionType: ledger.ActionResolutionRevocation,
			BeforeState: map[string]any{
				"certificate_id": revoked.ID.String(),
				"revoked":        false,
			},
			AfterState: map[string]any{
				"certificate_id": revoked.ID.String(),
				"revoked":        true,
			},
			Reason:    reason,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.dropCachedCertificate(ctx, target.ID)
	return nil
}

// recordDecision writes the audit entry for decisions with no record
// mutation.
func (s *Service) recordDecision(ctx context.Context, eventID id.EventID, studentID id.StudentID, actorID id.ActorID, actionType ledger.ActionType, reason string) error {
	_, err := s.entries.Record(ctx, ledger.Entry{
		EventID:    eventID,
		StudentID:  studentID,
		ActorID:    actorID,
		ActionType: actionType,
		AfterState: map[string]any{"decision": string(actionType)},
		Reason:     reason,
		Timestamp:  requestcontext.Now(ctx),
	})
	return err
}
