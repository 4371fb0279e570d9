// Package roles manages event-specific role assignments. A student can hold
// several roles for one event (attendee plus volunteer for an afternoon
// segment, for example); assignments and removals are audited like every
// other correction.
package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"participation/internal/ledger"
	"participation/internal/participation"
	id "participation/pkg/domain"
	dErrors "participation/pkg/domain-errors"
	"participation/pkg/platform/sentinel"
	"participation/pkg/requestcontext"
)

type Service struct {
	records participation.Store
	entries *ledger.Service
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
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

// Assign grants a student a role for one event. Duplicate roles are allowed;
// operators sometimes split one role across time segments.
func (s *Service) Assign(ctx context.Context, eventID id.EventID, studentID id.StudentID, role participation.RoleType, timeSegment string, actorID id.ActorID) (*participation.RoleAssignment, error) {
	if !participation.ValidRole(role) {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
	}
	if studentID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "student_id is required")
	}
	if _, err := s.records.Event(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}

	now := requestcontext.Now(ctx)
	var assigned participation.RoleAssignment
	err := s.records.InTx(ctx, func(ctx context.Context) error {
		var err error
		assigned, err = s.records.InsertRole(ctx, participation.RoleAssignment{
			EventID:     eventID,
			StudentID:   studentID,
			Role:        role,
			AssignedAt:  now,
			AssignedBy:  actorID,
			TimeSegment: timeSegment,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert role assignment")
		}

		_, err = s.entries.Record(ctx, ledger.Entry{
			EventID:    eventID,
			StudentID:  studentID,
			ActorID:    actorID,
			ActionType: ledger.ActionRoleAssigned,
			AfterState: map[string]any{
				"role_id":      assigned.ID.String(),
				"role":         string(role),
				"time_segment": timeSegment,
			},
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "role assigned",
		"event_id", eventID,
		"student_id", studentID,
		"role", role)
	return &assigned, nil
}

// Remove deletes a role assignment and records who removed it and why.
func (s *Service) Remove(ctx context.Context, roleID id.RoleID, actorID id.ActorID, reason string) error {
	role, err := s.records.RoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "role assignment not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load role assignment")
	}

	now := requestcontext.Now(ctx)
	return s.records.InTx(ctx, func(ctx context.Context) error {
		if err := s.records.DeleteRole(ctx, roleID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "role assignment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete role assignment")
		}

		_, err := s.entries.Record(ctx, ledger.Entry{
			EventID:    role.EventID,
			StudentID:  role.StudentID,
			ActorID:    actorID,
			ActionType: ledger.ActionRoleRemoved,
			BeforeState: map[string]any{
				"role_id":      role.ID.String(),
				"role":         string(role.Role),
				"time_segment": role.TimeSegment,
			},
			Reason:    reason,
			Timestamp: now,
		})
		return err
	})
}

// ForEvent lists all role assignments for an event.
func (s *Service) ForEvent(ctx context.Context, eventID id.EventID) ([]participation.RoleAssignment, error) {
	if _, err := s.records.Event(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	roles, err := s.records.RolesByEvent(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list role assignments")
	}
	return roles, nil
}

// ForStudent lists a student's role assignments across all events.
func (s *Service) ForStudent(ctx context.Context, studentID id.StudentID) ([]participation.RoleAssignment, error) {
	roles, err := s.records.RolesByStudent(ctx, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list role assignments")
	}
	return roles, nil
}
