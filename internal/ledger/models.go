package ledger

import (
	"time"

	id "participation/pkg/domain"
)

// ActionType names a state-changing action captured by the ledger.
type ActionType string

const (
	ActionCertificateRevoked      ActionType = "certificate_revoked"
	ActionCertificateVerified     ActionType = "certificate_verified"
	ActionAttendanceInvalidated   ActionType = "attendance_invalidated"
	ActionParticipationCorrected  ActionType = "participation_corrected"
	ActionResolutionAttendance    ActionType = "resolution_attendance_added"
	ActionResolutionRevocation    ActionType = "resolution_certificate_revoked"
	ActionResolutionIgnored       ActionType = "resolution_ignored"
	ActionResolutionManualReview  ActionType = "resolution_manual_review"
	ActionRoleAssigned            ActionType = "role_assigned"
	ActionRoleRemoved             ActionType = "role_removed"
)

// correctionActions count toward the "total_corrections" summary figure.
var correctionActions = map[ActionType]bool{
	ActionParticipationCorrected: true,
	ActionResolutionIgnored:      true,
	ActionResolutionManualReview: true,
}

// Entry is one append-only audit record. Entries are never updated or
// deleted; they are the sole answer to "why did this change".
type Entry struct {
	ID          string         `json:"id"`
	EventID     id.EventID     `json:"event_id"`
	StudentID   id.StudentID   `json:"student_id,omitempty"` // empty for event-wide actions
	ActorID     id.ActorID     `json:"actor_id,omitempty"`
	ActionType  ActionType     `json:"action_type"`
	BeforeState map[string]any `json:"before_state,omitempty"`
	AfterState  map[string]any `json:"after_state,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ChangeKind distinguishes where a change-history row came from.
type ChangeKind string

const (
	// KindRevocation is derived from certificate state.
	KindRevocation ChangeKind = "revocation"
	// KindInvalidation is derived from attendance state.
	KindInvalidation ChangeKind = "invalidation"
	// KindAudit is a ledger entry proper.
	KindAudit ChangeKind = "audit"
)

// Change is one row of a student's merged change history.
type Change struct {
	Timestamp   time.Time      `json:"timestamp"`
	Action      ActionType     `json:"action"`
	Kind        ChangeKind     `json:"kind"`
	PerformedBy id.ActorID     `json:"performed_by,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	BeforeState map[string]any `json:"before_state,omitempty"`
	AfterState  map[string]any `json:"after_state,omitempty"`
}

// History is the merged, most-recent-first change history for one
// (event, student) pair.
type History struct {
	EventID   id.EventID     `json:"event_id"`
	StudentID id.StudentID   `json:"student_id"`
	Changes   []Change       `json:"changes"`
	Summary   HistorySummary `json:"summary"`
}

// HistorySummary tallies a history by change kind.
type HistorySummary struct {
	TotalChanges  int `json:"total_changes"`
	Revocations   int `json:"revocations"`
	Invalidations int `json:"invalidations"`
	Corrections   int `json:"corrections"`
	AuditEntries  int `json:"audit_entries"`
}

// EventSummary is the audit roll-up for one event.
type EventSummary struct {
	EventID            id.EventID `json:"event_id"`
	TotalRevocations   int        `json:"total_revocations"`
	TotalInvalidations int        `json:"total_invalidations"`
	TotalCorrections   int        `json:"total_corrections"`
	TotalEntries       int        `json:"total_entries"`
	RecentEntries      []Entry    `json:"recent_entries"`
}
