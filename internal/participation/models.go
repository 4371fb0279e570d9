package participation

import (
	"time"

	id "participation/pkg/domain"
)

// Severity grades conflicts and fraud alerts for operator triage.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// ScanSource labels how an attendance record came into existence. Sources
// differ in trustworthiness; qr_scan is the strongest signal.
type ScanSource string

const (
	SourceQRScan         ScanSource = "qr_scan"
	SourceAdminOverride  ScanSource = "admin_override"
	SourceBulkUpload     ScanSource = "bulk_upload"
	SourceAPIIntegration ScanSource = "api_integration"
)

// RoleType labels a participant's function at an event.
type RoleType string

const (
	RoleAttendee  RoleType = "attendee"
	RoleOrganizer RoleType = "organizer"
	RoleScanner   RoleType = "scanner"
	RoleVolunteer RoleType = "volunteer"
)

// ValidRole reports whether r is one of the known role types.
func ValidRole(r RoleType) bool {
	switch r {
	case RoleAttendee, RoleOrganizer, RoleScanner, RoleVolunteer:
		return true
	}
	return false
}

// Event carries the event metadata reconciliation depends on.
type Event struct {
	ID        id.EventID `json:"id"`
	Title     string     `json:"title"`
	StartTime time.Time  `json:"start_time"`
	TotalDays int        `json:"total_days"`
}

// Registration records a student's sign-up. Never mutated; administrative
// ticket removal deletes the row outright, so absence is the only tombstone.
type Registration struct {
	EventID   id.EventID   `json:"event_id"`
	StudentID id.StudentID `json:"student_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// AttendanceRecord is one physical attendance scan. One record per day for
// multi-day events; duplicates per day are possible and surface as conflicts.
// Invalidation is the only mutation the record ever sees, and it is one-way.
type AttendanceRecord struct {
	ID                 id.AttendanceID `json:"id"`
	EventID            id.EventID      `json:"event_id"`
	StudentID          id.StudentID    `json:"student_id"`
	DayNumber          int             `json:"day_number"`
	ScannedAt          time.Time       `json:"scanned_at"`
	ScanSource         ScanSource      `json:"scan_source"`
	ScannerActorID     id.ActorID      `json:"scanner_actor_id,omitempty"`
	Invalidated        bool            `json:"invalidated"`
	InvalidatedAt      *time.Time      `json:"invalidated_at,omitempty"`
	InvalidatedBy      id.ActorID      `json:"invalidated_by,omitempty"`
	InvalidationReason string          `json:"invalidation_reason,omitempty"`
}

// Active reports whether the record still counts toward participation.
func (a AttendanceRecord) Active() bool { return !a.Invalidated }

// CertificateRecord is an issued certificate. StudentID is empty for
// certificates issued to non-student role holders. Revocation is the only
// mutation and it is one-way; re-revocation is rejected.
type CertificateRecord struct {
	ID               id.CertificateID `json:"id"`
	EventID          id.EventID       `json:"event_id"`
	StudentID        id.StudentID     `json:"student_id,omitempty"`
	RoleType         RoleType         `json:"role_type"`
	IssuedAt         time.Time        `json:"issued_at"`
	Revoked          bool             `json:"revoked"`
	RevokedAt        *time.Time       `json:"revoked_at,omitempty"`
	RevokedBy        id.ActorID       `json:"revoked_by,omitempty"`
	RevocationReason string           `json:"revocation_reason,omitempty"`
	VerificationHash string           `json:"verification_hash,omitempty"`
}

// Active reports whether the certificate still confers CERTIFIED status.
func (c CertificateRecord) Active() bool { return !c.Revoked }

// RoleAssignment grants a student a role for one event. A student may hold
// several roles for the same event.
type RoleAssignment struct {
	ID          id.RoleID    `json:"id"`
	EventID     id.EventID   `json:"event_id"`
	StudentID   id.StudentID `json:"student_id"`
	Role        RoleType     `json:"role"`
	AssignedAt  time.Time    `json:"assigned_at"`
	AssignedBy  id.ActorID   `json:"assigned_by,omitempty"`
	TimeSegment string       `json:"time_segment,omitempty"`
}
