package reconcile

import (
	"participation/internal/participation"
	id "participation/pkg/domain"
)

// CanonicalStatus is the single authoritative participation state derived
// from all sources for one (event, student) pair.
type CanonicalStatus string

const (
	StatusUnknown               CanonicalStatus = "UNKNOWN"
	StatusRegisteredOnly        CanonicalStatus = "REGISTERED_ONLY"
	StatusAttendedNoCertificate CanonicalStatus = "ATTENDED_NO_CERTIFICATE"
	StatusCertified             CanonicalStatus = "CERTIFIED"
	StatusInvalidated           CanonicalStatus = "INVALIDATED"
)

// ConflictType names a detected disagreement between sources.
type ConflictType string

const (
	ConflictCertificateWithoutAttendance   ConflictType = "CERTIFICATE_WITHOUT_ATTENDANCE"
	ConflictCertificateWithoutRegistration ConflictType = "CERTIFICATE_WITHOUT_REGISTRATION"
	ConflictAttendanceWithoutRegistration  ConflictType = "ATTENDANCE_WITHOUT_REGISTRATION"
	ConflictMultipleScansSameDay           ConflictType = "MULTIPLE_SCANS_SAME_DAY"
	ConflictAdminOverride                  ConflictType = "ADMIN_OVERRIDE_CONFLICT"
)

// Conflict is one detected disagreement. RecommendedAction is operator
// guidance only; nothing acts on it automatically.
type Conflict struct {
	Type              ConflictType             `json:"type"`
	Severity          participation.Severity   `json:"severity"`
	Message           string                   `json:"message"`
	RecommendedAction string                   `json:"recommended_action"`
}

// Sources bundles everything known about one (event, student) pair. Slices
// include invalidated and revoked records; derivation decides what counts.
// A nil Event or Registration means that source is absent, which is itself
// meaningful input, never an error.
type Sources struct {
	Event        *participation.Event
	Registration *participation.Registration
	Attendance   []participation.AttendanceRecord
	Certificates []participation.CertificateRecord
}

// Evidence points back at the raw records a derivation was computed from.
type Evidence struct {
	AttendanceIDs  []id.AttendanceID  `json:"attendance_ids"`
	CertificateIDs []id.CertificateID `json:"certificate_ids"`
}

// Result is the full answer to "did this student participate, and how much
// do we trust that answer".
type Result struct {
	EventID            id.EventID      `json:"event_id"`
	StudentID          id.StudentID    `json:"student_id"`
	Status             CanonicalStatus `json:"canonical_status"`
	HasRegistration    bool            `json:"has_registration"`
	HasAttendance      bool            `json:"has_attendance"`
	HasCertificate     bool            `json:"has_certificate"`
	AttendanceCount    int             `json:"attendance_count"`
	DaysAttended       int             `json:"days_attended"`
	TotalDaysRequired  int             `json:"total_days_required"`
	CertificateRevoked bool            `json:"certificate_revoked"`
	Conflicts          []Conflict      `json:"conflicts"`
	TrustScore         int             `json:"trust_score"`
	Evidence           Evidence        `json:"raw_evidence"`
}

// StudentConflicts is one row of an event-wide conflict listing.
type StudentConflicts struct {
	StudentID  id.StudentID    `json:"student_id"`
	Status     CanonicalStatus `json:"canonical_status"`
	Conflicts  []Conflict      `json:"conflicts"`
	TrustScore int             `json:"trust_score"`
}
