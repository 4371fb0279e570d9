package fraud

import (
	"time"

	"participation/internal/participation"
	id "participation/pkg/domain"
)

// AlertType names one fraud heuristic.
type AlertType string

const (
	AlertDuplicateCertificate  AlertType = "DUPLICATE_CERTIFICATE"
	AlertOrphanCertificate     AlertType = "CERTIFICATE_WITHOUT_PARTICIPATION"
	AlertRapidScans            AlertType = "MULTIPLE_SCANS_SAME_MINUTE"
	AlertPrematureCertificate  AlertType = "CERTIFICATE_BEFORE_EVENT"
	AlertRevokedStillVerified  AlertType = "REVOKED_STILL_IN_USE"
	AlertOverrideAbuse         AlertType = "MANUAL_OVERRIDE_ABUSE"
	AlertBulkUploadAnomaly     AlertType = "BULK_UPLOAD_ANOMALY"
)

// Alert is one heuristic finding. Exactly one evidence field is non-nil,
// matching the alert type; the rest stay nil and are dropped from JSON.
type Alert struct {
	Type           AlertType              `json:"type"`
	Severity       participation.Severity `json:"severity"`
	StudentID      id.StudentID           `json:"student_id,omitempty"`
	Description    string                 `json:"description"`
	Recommendation string                 `json:"recommendation"`

	DuplicateCertificate *DuplicateCertificateEvidence `json:"duplicate_certificate,omitempty"`
	OrphanCertificate    *OrphanCertificateEvidence    `json:"orphan_certificate,omitempty"`
	ScanBurst            *ScanBurstEvidence            `json:"scan_burst,omitempty"`
	PrematureCertificate *PrematureCertificateEvidence `json:"premature_certificate,omitempty"`
	RevokedUse           *RevokedUseEvidence           `json:"revoked_use,omitempty"`
	OverrideAbuse        *OverrideAbuseEvidence        `json:"override_abuse,omitempty"`
	BulkUpload           *BulkUploadEvidence           `json:"bulk_upload,omitempty"`
}

type DuplicateCertificateEvidence struct {
	CertificateIDs []id.CertificateID `json:"certificate_ids"`
	IssuedAt       []time.Time        `json:"issued_dates"`
}

type OrphanCertificateEvidence struct {
	CertificateID   id.CertificateID `json:"certificate_id"`
	IssuedAt        time.Time        `json:"issued_at"`
	HasRegistration bool             `json:"has_registration"`
	HasAttendance   bool             `json:"has_attendance"`
}

type ScanBurstEvidence struct {
	Minute         time.Time                  `json:"timestamp"`
	TotalScans     int                        `json:"total_scans"`
	UniqueStudents int                        `json:"unique_students"`
	Sources        []participation.ScanSource `json:"scan_sources"`
}

type PrematureCertificateEvidence struct {
	CertificateID id.CertificateID `json:"certificate_id"`
	IssuedAt      time.Time        `json:"issued_at"`
	EventStart    time.Time        `json:"event_start"`
}

type RevokedUseEvidence struct {
	CertificateID  id.CertificateID `json:"certificate_id"`
	RevokedAt      time.Time        `json:"revoked_at"`
	Verifications  int              `json:"verification_attempts"`
	LastVerifiedAt time.Time        `json:"last_attempt"`
}

type OverrideAbuseEvidence struct {
	ScannerID id.ActorID `json:"scanner_id"`
	Overrides int        `json:"override_count"`
}

type BulkUploadEvidence struct {
	Minute     time.Time    `json:"timestamp"`
	Records    int          `json:"record_count"`
	ScannerIDs []id.ActorID `json:"scanner_ids"`
}

// Summary rolls the alert list up by severity.
type Summary struct {
	TotalAlerts    int         `json:"total_alerts"`
	HighSeverity   int         `json:"high_severity"`
	MediumSeverity int         `json:"medium_severity"`
	LowSeverity    int         `json:"low_severity"`
	CriticalTypes  []AlertType `json:"critical_types"`
}

// Report is the result of one event-wide fraud scan.
type Report struct {
	EventID   id.EventID `json:"event_id"`
	Alerts    []Alert    `json:"fraud_alerts"`
	Summary   Summary    `json:"summary"`
	ScannedAt time.Time  `json:"scanned_at"`
}
