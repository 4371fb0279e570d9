// Package domain holds the typed identifiers shared across the module.
//
// IDs are distinct string types so the compiler rejects cross-type mixups
// (passing a certificate ID where a student ID is expected). Events and
// students come from upstream systems, so their IDs are opaque strings
// rather than UUIDs.
package domain

import (
	"strings"

	dErrors "participation/pkg/domain-errors"
)

type (
	// EventID identifies a campus event.
	EventID string
	// StudentID is the student's registration number (PRN).
	StudentID string
	// CertificateID is the public identifier printed on a certificate.
	CertificateID string
	// AttendanceID identifies a single attendance scan record.
	AttendanceID string
	// ActorID identifies the user performing a state-changing action.
	ActorID string
	// RoleID identifies a role assignment.
	RoleID string
)

func (e EventID) String() string       { return string(e) }
func (s StudentID) String() string     { return string(s) }
func (c CertificateID) String() string { return string(c) }
func (a AttendanceID) String() string  { return string(a) }
func (a ActorID) String() string       { return string(a) }
func (r RoleID) String() string        { return string(r) }

func (e EventID) IsZero() bool       { return e == "" }
func (s StudentID) IsZero() bool     { return s == "" }
func (c CertificateID) IsZero() bool { return c == "" }
func (a AttendanceID) IsZero() bool  { return a == "" }
func (a ActorID) IsZero() bool       { return a == "" }
func (r RoleID) IsZero() bool        { return r == "" }

const maxIDLength = 128

// parseID validates an opaque identifier at a trust boundary.
func parseID(raw, kind string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeValidation, kind+" is required")
	}
	if len(trimmed) > maxIDLength {
		return "", dErrors.New(dErrors.CodeValidation, kind+" exceeds maximum length")
	}
	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeValidation, kind+" contains control characters")
		}
	}
	return trimmed, nil
}

// ParseEventID validates raw input as an event ID.
func ParseEventID(raw string) (EventID, error) {
	v, err := parseID(raw, "event_id")
	return EventID(v), err
}

// ParseStudentID validates raw input as a student ID.
func ParseStudentID(raw string) (StudentID, error) {
	v, err := parseID(raw, "student_id")
	return StudentID(v), err
}

// ParseCertificateID validates raw input as a certificate ID.
func ParseCertificateID(raw string) (CertificateID, error) {
	v, err := parseID(raw, "certificate_id")
	return CertificateID(v), err
}

// ParseAttendanceID validates raw input as an attendance record ID.
func ParseAttendanceID(raw string) (AttendanceID, error) {
	v, err := parseID(raw, "attendance_id")
	return AttendanceID(v), err
}
