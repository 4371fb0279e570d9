package participation

import (
	"context"
	"time"

	id "participation/pkg/domain"
)

// Store is the transactional record store the reconciliation engine reads
// from and the resolution orchestrator writes through.
//
// Read methods return all records including invalidated attendance and
// revoked certificates; derivation logic decides what counts. Lookups of a
// single record return sentinel.ErrNotFound when absent.
//
// RevokeCertificate and InvalidateAttendance re-check the terminal flag at
// write time and return sentinel.ErrInvalidState if it is already set, so a
// racing writer cannot double-apply a one-way correction.
type Store interface {
	Event(ctx context.Context, eventID id.EventID) (*Event, error)

	Registration(ctx context.Context, eventID id.EventID, studentID id.StudentID) (*Registration, error)
	RegistrationsByEvent(ctx context.Context, eventID id.EventID) ([]Registration, error)

	AttendanceByID(ctx context.Context, attendanceID id.AttendanceID) (*AttendanceRecord, error)
	AttendanceFor(ctx context.Context, eventID id.EventID, studentID id.StudentID) ([]AttendanceRecord, error)
	AttendanceByEvent(ctx context.Context, eventID id.EventID) ([]AttendanceRecord, error)
	InsertAttendance(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, error)
	InvalidateAttendance(ctx context.Context, attendanceID id.AttendanceID, by id.ActorID, reason string, at time.Time) (*AttendanceRecord, error)

	CertificateByID(ctx context.Context, certificateID id.CertificateID) (*CertificateRecord, error)
	CertificatesFor(ctx context.Context, eventID id.EventID, studentID id.StudentID) ([]CertificateRecord, error)
	CertificatesByEvent(ctx context.Context, eventID id.EventID) ([]CertificateRecord, error)
	RevokeCertificate(ctx context.Context, certificateID id.CertificateID, by id.ActorID, reason string, at time.Time) (*CertificateRecord, error)

	RoleByID(ctx context.Context, roleID id.RoleID) (*RoleAssignment, error)
	RolesFor(ctx context.Context, eventID id.EventID, studentID id.StudentID) ([]RoleAssignment, error)
	RolesByEvent(ctx context.Context, eventID id.EventID) ([]RoleAssignment, error)
	RolesByStudent(ctx context.Context, studentID id.StudentID) ([]RoleAssignment, error)
	InsertRole(ctx context.Context, role RoleAssignment) (RoleAssignment, error)
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// InTx runs fn with a transaction carried in the context so that a
	// mutation and its audit entry commit or fail together. Implementations
	// without real transactions run fn under their write lock.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
