//go:build integration

package participation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"participation/internal/participation"
	id "participation/pkg/domain"
	"participation/pkg/platform/sentinel"
	"participation/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *participation.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = participation.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"events", "registrations", "attendance_records", "certificate_records", "role_assignments")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedEvent(eventID string, days int) {
	_, err := s.postgres.DB.Exec(`
		INSERT INTO events (id, title, start_time, total_days)
		VALUES ($1, 'Tech Summit', now(), $2)
	`, eventID, days)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedRegistration(eventID, studentID string) {
	_, err := s.postgres.DB.Exec(`
		INSERT INTO registrations (event_id, student_id) VALUES ($1, $2)
	`, eventID, studentID)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedCertificate(certID, eventID, studentID string) {
	_, err := s.postgres.DB.Exec(`
		INSERT INTO certificate_records
			(certificate_id, event_id, student_id, role_type, issued_at)
		VALUES ($1, $2, $3, 'attendee', now())
	`, certID, eventID, studentID)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestEventLookup() {
	ctx := context.Background()
	s.seedEvent("evt-1", 3)

	event, err := s.store.Event(ctx, "evt-1")
	s.Require().NoError(err)
	s.Equal(id.EventID("evt-1"), event.ID)
	s.Equal("Tech Summit", event.Title)
	s.Equal(3, event.TotalDays)

	_, err = s.store.Event(ctx, "evt-missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRegistrations() {
	ctx := context.Background()
	s.seedEvent("evt-1", 1)
	s.seedRegistration("evt-1", "stu-a")
	s.seedRegistration("evt-1", "stu-b")

	reg, err := s.store.Registration(ctx, "evt-1", "stu-a")
	s.Require().NoError(err)
	s.Equal(id.StudentID("stu-a"), reg.StudentID)

	_, err = s.store.Registration(ctx, "evt-1", "stu-ghost")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	regs, err := s.store.RegistrationsByEvent(ctx, "evt-1")
	s.Require().NoError(err)
	s.Len(regs, 2)
}

func (s *PostgresStoreSuite) TestAttendanceLifecycle() {
	ctx := context.Background()
	s.seedEvent("evt-1", 2)

	inserted, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
		EventID:        "evt-1",
		StudentID:      "stu-a",
		ScanSource:     participation.SourceQRScan,
		ScannerActorID: "scanner-1",
	})
	s.Require().NoError(err)
	s.NotEmpty(inserted.ID, "missing id should be generated")
	s.Equal(1, inserted.DayNumber, "day number should default to 1")
	s.False(inserted.ScannedAt.IsZero())

	fetched, err := s.store.AttendanceByID(ctx, inserted.ID)
	s.Require().NoError(err)
	s.Equal(participation.SourceQRScan, fetched.ScanSource)
	s.False(fetched.Invalidated)

	now := time.Now().UTC().Truncate(time.Microsecond)
	invalidated, err := s.store.InvalidateAttendance(ctx, inserted.ID, "admin-1", "duplicate scan", now)
	s.Require().NoError(err)
	s.True(invalidated.Invalidated)
	s.Require().NotNil(invalidated.InvalidatedAt)
	s.Equal(id.ActorID("admin-1"), invalidated.InvalidatedBy)
	s.Equal("duplicate scan", invalidated.InvalidationReason)

	// Terminal: a second invalidation must fail without touching the row.
	_, err = s.store.InvalidateAttendance(ctx, inserted.ID, "admin-2", "again", now)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.InvalidateAttendance(ctx, "att-missing", "admin-1", "x", now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAttendanceOrdering() {
	ctx := context.Background()
	s.seedEvent("evt-1", 3)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		_, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
			ID:         id.AttendanceID([]string{"att-c", "att-a", "att-b"}[i]),
			EventID:    "evt-1",
			StudentID:  "stu-a",
			DayNumber:  i + 1,
			ScannedAt:  base.Add(offset),
			ScanSource: participation.SourceQRScan,
		})
		s.Require().NoError(err)
	}

	records, err := s.store.AttendanceFor(ctx, "evt-1", "stu-a")
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(id.AttendanceID("att-a"), records[0].ID)
	s.Equal(id.AttendanceID("att-b"), records[1].ID)
	s.Equal(id.AttendanceID("att-c"), records[2].ID)
}

func (s *PostgresStoreSuite) TestCertificateRevocation() {
	ctx := context.Background()
	s.seedEvent("evt-1", 1)
	s.seedCertificate("cert-1", "evt-1", "stu-a")

	cert, err := s.store.CertificateByID(ctx, "cert-1")
	s.Require().NoError(err)
	s.False(cert.Revoked)
	s.Equal(participation.RoleAttendee, cert.RoleType)

	now := time.Now().UTC().Truncate(time.Microsecond)
	revoked, err := s.store.RevokeCertificate(ctx, "cert-1", "admin-1", "issued in error", now)
	s.Require().NoError(err)
	s.True(revoked.Revoked)
	s.Require().NotNil(revoked.RevokedAt)
	s.Equal("issued in error", revoked.RevocationReason)

	_, err = s.store.RevokeCertificate(ctx, "cert-1", "admin-2", "again", now)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.RevokeCertificate(ctx, "cert-missing", "admin-1", "x", now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	certs, err := s.store.CertificatesFor(ctx, "evt-1", "stu-a")
	s.Require().NoError(err)
	s.Require().Len(certs, 1)
	s.True(certs[0].Revoked)
}

func (s *PostgresStoreSuite) TestRoleAssignments() {
	ctx := context.Background()
	s.seedEvent("evt-1", 1)

	now := time.Now().UTC().Truncate(time.Microsecond)
	role, err := s.store.InsertRole(ctx, participation.RoleAssignment{
		EventID:     "evt-1",
		StudentID:   "stu-a",
		Role:        participation.RoleVolunteer,
		AssignedAt:  now,
		AssignedBy:  "admin-1",
		TimeSegment: "morning",
	})
	s.Require().NoError(err)
	s.NotEmpty(role.ID)

	byEvent, err := s.store.RolesByEvent(ctx, "evt-1")
	s.Require().NoError(err)
	s.Require().Len(byEvent, 1)
	s.Equal(participation.RoleVolunteer, byEvent[0].Role)
	s.Equal("morning", byEvent[0].TimeSegment)

	byStudent, err := s.store.RolesByStudent(ctx, "stu-a")
	s.Require().NoError(err)
	s.Len(byStudent, 1)

	s.Require().NoError(s.store.DeleteRole(ctx, role.ID))
	s.Require().ErrorIs(s.store.DeleteRole(ctx, role.ID), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestInTxRollsBackOnError() {
	ctx := context.Background()
	s.seedEvent("evt-1", 1)

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		_, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
			EventID:    "evt-1",
			StudentID:  "stu-a",
			ScanSource: participation.SourceAdminOverride,
		})
		s.Require().NoError(err)
		return context.Canceled
	})
	s.Require().ErrorIs(err, context.Canceled)

	records, err := s.store.AttendanceFor(ctx, "evt-1", "stu-a")
	s.Require().NoError(err)
	s.Empty(records, "rolled back insert must not be visible")
}
