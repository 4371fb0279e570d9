package participation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"participation/internal/participation"
	id "participation/pkg/domain"
	"participation/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *participation.InMemoryStore
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = participation.NewInMemoryStore()
	s.now = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) TestEventLookup() {
	ctx := context.Background()

	_, err := s.store.Event(ctx, "evt-missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.store.SeedEvent(participation.Event{ID: "evt-1", Title: "Career Fair", StartTime: s.now, TotalDays: 2})
	event, err := s.store.Event(ctx, "evt-1")
	s.Require().NoError(err)
	s.Equal("Career Fair", event.Title)
	s.Equal(2, event.TotalDays)
}

func (s *MemoryStoreSuite) TestInsertAttendanceDefaults() {
	ctx := context.Background()

	rec, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
		EventID:    "evt-1",
		StudentID:  "stu-a",
		ScanSource: participation.SourceQRScan,
	})
	s.Require().NoError(err)
	s.NotEmpty(rec.ID)
	s.Equal(1, rec.DayNumber)
	s.False(rec.ScannedAt.IsZero())

	// Explicit values survive untouched.
	rec2, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
		ID:         "att-1",
		EventID:    "evt-1",
		StudentID:  "stu-a",
		DayNumber:  3,
		ScannedAt:  s.now,
		ScanSource: participation.SourceBulkUpload,
	})
	s.Require().NoError(err)
	s.Equal(id.AttendanceID("att-1"), rec2.ID)
	s.Equal(3, rec2.DayNumber)
	s.True(rec2.ScannedAt.Equal(s.now))
}

func (s *MemoryStoreSuite) TestInvalidateAttendanceIsTerminal() {
	ctx := context.Background()
	rec, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
		EventID:    "evt-1",
		StudentID:  "stu-a",
		ScannedAt:  s.now,
		ScanSource: participation.SourceQRScan,
	})
	s.Require().NoError(err)

	invalidated, err := s.store.InvalidateAttendance(ctx, rec.ID, "admin-1", "duplicate scan", s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.True(invalidated.Invalidated)
	s.Equal("duplicate scan", invalidated.InvalidationReason)
	s.Equal(id.ActorID("admin-1"), invalidated.InvalidatedBy)

	_, err = s.store.InvalidateAttendance(ctx, rec.ID, "admin-2", "again", s.now.Add(2*time.Hour))
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	// First invalidation details are untouched.
	fetched, err := s.store.AttendanceByID(ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(id.ActorID("admin-1"), fetched.InvalidatedBy)

	_, err = s.store.InvalidateAttendance(ctx, "att-missing", "admin-1", "x", s.now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestAttendanceReadsAreSorted() {
	ctx := context.Background()
	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		_, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
			ID:         id.AttendanceID([]string{"att-c", "att-a", "att-b"}[i]),
			EventID:    "evt-1",
			StudentID:  "stu-a",
			ScannedAt:  s.now.Add(offset),
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

func (s *MemoryStoreSuite) TestRevokeCertificateIsTerminal() {
	ctx := context.Background()
	s.store.SeedCertificate(participation.CertificateRecord{
		ID:        "cert-1",
		EventID:   "evt-1",
		StudentID: "stu-a",
		RoleType:  participation.RoleAttendee,
		IssuedAt:  s.now,
	})

	revoked, err := s.store.RevokeCertificate(ctx, "cert-1", "admin-1", "issued in error", s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.True(revoked.Revoked)
	s.Require().NotNil(revoked.RevokedAt)

	_, err = s.store.RevokeCertificate(ctx, "cert-1", "admin-2", "again", s.now.Add(2*time.Hour))
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.RevokeCertificate(ctx, "cert-missing", "admin-1", "x", s.now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestRoleLifecycle() {
	ctx := context.Background()

	role, err := s.store.InsertRole(ctx, participation.RoleAssignment{
		EventID:   "evt-1",
		StudentID: "stu-a",
		Role:      participation.RoleScanner,
	})
	s.Require().NoError(err)
	s.NotEmpty(role.ID)
	s.False(role.AssignedAt.IsZero())

	byStudent, err := s.store.RolesByStudent(ctx, "stu-a")
	s.Require().NoError(err)
	s.Require().Len(byStudent, 1)
	s.Equal(participation.RoleScanner, byStudent[0].Role)

	s.Require().NoError(s.store.DeleteRole(ctx, role.ID))
	s.Require().ErrorIs(s.store.DeleteRole(ctx, role.ID), sentinel.ErrNotFound)

	_, err = s.store.RoleByID(ctx, role.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
