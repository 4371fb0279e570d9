package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"participation/internal/participation"
	id "participation/pkg/domain"
	dErrors "participation/pkg/domain-errors"
)

// =============================================================================
// Reconcile Service Test Suite
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	store   *participation.InMemoryStore
	service *Service
	event   participation.Event
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = participation.NewInMemoryStore()
	s.event = participation.Event{
		ID:        "evt-1",
		Title:     "Robotics Expo",
		StartTime: time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC),
		TotalDays: 1,
	}
	s.store.SeedEvent(s.event)

	var err error
	s.service, err = NewService(s.store)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestNewService() {
	s.Run("nil store returns error", func() {
		_, err := NewService(nil)
		s.Error(err)
		s.Contains(err.Error(), "participation store is required")
	})
}

func (s *ServiceSuite) TestCanonicalStatus() {
	ctx := context.Background()

	s.Run("unknown event returns not found", func() {
		_, err := s.service.CanonicalStatus(ctx, "evt-missing", "stu-1")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("student with no records is unknown, not an error", func() {
		res, err := s.service.CanonicalStatus(ctx, s.event.ID, "stu-ghost")
		s.Require().NoError(err)
		s.Equal(StatusUnknown, res.Status)
		s.Equal(60, res.TrustScore)
	})

	s.Run("registered student with a scan is attended", func() {
		s.store.SeedRegistration(participation.Registration{EventID: s.event.ID, StudentID: "stu-1"})
		_, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
			EventID:    s.event.ID,
			StudentID:  "stu-1",
			DayNumber:  1,
			ScanSource: participation.SourceQRScan,
		})
		s.Require().NoError(err)

		res, err := s.service.CanonicalStatus(ctx, s.event.ID, "stu-1")
		s.Require().NoError(err)
		s.Equal(StatusAttendedNoCertificate, res.Status)
		s.Equal(1, res.DaysAttended)
		s.Equal(s.event.ID, res.EventID)
		s.Equal(id.StudentID("stu-1"), res.StudentID)
	})
}

func (s *ServiceSuite) TestEventConflicts() {
	ctx := context.Background()

	s.Run("unknown event returns not found", func() {
		_, err := s.service.EventConflicts(ctx, "evt-missing")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("returns only students with conflicts, sorted", func() {
		// stu-a: clean attended participant.
		s.store.SeedRegistration(participation.Registration{EventID: s.event.ID, StudentID: "stu-a"})
		_, err := s.store.InsertAttendance(ctx, participation.AttendanceRecord{
			EventID: s.event.ID, StudentID: "stu-a", DayNumber: 1, ScanSource: participation.SourceQRScan,
		})
		s.Require().NoError(err)

		// stu-c: certificate with no attendance at all.
		s.store.SeedCertificate(participation.CertificateRecord{
			ID: "cert-c", EventID: s.event.ID, StudentID: "stu-c",
			RoleType: participation.RoleAttendee, IssuedAt: s.event.StartTime.Add(24 * time.Hour),
		})

		// stu-b: walk-in scan without a registration.
		_, err = s.store.InsertAttendance(ctx, participation.AttendanceRecord{
			EventID: s.event.ID, StudentID: "stu-b", DayNumber: 1, ScanSource: participation.SourceQRScan,
		})
		s.Require().NoError(err)

		rows, err := s.service.EventConflicts(ctx, s.event.ID)
		s.Require().NoError(err)
		s.Require().Len(rows, 2)
		s.Equal(id.StudentID("stu-b"), rows[0].StudentID)
		s.Equal(id.StudentID("stu-c"), rows[1].StudentID)

		s.Equal(StatusAttendedNoCertificate, rows[0].Status)
		s.Require().Len(rows[0].Conflicts, 1)
		s.Equal(ConflictAttendanceWithoutRegistration, rows[0].Conflicts[0].Type)

		s.Equal(StatusCertified, rows[1].Status)
		types := conflictTypes(rows[1].Conflicts)
		s.Contains(types, ConflictCertificateWithoutAttendance)
		s.Contains(types, ConflictCertificateWithoutRegistration)
	})

	s.Run("event with no records returns empty", func() {
		s.store.SeedEvent(participation.Event{ID: "evt-empty", TotalDays: 1})
		rows, err := s.service.EventConflicts(ctx, "evt-empty")
		s.NoError(err)
		s.Empty(rows)
	})
}
