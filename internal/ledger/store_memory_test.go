package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"participation/internal/ledger"
	id "participation/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *ledger.InMemoryStore
	base  time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = ledger.NewInMemoryStore()
	s.base = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) append(eventID, studentID string, action ledger.ActionType, at time.Time) ledger.Entry {
	entry, err := s.store.Append(context.Background(), ledger.Entry{
		EventID:    id.EventID(eventID),
		StudentID:  id.StudentID(studentID),
		ActionType: action,
		Timestamp:  at,
	})
	s.Require().NoError(err)
	return entry
}

func (s *MemoryStoreSuite) TestAppendFillsDefaults() {
	entry, err := s.store.Append(context.Background(), ledger.Entry{
		EventID:    "evt-1",
		ActionType: ledger.ActionCertificateRevoked,
	})
	s.Require().NoError(err)
	s.NotEmpty(entry.ID)
	s.False(entry.Timestamp.IsZero())
}

func (s *MemoryStoreSuite) TestListByEventMostRecentFirst() {
	oldest := s.append("evt-1", "stu-a", ledger.ActionAttendanceInvalidated, s.base)
	newest := s.append("evt-1", "stu-b", ledger.ActionCertificateRevoked, s.base.Add(2*time.Hour))
	middle := s.append("evt-1", "stu-a", ledger.ActionRoleAssigned, s.base.Add(time.Hour))
	s.append("evt-other", "stu-a", ledger.ActionCertificateRevoked, s.base)

	listed, err := s.store.ListByEvent(context.Background(), "evt-1", 0)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal(newest.ID, listed[0].ID)
	s.Equal(middle.ID, listed[1].ID)
	s.Equal(oldest.ID, listed[2].ID)

	limited, err := s.store.ListByEvent(context.Background(), "evt-1", 2)
	s.Require().NoError(err)
	s.Require().Len(limited, 2)
	s.Equal(newest.ID, limited[0].ID)
}

func (s *MemoryStoreSuite) TestListByStudentFilters() {
	s.append("evt-1", "stu-a", ledger.ActionAttendanceInvalidated, s.base)
	s.append("evt-1", "stu-b", ledger.ActionCertificateRevoked, s.base.Add(time.Hour))

	listed, err := s.store.ListByStudent(context.Background(), "evt-1", "stu-a", 0)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(id.StudentID("stu-a"), listed[0].StudentID)
}

func (s *MemoryStoreSuite) TestListByActionChronological() {
	second := s.append("evt-1", "stu-a", ledger.ActionCertificateVerified, s.base.Add(time.Hour))
	first := s.append("evt-1", "stu-b", ledger.ActionCertificateVerified, s.base)
	s.append("evt-1", "stu-a", ledger.ActionCertificateRevoked, s.base)

	listed, err := s.store.ListByAction(context.Background(), "evt-1", ledger.ActionCertificateVerified)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(first.ID, listed[0].ID, "oldest first")
	s.Equal(second.ID, listed[1].ID)
}

func (s *MemoryStoreSuite) TestCountByAction() {
	s.append("evt-1", "stu-a", ledger.ActionCertificateRevoked, s.base)
	s.append("evt-1", "stu-b", ledger.ActionCertificateRevoked, s.base)
	s.append("evt-1", "stu-a", ledger.ActionResolutionIgnored, s.base)

	counts, err := s.store.CountByAction(context.Background(), "evt-1")
	s.Require().NoError(err)
	s.Equal(2, counts[ledger.ActionCertificateRevoked])
	s.Equal(1, counts[ledger.ActionResolutionIgnored])
}

func (s *MemoryStoreSuite) TestZeroLimitAppliesDefaultCap() {
	for i := 0; i < 105; i++ {
		s.append("evt-1", "stu-a", ledger.ActionCertificateVerified, s.base.Add(time.Duration(i)*time.Minute))
	}

	listed, err := s.store.ListByEvent(context.Background(), "evt-1", 0)
	s.Require().NoError(err)
	s.Require().Len(listed, 100)
	s.Equal(s.base.Add(104*time.Minute), listed[0].Timestamp)

	byStudent, err := s.store.ListByStudent(context.Background(), "evt-1", "stu-a", 0)
	s.Require().NoError(err)
	s.Len(byStudent, 100)
}
