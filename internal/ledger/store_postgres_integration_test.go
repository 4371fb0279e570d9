//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"participation/internal/ledger"
	id "participation/pkg/domain"
	"participation/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
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
	s.store = ledger.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "audit_entries"))
}

func (s *PostgresStoreSuite) append(eventID, studentID string, action ledger.ActionType, at time.Time) ledger.Entry {
	entry, err := s.store.Append(context.Background(), ledger.Entry{
		EventID:    id.EventID(eventID),
		StudentID:  id.StudentID(studentID),
		ActorID:    "admin-1",
		ActionType: action,
		Timestamp:  at,
	})
	s.Require().NoError(err)
	return entry
}

func (s *PostgresStoreSuite) TestAppendDefaults() {
	entry, err := s.store.Append(context.Background(), ledger.Entry{
		EventID:    "evt-1",
		ActorID:    "admin-1",
		ActionType: ledger.ActionCertificateRevoked,
		Reason:     "issued in error",
		BeforeState: map[string]any{
			"revoked": false,
		},
		AfterState: map[string]any{
			"revoked": true,
		},
	})
	s.Require().NoError(err)
	s.NotEmpty(entry.ID, "missing id should be generated")
	s.False(entry.Timestamp.IsZero(), "missing timestamp should be filled")

	listed, err := s.store.ListByEvent(context.Background(), "evt-1", 10)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(entry.ID, listed[0].ID)
	s.Equal("issued in error", listed[0].Reason)
	s.Equal(false, listed[0].BeforeState["revoked"])
	s.Equal(true, listed[0].AfterState["revoked"])
	s.Empty(listed[0].StudentID, "event level entries carry no student")
}

func (s *PostgresStoreSuite) TestListByEventMostRecentFirst() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	oldest := s.append("evt-1", "stu-a", ledger.ActionAttendanceInvalidated, base.Add(-2*time.Hour))
	newest := s.append("evt-1", "stu-a", ledger.ActionCertificateRevoked, base)
	middle := s.append("evt-1", "stu-b", ledger.ActionRoleAssigned, base.Add(-time.Hour))
	s.append("evt-other", "stu-a", ledger.ActionCertificateRevoked, base)

	listed, err := s.store.ListByEvent(context.Background(), "evt-1", 10)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal(newest.ID, listed[0].ID)
	s.Equal(middle.ID, listed[1].ID)
	s.Equal(oldest.ID, listed[2].ID)

	limited, err := s.store.ListByEvent(context.Background(), "evt-1", 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
}

func (s *PostgresStoreSuite) TestListByStudent() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	s.append("evt-1", "stu-a", ledger.ActionAttendanceInvalidated, base.Add(-time.Hour))
	s.append("evt-1", "stu-b", ledger.ActionCertificateRevoked, base)

	listed, err := s.store.ListByStudent(context.Background(), "evt-1", "stu-a", 10)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(id.StudentID("stu-a"), listed[0].StudentID)
}

func (s *PostgresStoreSuite) TestListByActionChronological() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	second := s.append("evt-1", "stu-a", ledger.ActionCertificateVerified, base)
	first := s.append("evt-1", "stu-b", ledger.ActionCertificateVerified, base.Add(-time.Hour))
	s.append("evt-1", "stu-a", ledger.ActionCertificateRevoked, base)

	listed, err := s.store.ListByAction(context.Background(), "evt-1", ledger.ActionCertificateVerified)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(first.ID, listed[0].ID, "oldest first")
	s.Equal(second.ID, listed[1].ID)
}

func (s *PostgresStoreSuite) TestCountByAction() {
	base := time.Now().UTC().Truncate(time.Microsecond)
	s.append("evt-1", "stu-a", ledger.ActionCertificateRevoked, base)
	s.append("evt-1", "stu-b", ledger.ActionCertificateRevoked, base)
	s.append("evt-1", "stu-a", ledger.ActionAttendanceInvalidated, base)

	counts, err := s.store.CountByAction(context.Background(), "evt-1")
	s.Require().NoError(err)
	s.Equal(2, counts[ledger.ActionCertificateRevoked])
	s.Equal(1, counts[ledger.ActionAttendanceInvalidated])
	s.Zero(counts[ledger.ActionRoleAssigned])
}
