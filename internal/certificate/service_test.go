package certificate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"participation/internal/ledger"
	"participation/internal/participation"
	"participation/internal/resolution"
	id "participation/pkg/domain"
)

// =============================================================================
// Certificate Verification Test Suite
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	records *participation.InMemoryStore
	entries *ledger.InMemoryStore
	audit   *ledger.Service
	service *Service
	event   participation.Event
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.records = participation.NewInMemoryStore()
	s.entries = ledger.NewInMemoryStore()
	s.event = participation.Event{
		ID:        "evt-1",
		Title:     "Open Source Day",
		StartTime: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
		TotalDays: 1,
	}
	s.records.SeedEvent(s.event)

	var err error
	s.audit, err = ledger.NewService(s.entries, s.records)
	s.Require().NoError(err)
	s.service, err = NewService(s.records, s.audit)
	s.Require().NoError(err)
}

func (s *ServiceSuite) seedCertificate(revoked bool) participation.CertificateRecord {
	issued := s.event.StartTime.Add(24 * time.Hour)
	cert := participation.CertificateRecord{
		ID:               "cert-1",
		EventID:          s.event.ID,
		StudentID:        "stu-1",
		RoleType:         participation.RoleAttendee,
		IssuedAt:         issued,
		VerificationHash: ComputeHash("cert-1", s.event.ID, "stu-1", issued),
	}
	if revoked {
		at := issued.Add(time.Hour)
		cert.Revoked = true
		cert.RevokedAt = &at
		cert.RevocationReason = "issued in error"
	}
	s.records.SeedCertificate(cert)
	return cert
}

func (s *ServiceSuite) TestVerify() {
	ctx := context.Background()

	s.Run("unknown certificate is a negative result, not an error", func() {
		result, err := s.service.Verify(ctx, "cert-missing", "")
		s.Require().NoError(err)
		s.False(result.Authentic)
		s.False(result.HashValid)
		s.Contains(result.Message, "not found")

		entries, err := s.entries.ListByAction(ctx, s.event.ID, ledger.ActionCertificateVerified)
		s.Require().NoError(err)
		s.Empty(entries)
	})

	s.Run("valid certificate without a hash is authentic", func() {
		s.seedCertificate(false)

		result, err := s.service.Verify(ctx, "cert-1", "")
		s.Require().NoError(err)
		s.True(result.Authentic)
		s.True(result.HashValid)
		s.Equal(s.event.Title, result.EventTitle)
		s.Equal(id.StudentID("stu-1"), result.StudentID)
	})

	s.Run("matching hash is authentic, mismatch is not", func() {
		cert := s.seedCertificate(false)

		result, err := s.service.Verify(ctx, cert.ID, cert.VerificationHash)
		s.Require().NoError(err)
		s.True(result.Authentic)

		result, err = s.service.Verify(ctx, cert.ID, "forged")
		s.Require().NoError(err)
		s.False(result.Authentic)
		s.False(result.HashValid)
		s.Contains(result.Message, "hash mismatch")
	})

	s.Run("revoked certificate is never authentic", func() {
		s.seedCertificate(true)

		result, err := s.service.Verify(ctx, "cert-1", "")
		s.Require().NoError(err)
		s.False(result.Authentic)
		s.True(result.Revoked)
		s.Equal("issued in error", result.RevocationReason)
	})

	s.Run("every found certificate leaves a verification entry", func() {
		s.seedCertificate(true)
		before, err := s.entries.ListByAction(ctx, s.event.ID, ledger.ActionCertificateVerified)
		s.Require().NoError(err)

		_, err = s.service.Verify(ctx, "cert-1", "")
		s.Require().NoError(err)
		_, err = s.service.Verify(ctx, "cert-1", "")
		s.Require().NoError(err)

		after, err := s.entries.ListByAction(ctx, s.event.ID, ledger.ActionCertificateVerified)
		s.Require().NoError(err)
		s.Len(after, len(before)+2)
		s.Equal("cert-1", after[len(after)-1].AfterState["certificate_id"])
	})
}

func TestComputeHash(t *testing.T) {
	issued := time.Date(2026, 1, 13, 9, 0, 0, 0, time.UTC)
	first := ComputeHash("cert-1", "evt-1", "stu-1", issued)
	second := ComputeHash("cert-1", "evt-1", "stu-1", issued)
	if first != second {
		t.Fatalf("hash is not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if other := ComputeHash("cert-2", "evt-1", "stu-1", issued); other == first {
		t.Fatal("different certificates must not share a hash")
	}
}

// =============================================================================
// Cache Coherence Tests
// =============================================================================

// mapCache is an in-process Cache for tests. No TTL; entries live until
// evicted.
type mapCache struct {
	records map[id.CertificateID]participation.CertificateRecord
}

func newMapCache() *mapCache {
	return &mapCache{records: map[id.CertificateID]participation.CertificateRecord{}}
}

func (c *mapCache) Get(_ context.Context, certificateID id.CertificateID) (*participation.CertificateRecord, error) {
	if cert, ok := c.records[certificateID]; ok {
		return &cert, nil
	}
	return nil, nil
}

func (c *mapCache) Set(_ context.Context, cert participation.CertificateRecord) error {
	c.records[cert.ID] = cert
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, certificateID id.CertificateID) error {
	delete(c.records, certificateID)
	return nil
}

// A revocation must be visible to the very next verification even when the
// record was cached beforehand.
func (s *ServiceSuite) TestVerifyAfterRevocationWithCache() {
	ctx := context.Background()
	cache := newMapCache()

	verifier, err := NewService(s.records, s.audit, WithCache(cache))
	s.Require().NoError(err)
	revoker, err := resolution.NewService(s.records, s.audit,
		resolution.WithCertificateCache(cache))
	s.Require().NoError(err)

	cert := s.seedCertificate(false)

	before, err := verifier.Verify(ctx, cert.ID, "")
	s.Require().NoError(err)
	s.True(before.Authentic)
	cached, err := cache.Get(ctx, cert.ID)
	s.Require().NoError(err)
	s.Require().NotNil(cached)

	_, err = revoker.RevokeCertificate(ctx, cert.ID, "admin-1", "reported fraudulent")
	s.Require().NoError(err)

	after, err := verifier.Verify(ctx, cert.ID, "")
	s.Require().NoError(err)
	s.False(after.Authentic)
	s.True(after.Revoked)
	s.Equal("reported fraudulent", after.RevocationReason)
	s.Contains(after.Message, "revoked")
}
