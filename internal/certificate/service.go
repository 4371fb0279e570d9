package certificate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"participation/internal/ledger"
	"participation/internal/participation"
	id "participation/pkg/domain"
	dErrors "participation/pkg/domain-errors"
	"participation/pkg/platform/sentinel"
	"participation/pkg/requestcontext"
)

// Service answers public certificate verification requests. Verification is
// read-only with respect to participation records, but every lookup that
// finds a certificate leaves a certificate_verified audit entry; the fraud
// scanner uses those to catch revoked certificates still in circulation.
type Service struct {
	records participation.Store
	entries *ledger.Service
	cache   Cache
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCache installs a read-through certificate cache.
func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

func NewService(records participation.Store, entries *ledger.Service, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("participation store is required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	svc := &Service{records: records, entries: entries, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Verify checks a certificate's authenticity. An unknown ID is an ordinary
// negative result, not an error; errors are reserved for infrastructure
// failures.
func (s *Service) Verify(ctx context.Context, certificateID id.CertificateID, providedHash string) (*VerificationResult, error) {
	cert, err := s.lookup(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &VerificationResult{
				Authentic:     false,
				CertificateID: certificateID,
				Message:       "certificate not found in system",
			}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}

	result := &VerificationResult{
		CertificateID: cert.ID,
		StudentID:     cert.StudentID,
		EventID:       cert.EventID,
		IssuedAt:      &cert.IssuedAt,
	}
	if event, err := s.records.Event(ctx, cert.EventID); err == nil {
		result.EventTitle = event.Title
	}

	if cert.Revoked {
		result.Revoked = true
		result.RevocationReason = cert.RevocationReason
		result.Message = "certificate has been revoked"
	} else {
		result.HashValid = true
		if providedHash != "" && cert.VerificationHash != "" {
			result.HashValid = cert.VerificationHash == providedHash
		}
		result.Authentic = result.HashValid
		if result.HashValid {
			result.Message = "certificate is authentic and valid"
		} else {
			result.Message = "certificate ID valid but hash mismatch"
		}
	}

	s.recordVerification(ctx, cert, result)
	return result, nil
}

func (s *Service) lookup(ctx context.Context, certificateID id.CertificateID) (*participation.CertificateRecord, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, certificateID)
		if err != nil {
			s.logger.WarnContext(ctx, "certificate cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	cert, err := s.records.CertificateByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, *cert); err != nil {
			s.logger.WarnContext(ctx, "certificate cache write failed", "error", err)
		}
	}
	return cert, nil
}

// recordVerification is best effort: a verification must not fail because
// the audit write did.
func (s *Service) recordVerification(ctx context.Context, cert *participation.CertificateRecord, result *VerificationResult) {
	_, err := s.entries.Record(ctx, ledger.Entry{
		EventID:    cert.EventID,
		StudentID:  cert.StudentID,
		ActorID:    requestcontext.ActorID(ctx),
		ActionType: ledger.ActionCertificateVerified,
		AfterState: map[string]any{
			"certificate_id": cert.ID.String(),
			"authentic":      result.Authentic,
			"revoked":        result.Revoked,
		},
		Reason:    "certificate verification lookup",
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record verification", "certificate_id", cert.ID, "error", err)
	}
}
