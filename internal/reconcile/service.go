package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"participation/internal/participation"
	"participation/internal/platform/metrics"
	id "participation/pkg/domain"
	dErrors "participation/pkg/domain-errors"
	"participation/pkg/platform/sentinel"
)

// Service loads the records behind one (event, student) pair and derives its
// canonical participation state. All derivation is read-only.
type Service struct {
	records participation.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(records participation.Store, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("participation store is required")
	}
	svc := &Service{records: records, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CanonicalStatus resolves one (event, student) pair. A missing registration,
// attendance, or certificate is meaningful input; only a missing event is an
// error.
func (s *Service) CanonicalStatus(ctx context.Context, eventID id.EventID, studentID id.StudentID) (*Result, error) {
	src, err := s.loadSources(ctx, eventID, studentID)
	if err != nil {
		return nil, err
	}

	res := Derive(src)
	res.EventID = eventID
	res.StudentID = studentID

	if s.metrics != nil {
		s.metrics.IncStatusResolved(string(res.Status))
		for _, c := range res.Conflicts {
			s.metrics.IncConflictDetected(string(c.Type), string(c.Severity))
		}
	}
	return &res, nil
}

// EventConflicts resolves every student with any record for the event and
// returns the rows that carry at least one conflict.
func (s *Service) EventConflicts(ctx context.Context, eventID id.EventID) ([]StudentConflicts, error) {
	event, err := s.records.Event(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}

	var (
		regs  []participation.Registration
		scans []participation.AttendanceRecord
		certs []participation.CertificateRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		regs, err = s.records.RegistrationsByEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		scans, err = s.records.AttendanceByEvent(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		certs, err = s.records.CertificatesByEvent(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event records")
	}

	byStudent := map[id.StudentID]*Sources{}
	sources := func(studentID id.StudentID) *Sources {
		src, ok := byStudent[studentID]
		if !ok {
			src = &Sources{Event: event}
			byStudent[studentID] = src
		}
		return src
	}
	for i := range regs {
		sources(regs[i].StudentID).Registration = &regs[i]
	}
	for _, rec := range scans {
		src := sources(rec.StudentID)
		src.Attendance = append(src.Attendance, rec)
	}
	for _, cert := range certs {
		src := sources(cert.StudentID)
		src.Certificates = append(src.Certificates, cert)
	}

	var rows []StudentConflicts
	for studentID, src := range byStudent {
		res := Derive(*src)
		if len(res.Conflicts) == 0 {
			continue
		}
		if s.metrics != nil {
			for _, c := range res.Conflicts {
				s.metrics.IncConflictDetected(string(c.Type), string(c.Severity))
			}
		}
		rows = append(rows, StudentConflicts{
			StudentID:  studentID,
			Status:     res.Status,
			Conflicts:  res.Conflicts,
			TrustScore: res.TrustScore,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StudentID < rows[j].StudentID })

	s.logger.InfoContext(ctx, "event conflicts computed",
		"event_id", eventID,
		"students", len(byStudent),
		"with_conflicts", len(rows))
	return rows, nil
}

func (s *Service) loadSources(ctx context.Context, eventID id.EventID, studentID id.StudentID) (Sources, error) {
	var src Sources

	event, err := s.records.Event(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return src, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return src, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	src.Event = event

	reg, err := s.records.Registration(ctx, eventID, studentID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return src, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	src.Registration = reg

	src.Attendance, err = s.records.AttendanceFor(ctx, eventID, studentID)
	if err != nil {
		return src, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	src.Certificates, err = s.records.CertificatesFor(ctx, eventID, studentID)
	if err != nil {
		return src, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificates")
	}
	return src, nil
}
