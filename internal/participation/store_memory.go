package participation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	id "participation/pkg/domain"
	"participation/pkg/platform/sentinel"
)

// InMemoryStore keeps all participation records behind one mutex. It is the
// unit-test substrate and the dev default; the single lock gives the same
// write serialization per record that the postgres store gets from guarded
// updates.
type InMemoryStore struct {
	mu            sync.RWMutex
	events        map[id.EventID]Event
	registrations map[id.EventID][]Registration
	attendance    map[id.AttendanceID]AttendanceRecord
	certificates  map[id.CertificateID]CertificateRecord
	roles         map[id.RoleID]RoleAssignment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:        make(map[id.EventID]Event),
		registrations: make(map[id.EventID][]Registration),
		attendance:    make(map[id.AttendanceID]AttendanceRecord),
		certificates:  make(map[id.CertificateID]CertificateRecord),
		roles:         make(map[id.RoleID]RoleAssignment),
	}
}

// SeedEvent inserts or replaces an event definition.
func (s *InMemoryStore) SeedEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
}

// SeedRegistration inserts a registration row.
func (s *InMemoryStore) SeedRegistration(reg Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations[reg.EventID] = append(s.registrations[reg.EventID], reg)
}

// SeedCertificate inserts or replaces a certificate row.
func (s *InMemoryStore) SeedCertificate(cert CertificateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certificates[cert.ID] = cert
}

func (s *InMemoryStore) Event(_ context.Context, eventID id.EventID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &event, nil
}

func (s *InMemoryStore) Registration(_ context.Context, eventID id.EventID, studentID id.StudentID) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, reg := range s.registrations[eventID] {
		if reg.StudentID == studentID {
			out := reg
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) RegistrationsByEvent(_ context.Context, eventID id.EventID) ([]Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Registration{}, s.registrations[eventID]...), nil
}

func (s *InMemoryStore) AttendanceByID(_ context.Context, attendanceID id.AttendanceID) (*AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attendance[attendanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *InMemoryStore) AttendanceFor(_ context.Context, eventID id.EventID, studentID id.StudentID) ([]AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AttendanceRecord
	for _, rec := range s.attendance {
		if rec.EventID == eventID && rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	sortAttendance(out)
	return out, nil
}

func (s *InMemoryStore) AttendanceByEvent(_ context.Context, eventID id.EventID) ([]AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AttendanceRecord
	for _, rec := range s.attendance {
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	sortAttendance(out)
	return out, nil
}

func (s *InMemoryStore) InsertAttendance(_ context.Context, rec AttendanceRecord) (AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = id.AttendanceID(uuid.NewString())
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	if rec.DayNumber == 0 {
		rec.DayNumber = 1
	}
	s.attendance[rec.ID] = rec
	return rec, nil
}

func (s *InMemoryStore) InvalidateAttendance(_ context.Context, attendanceID id.AttendanceID, by id.ActorID, reason string, at time.Time) (*AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attendance[attendanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if rec.Invalidated {
		return nil, sentinel.ErrInvalidState
	}
	rec.Invalidated = true
	rec.InvalidatedAt = &at
	rec.InvalidatedBy = by
	rec.InvalidationReason = reason
	s.attendance[attendanceID] = rec
	return &rec, nil
}

func (s *InMemoryStore) CertificateByID(_ context.Context, certificateID id.CertificateID) (*CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certificates[certificateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &cert, nil
}

func (s *InMemoryStore) CertificatesFor(_ context.Context, eventID id.EventID, studentID id.StudentID) ([]CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CertificateRecord
	for _, cert := range s.certificates {
		if cert.EventID == eventID && cert.StudentID == studentID {
			out = append(out, cert)
		}
	}
	sortCertificates(out)
	return out, nil
}

func (s *InMemoryStore) CertificatesByEvent(_ context.Context, eventID id.EventID) ([]CertificateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CertificateRecord
	for _, cert := range s.certificates {
		if cert.EventID == eventID {
			out = append(out, cert)
		}
	}
	sortCertificates(out)
	return out, nil
}

func (s *InMemoryStore) RevokeCertificate(_ context.Context, certificateID id.CertificateID, by id.ActorID, reason string, at time.Time) (*CertificateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certificates[certificateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if cert.Revoked {
		return nil, sentinel.ErrInvalidState
	}
	cert.Revoked = true
	cert.RevokedAt = &at
	cert.RevokedBy = by
	cert.RevocationReason = reason
	s.certificates[certificateID] = cert
	return &cert, nil
}

func (s *InMemoryStore) RoleByID(_ context.Context, roleID id.RoleID) (*RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[roleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &role, nil
}

func (s *InMemoryStore) RolesFor(_ context.Context, eventID id.EventID, studentID id.StudentID) ([]RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RoleAssignment
	for _, role := range s.roles {
		if role.EventID == eventID && role.StudentID == studentID {
			out = append(out, role)
		}
	}
	sortRoles(out)
	return out, nil
}

func (s *InMemoryStore) RolesByEvent(_ context.Context, eventID id.EventID) ([]RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RoleAssignment
	for _, role := range s.roles {
		if role.EventID == eventID {
			out = append(out, role)
		}
	}
	sortRoles(out)
	return out, nil
}

func (s *InMemoryStore) RolesByStudent(_ context.Context, studentID id.StudentID) ([]RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RoleAssignment
	for _, role := range s.roles {
		if role.StudentID == studentID {
			out = append(out, role)
		}
	}
	sortRoles(out)
	return out, nil
}

func (s *InMemoryStore) InsertRole(_ context.Context, role RoleAssignment) (RoleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == "" {
		role.ID = id.RoleID(uuid.NewString())
	}
	if role.AssignedAt.IsZero() {
		role.AssignedAt = time.Now().UTC()
	}
	s.roles[role.ID] = role
	return role, nil
}

func (s *InMemoryStore) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.roles, roleID)
	return nil
}

// InTx has no rollback to offer; the per-method mutex already makes each
// mutation atomic, so fn just runs with the same context.
func (s *InMemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Map iteration order must not leak into results, so every list read is
// sorted chronologically with the ID as tiebreaker.

func sortAttendance(recs []AttendanceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].ScannedAt.Equal(recs[j].ScannedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].ScannedAt.Before(recs[j].ScannedAt)
	})
}

func sortCertificates(certs []CertificateRecord) {
	sort.Slice(certs, func(i, j int) bool {
		if certs[i].IssuedAt.Equal(certs[j].IssuedAt) {
			return certs[i].ID < certs[j].ID
		}
		return certs[i].IssuedAt.Before(certs[j].IssuedAt)
	})
}

func sortRoles(roles []RoleAssignment) {
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].AssignedAt.Equal(roles[j].AssignedAt) {
			return roles[i].ID < roles[j].ID
		}
		return roles[i].AssignedAt.Before(roles[j].AssignedAt)
	})
}
