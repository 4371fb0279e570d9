package participation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	id "participation/pkg/domain"
	"participation/pkg/platform/sentinel"
	txcontext "participation/pkg/platform/tx"
)

// PostgresStore persists participation records in PostgreSQL.
//
// One-way mutations (revoke, invalidate) are single UPDATE statements guarded
// by the terminal flag, so the state re-check required by the concurrency
// model happens inside the database: a second writer sees zero rows affected
// and gets sentinel.ErrInvalidState.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// InTx begins a transaction, stores it in the context, and commits when fn
// returns nil. A mutation and its audit entry ride the same transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx) // already inside a transaction
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Event(ctx context.Context, eventID id.EventID) (*Event, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, title, start_time, total_days
		FROM events
		WHERE id = $1
	`, eventID)
	var event Event
	if err := row.Scan(&event.ID, &event.Title, &event.StartTime, &event.TotalDays); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select event: %w", err)
	}
	return &event, nil
}

func (s *PostgresStore) Registration(ctx context.Context, eventID id.EventID, studentID id.StudentID) (*Registration, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT event_id, student_id, created_at
		FROM registrations
		WHERE event_id = $1 AND student_id = $2
	`, eventID, studentID)
	var reg Registration
	if err := row.Scan(&reg.EventID, &reg.StudentID, &reg.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select registration: %w", err)
	}
	return &reg, nil
}

func (s *PostgresStore) RegistrationsByEvent(ctx context.Context, eventID id.EventID) ([]Registration, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT event_id, student_id, created_at
		FROM registrations
		WHERE event_id = $1
		ORDER BY created_at, student_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("select registrations: %w", err)
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var reg Registration
		if err := rows.Scan(&reg.EventID, &reg.StudentID, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

const attendanceColumns = `
	id, event_id, student_id, day_number, scanned_at, scan_source,
	scanner_actor_id, invalidated, invalidated_at, invalidated_by,
	invalidation_reason`

func scanAttendance(scanner interface{ Scan(...any) error }) (AttendanceRecord, error) {
	var rec AttendanceRecord
	var invalidatedAt sql.NullTime
	var invalidatedBy, invalidationReason sql.NullString
	err := scanner.Scan(
		&rec.ID, &rec.EventID, &rec.StudentID, &rec.DayNumber, &rec.ScannedAt,
		&rec.ScanSource, &rec.ScannerActorID, &rec.Invalidated,
		&invalidatedAt, &invalidatedBy, &invalidationReason,
	)
	if err != nil {
		return AttendanceRecord{}, err
	}
	if invalidatedAt.Valid {
		t := invalidatedAt.Time
		rec.InvalidatedAt = &t
	}
	rec.InvalidatedBy = id.ActorID(invalidatedBy.String)
	rec.InvalidationReason = invalidationReason.String
	return rec, nil
}

func (s *PostgresStore) AttendanceByID(ctx context.Context, attendanceID id.AttendanceID) (*AttendanceRecord, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE id = $1
	`, attendanceID)
	rec, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select attendance: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) AttendanceFor(ctx context.Context, eventID id.EventID, studentID id.StudentID) ([]AttendanceRecord, error) {
	return s.listAttendance(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE event_id = $1 AND student_id = $2
		ORDER BY scanned_at, id
	`, eventID, studentID)
}

func (s *PostgresStore) AttendanceByEvent(ctx context.Context, eventID id.EventID) ([]AttendanceRecord, error) {
	return s.listAttendance(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE event_id = $1
		ORDER BY scanned_at, id
	`, eventID)
}

func (s *PostgresStore) listAttendance(ctx context.Context, query string, args ...any) ([]AttendanceRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select attendance records: %w", err)
	}
	defer rows.Close()

	var out []AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertAttendance(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, error) {
	if rec.ID == "" {
		rec.ID = id.AttendanceID(uuid.NewString())
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	if rec.DayNumber == 0 {
		rec.DayNumber = 1
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO attendance_records
			(id, event_id, student_id, day_number, scanned_at, scan_source, scanner_actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.EventID, rec.StudentID, rec.DayNumber, rec.ScannedAt, rec.ScanSource, rec.ScannerActorID)
	if err != nil {
		return AttendanceRecord{}, fmt.Errorf("insert attendance: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) InvalidateAttendance(ctx context.Context, attendanceID id.AttendanceID, by id.ActorID, reason string, at time.Time) (*AttendanceRecord, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		UPDATE attendance_records
		SET invalidated = TRUE, invalidated_at = $2, invalidated_by = $3, invalidation_reason = $4
		WHERE id = $1 AND NOT invalidated
		RETURNING `+attendanceColumns+`
	`, attendanceID, at, by, reason)
	rec, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.attendanceWriteMiss(ctx, attendanceID)
		}
		return nil, fmt.Errorf("invalidate attendance: %w", err)
	}
	return &rec, nil
}

// attendanceWriteMiss disambiguates a guarded-update miss: the record either
// does not exist or is already invalidated.
func (s *PostgresStore) attendanceWriteMiss(ctx context.Context, attendanceID id.AttendanceID) error {
	var invalidated bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT invalidated FROM attendance_records WHERE id = $1`, attendanceID,
	).Scan(&invalidated)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("recheck attendance: %w", err)
	}
	return sentinel.ErrInvalidState
}

const certificateColumns = `
	certificate_id, event_id, student_id, role_type, issued_at, revoked,
	revoked_at, revoked_by, revocation_reason, verification_hash`

func scanCertificate(scanner interface{ Scan(...any) error }) (CertificateRecord, error) {
	var cert CertificateRecord
	var studentID sql.NullString
	var revokedAt sql.NullTime
	var revokedBy, revocationReason sql.NullString
	err := scanner.Scan(
		&cert.ID, &cert.EventID, &studentID, &cert.RoleType, &cert.IssuedAt,
		&cert.Revoked, &revokedAt, &revokedBy, &revocationReason,
		&cert.VerificationHash,
	)
	if err != nil {
		return CertificateRecord{}, err
	}
	cert.StudentID = id.StudentID(studentID.String)
	if revokedAt.Valid {
		t := revokedAt.Time
		cert.RevokedAt = &t
	}
	cert.RevokedBy = id.ActorID(revokedBy.String)
	cert.RevocationReason = revocationReason.String
	return cert, nil
}

func (s *PostgresStore) CertificateByID(ctx context.Context, certificateID id.CertificateID) (*CertificateRecord, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+certificateColumns+`
		FROM certificate_records
		WHERE certificate_id = $1
	`, certificateID)
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select certificate: %w", err)
	}
	return &cert, nil
}

func (s *PostgresStore) CertificatesFor(ctx context.Context, eventID id.EventID, studentID id.StudentID) ([]CertificateRecord, error) {
	return s.listCertificates(ctx, `
		SELECT `+certificateColumns+`
		FROM certificate_records
		WHERE event_id = $1 AND student_id = $2
		ORDER BY issued_at, certificate_id
	`, eventID, studentID)
}

func (s *PostgresStore) CertificatesByEvent(ctx context.Context, eventID id.EventID) ([]CertificateRecord, error) {
	return s.listCertificates(ctx, `
		SELECT `+certificateColumns+`
		FROM certificate_records
		WHERE event_id = $1
		ORDER BY issued_at, certificate_id
	`, eventID)
}

func (s *PostgresStore) listCertificates(ctx context.Context, query string, args ...any) ([]CertificateRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select certificates: %w", err)
	}
	defer rows.Close()

	var out []CertificateRecord
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RevokeCertificate(ctx context.Context, certificateID id.CertificateID, by id.ActorID, reason string, at time.Time) (*CertificateRecord, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		UPDATE certificate_records
		SET revoked = TRUE, revoked_at = $2, revoked_by = $3, revocation_reason = $4
		WHERE certificate_id = $1 AND NOT revoked
		RETURNING `+certificateColumns+`
	`, certificateID, at, by, reason)
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.certificateWriteMiss(ctx, certificateID)
		}
		return nil, fmt.Errorf("revoke certificate: %w", err)
	}
	return &cert, nil
}

func (s *PostgresStore) certificateWriteMiss(ctx context.Context, certificateID id.CertificateID) error {
	var revoked bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT revoked FROM certificate_records WHERE certificate_id = $1`, certificateID,
	).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("recheck certificate: %w", err)
	}
	return sentinel.ErrInvalidState
}

const roleColumns = `id, event_id, student_id, role, assigned_at, assigned_by, time_segment`

func scanRole(scanner interface{ Scan(...any) error }) (RoleAssignment, error) {
	var role RoleAssignment
	var segment sql.NullString
	err := scanner.Scan(
		&role.ID, &role.EventID, &role.StudentID, &role.Role,
		&role.AssignedAt, &role.AssignedBy, &segment,
	)
	if err != nil {
		return RoleAssignment{}, err
	}
	role.TimeSegment = segment.String
	return role, nil
}

func (s *PostgresStore) RoleByID(ctx context.Context, roleID id.RoleID) (*RoleAssignment, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+roleColumns+` FROM role_assignments WHERE id = $1
	`, roleID)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select role: %w", err)
	}
	return &role, nil
}

func (s *PostgresStore) RolesFor(ctx context.Context, eventID id.EventID, studentID id.StudentID) ([]RoleAssignment, error) {
	return s.listRoles(ctx, `
		SELECT `+roleColumns+` FROM role_assignments
		WHERE event_id = $1 AND student_id = $2
		ORDER BY assigned_at, id
	`, eventID, studentID)
}

func (s *PostgresStore) RolesByEvent(ctx context.Context, eventID id.EventID) ([]RoleAssignment, error) {
	return s.listRoles(ctx, `
		SELECT `+roleColumns+` FROM role_assignments
		WHERE event_id = $1
		ORDER BY assigned_at, id
	`, eventID)
}

func (s *PostgresStore) RolesByStudent(ctx context.Context, studentID id.StudentID) ([]RoleAssignment, error) {
	return s.listRoles(ctx, `
		SELECT `+roleColumns+` FROM role_assignments
		WHERE student_id = $1
		ORDER BY assigned_at, id
	`, studentID)
}

func (s *PostgresStore) listRoles(ctx context.Context, query string, args ...any) ([]RoleAssignment, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	defer rows.Close()

	var out []RoleAssignment
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertRole(ctx context.Context, role RoleAssignment) (RoleAssignment, error) {
	if role.ID == "" {
		role.ID = id.RoleID(uuid.NewString())
	}
	if role.AssignedAt.IsZero() {
		role.AssignedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO role_assignments (id, event_id, student_id, role, assigned_at, assigned_by, time_segment)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, role.ID, role.EventID, role.StudentID, role.Role, role.AssignedAt, role.AssignedBy, role.TimeSegment)
	if err != nil {
		return RoleAssignment{}, fmt.Errorf("insert role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM role_assignments WHERE id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete role rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
