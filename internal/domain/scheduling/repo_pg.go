package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const (
	slotHeldConstraint       = "appointment_slot_held"
	idempotencyKeyConstraint = "appointment_idempotency_key"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, requester_id, requester_name, nurse_id, nurse_name,
	to_char(appointment_date, 'YYYY-MM-DD'), appointment_time, notes, status,
	version_id, idempotency_key, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.RequesterID, &a.RequesterName, &a.NurseID, &a.NurseName,
		&a.Date, &a.Time, &a.Notes, &a.Status,
		&a.VersionID, &a.IdempotencyKey, &a.CreatedAt, &a.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.VersionID == 0 {
		a.VersionID = 1
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, requester_id, requester_name, nurse_id, nurse_name,
			appointment_date, appointment_time, notes, status, version_id, idempotency_key)
		VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		a.ID, a.RequesterID, a.RequesterName, a.NurseID, a.NurseName,
		a.Date, a.Time, a.Notes, a.Status, a.VersionID, a.IdempotencyKey,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err, slotHeldConstraint):
		return ErrSlotTaken
	case db.IsUniqueViolation(err, idempotencyKeyConstraint):
		return ErrDuplicateBooking
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: nurse or requester no longer exists", ErrNotFound)
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetByIdempotencyKey(ctx context.Context, requesterID uuid.UUID, key string) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE requester_id = $1 AND idempotency_key = $2`,
		requesterID, key))
}

// scopeClause renders the row filter for scope starting at placeholder idx.
func scopeClause(scope access.Scope, idx int) (string, []interface{}) {
	switch scope.Kind {
	case access.ScopeAll:
		return "", nil
	case access.ScopeRequester:
		return fmt.Sprintf(` AND requester_id = $%d`, idx), []interface{}{scope.SubjectID}
	case access.ScopeNurse:
		return fmt.Sprintf(` AND nurse_id = $%d`, idx), []interface{}{scope.SubjectID}
	default:
		return ` AND FALSE`, nil
	}
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter) ([]*Appointment, int, error) {
	where, args := scopeClause(f.Scope, 1)
	idx := len(args) + 1

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where += fmt.Sprintf(` AND status = ANY($%d)`, idx)
		args = append(args, statuses)
		idx++
	}
	if f.Date != "" {
		where += fmt.Sprintf(` AND appointment_date = $%d::date`, idx)
		args = append(args, f.Date)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointments WHERE 1=1` + where +
		fmt.Sprintf(` ORDER BY appointment_date DESC, appointment_time DESC, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, next *Appointment, expectedVersion int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET status = $1, version_id = $2, updated_at = $3
		WHERE id = $4 AND version_id = $5`,
		next.Status, next.VersionID, next.UpdatedAt, next.ID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, next.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *appointmentRepoPG) CountByStatus(ctx context.Context, scope access.Scope) (map[Status]int, error) {
	where, args := scopeClause(scope, 1)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM appointments WHERE 1=1`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int, 4)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(strings.TrimSpace(status))] = n
	}
	return counts, rows.Err()
}
