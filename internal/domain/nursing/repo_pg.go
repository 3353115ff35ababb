package nursing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careconnect/careconnect/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type nurseRepoPG struct{ pool *pgxpool.Pool }

func NewNurseRepoPG(pool *pgxpool.Pool) NurseRepository { return &nurseRepoPG{pool: pool} }

func (r *nurseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const nurseCols = `id, name, email, specialization, experience_years, location, available, created_at, updated_at`

func scanNurse(row pgx.Row) (*Nurse, error) {
	var n Nurse
	err := row.Scan(&n.ID, &n.Name, &n.Email, &n.Specialization, &n.ExperienceYears,
		&n.Location, &n.Available, &n.CreatedAt, &n.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *nurseRepoPG) Create(ctx context.Context, n *Nurse) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO nurses (id, name, email, specialization, experience_years, location, available)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		n.ID, n.Name, n.Email, n.Specialization, n.ExperienceYears, n.Location, n.Available,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return ErrAlreadyExists
	}
	return err
}

func (r *nurseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	return scanNurse(r.conn(ctx).QueryRow(ctx, `SELECT `+nurseCols+` FROM nurses WHERE id = $1`, id))
}

func (r *nurseRepoPG) List(ctx context.Context, availableOnly bool) ([]*Nurse, error) {
	query := `SELECT ` + nurseCols + ` FROM nurses`
	if availableOnly {
		query += ` WHERE available`
	}
	query += ` ORDER BY name, id`

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list nurses: %w", err)
	}
	defer rows.Close()

	var items []*Nurse
	for rows.Next() {
		n, err := scanNurse(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *nurseRepoPG) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*Nurse, error) {
	return scanNurse(r.conn(ctx).QueryRow(ctx, `
		UPDATE nurses SET available = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+nurseCols, id, available))
}
