package hierarchy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dairysangam/vetcore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ---- Users ----

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, name, department, mcc_code, mpp_code,
	is_active, is_deleted, created_at, updated_at, updated_by`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Department, &u.MCCCode, &u.MPPCode,
		&u.IsActive, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt, &u.UpdatedBy)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, name, department, mcc_code, mpp_code, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Name, u.Department, u.MCCCode, u.MPPCode, u.IsActive)
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND is_deleted = FALSE`, id))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET name=$2, department=$3, mcc_code=$4, mpp_code=$5,
			is_active=$6, updated_at=NOW(), updated_by=$7
		WHERE id = $1 AND is_deleted = FALSE`,
		u.ID, u.Name, u.Department, u.MCCCode, u.MPPCode, u.IsActive, u.UpdatedBy)
	return err
}

func (r *userRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, by uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET is_deleted=TRUE, is_active=FALSE, updated_at=NOW(), updated_by=$2
		WHERE id = $1`, id, by)
	return err
}

func (r *userRepoPG) List(ctx context.Context, department string, limit, offset int) ([]*User, int, error) {
	where := ` WHERE is_deleted = FALSE`
	args := []interface{}{}
	if department != "" {
		where += ` AND department = $1`
		args = append(args, department)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	idx := len(args)
	q := fmt.Sprintf(`SELECT `+userCols+` FROM users`+where+
		` ORDER BY name LIMIT $%d OFFSET $%d`, idx+1, idx+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *userRepoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ANY($1) AND is_deleted = FALSE ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// ---- Supervisor edges ----

type edgeRepoPG struct{ pool *pgxpool.Pool }

func NewEdgeRepoPG(pool *pgxpool.Pool) EdgeRepository {
	return &edgeRepoPG{pool: pool}
}

func (r *edgeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *edgeRepoPG) Add(ctx context.Context, e *SupervisorEdge) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO supervisor_edges (id, supervisor_id, reportee_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (supervisor_id, reportee_id) DO NOTHING`,
		e.ID, e.SupervisorID, e.ReporteeID)
	return err
}

func (r *edgeRepoPG) Remove(ctx context.Context, supervisorID, reporteeID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM supervisor_edges WHERE supervisor_id = $1 AND reportee_id = $2`,
		supervisorID, reporteeID)
	return err
}

func (r *edgeRepoPG) ReporteeIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT DISTINCT reportee_id FROM supervisor_edges WHERE supervisor_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *edgeRepoPG) ListForSupervisor(ctx context.Context, supervisorID uuid.UUID) ([]*SupervisorEdge, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, supervisor_id, reportee_id, created_at
		FROM supervisor_edges WHERE supervisor_id = $1 ORDER BY created_at`, supervisorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SupervisorEdge
	for rows.Next() {
		var e SupervisorEdge
		if err := rows.Scan(&e.ID, &e.SupervisorID, &e.ReporteeID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
