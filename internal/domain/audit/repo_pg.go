package audit

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Create(ctx context.Context, l *AuditLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, actor_id, change)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.ID, l.Action, l.EntityType, l.EntityID, l.ActorID, l.Change)
	return err
}

func (r *repoPG) List(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]*AuditLog, int, error) {
	where := ``
	args := []interface{}{}
	idx := 0
	if entityType != "" {
		idx++
		where += fmt.Sprintf(` AND entity_type = $%d`, idx)
		args = append(args, entityType)
	}
	if entityID != uuid.Nil {
		idx++
		where += fmt.Sprintf(` AND entity_id = $%d`, idx)
		args = append(args, entityID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE TRUE`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT id, action, entity_type, entity_id, actor_id, change, created_at
		FROM audit_logs WHERE TRUE`+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx+1, idx+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*AuditLog
	for rows.Next() {
		var l AuditLog
		if err := rows.Scan(&l.ID, &l.Action, &l.EntityType, &l.EntityID, &l.ActorID, &l.Change, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &l)
	}
	return out, total, rows.Err()
}

// ---- Sync flags ----

type syncRepoPG struct{ pool *pgxpool.Pool }

func NewSyncRepoPG(pool *pgxpool.Pool) SyncRepository {
	return &syncRepoPG{pool: pool}
}

func (r *syncRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *syncRepoPG) MarkCasesSynced(ctx context.Context, caseNos []string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET is_synced = TRUE, updated_at = NOW()
		WHERE case_no = ANY($1) AND is_deleted = FALSE`, caseNos)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
