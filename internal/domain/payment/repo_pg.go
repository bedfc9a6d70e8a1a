package payment

import (
	"context"

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

const paymentCols = `id, case_id, method, amount, status, gateway_response,
	collected_by, is_collected, is_reconciled, transaction_id, is_deleted,
	created_at, updated_at`

func scanPayment(row pgx.Row) (*CasePayment, error) {
	var p CasePayment
	err := row.Scan(&p.ID, &p.CaseID, &p.Method, &p.Amount, &p.Status, &p.GatewayResponse,
		&p.CollectedBy, &p.IsCollected, &p.IsReconciled, &p.TransactionID, &p.IsDeleted,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *CasePayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO case_payments (id, case_id, method, amount, status,
			gateway_response, collected_by, is_collected, transaction_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.CaseID, p.Method, p.Amount, p.Status,
		p.GatewayResponse, p.CollectedBy, p.IsCollected, p.TransactionID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*CasePayment, error) {
	q := `SELECT ` + paymentCols + ` FROM case_payments WHERE id = $1 AND is_deleted = FALSE`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanPayment(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *repoPG) Update(ctx context.Context, p *CasePayment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE case_payments SET status=$2, gateway_response=$3, collected_by=$4,
			is_collected=$5, is_reconciled=$6, transaction_id=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Status, p.GatewayResponse, p.CollectedBy,
		p.IsCollected, p.IsReconciled, p.TransactionID)
	return err
}

func (r *repoPG) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CasePayment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+paymentCols+` FROM case_payments
		WHERE case_id = $1 AND is_deleted = FALSE ORDER BY created_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CasePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
