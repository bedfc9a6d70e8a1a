package pricing

import (
	"context"
	"time"

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

const ruleCols = `id, membership_type, time_slot, tag_status, treatment_type,
	amount, effective_from, effective_to, is_active, locale, is_deleted,
	created_at, updated_at`

func scanRule(row pgx.Row) (*PricingRule, error) {
	var p PricingRule
	err := row.Scan(&p.ID, &p.MembershipType, &p.TimeSlot, &p.TagStatus, &p.TreatmentType,
		&p.Amount, &p.EffectiveFrom, &p.EffectiveTo, &p.IsActive, &p.Locale, &p.IsDeleted,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *PricingRule) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO pricing_rules (id, membership_type, time_slot, tag_status,
			treatment_type, amount, effective_from, effective_to, is_active, locale)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.MembershipType, p.TimeSlot, p.TagStatus, p.TreatmentType,
		p.Amount, p.EffectiveFrom, p.EffectiveTo, p.IsActive, p.Locale)
	return err
}

func (r *repoPG) Update(ctx context.Context, p *PricingRule) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE pricing_rules SET amount=$2, effective_from=$3, effective_to=$4,
			is_active=$5, locale=$6, updated_at=NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		p.ID, p.Amount, p.EffectiveFrom, p.EffectiveTo, p.IsActive, p.Locale)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*PricingRule, error) {
	return scanRule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ruleCols+` FROM pricing_rules WHERE id = $1 AND is_deleted = FALSE`, id))
}

func (r *repoPG) List(ctx context.Context, onlyActive bool, limit, offset int) ([]*PricingRule, int, error) {
	where := ` WHERE is_deleted = FALSE`
	if onlyActive {
		where += ` AND is_active = TRUE`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM pricing_rules`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+` FROM pricing_rules`+where+
		` ORDER BY effective_from DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*PricingRule
	for rows.Next() {
		p, err := scanRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) FindEffective(ctx context.Context, q Quadruple, onDate time.Time) (*PricingRule, error) {
	p, err := scanRule(r.conn(ctx).QueryRow(ctx, `
		SELECT `+ruleCols+` FROM pricing_rules
		WHERE membership_type = $1 AND time_slot = $2 AND tag_status = $3
			AND treatment_type = $4 AND is_active = TRUE AND is_deleted = FALSE
			AND effective_from <= $5::date
			AND (effective_to IS NULL OR effective_to >= $5::date)
		ORDER BY effective_from DESC
		LIMIT 1`,
		q.MembershipType, q.TimeSlot, q.TagStatus, q.TreatmentType,
		onDate.Format("2006-01-02")))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) ListOverlapping(ctx context.Context, q Quadruple, from time.Time, to *time.Time, excludeID uuid.UUID) ([]*PricingRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM pricing_rules
		WHERE membership_type = $1 AND time_slot = $2 AND tag_status = $3
			AND treatment_type = $4 AND is_active = TRUE AND is_deleted = FALSE
			AND (effective_to IS NULL OR effective_to >= $5)
			AND ($6::date IS NULL OR effective_from <= $6)
			AND id <> $7`,
		q.MembershipType, q.TimeSlot, q.TagStatus, q.TreatmentType, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*PricingRule
	for rows.Next() {
		p, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
