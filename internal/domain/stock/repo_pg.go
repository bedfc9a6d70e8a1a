package stock

import (
	"context"
	"fmt"
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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// ---- Medicines ----

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository {
	return &medicineRepoPG{pool: pool}
}

const medicineCols = `id, name, unit, is_active, is_deleted, created_at, updated_at`

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.Unit, &m.IsActive, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO medicines (id, name, unit, is_active) VALUES ($1,$2,$3,$4)`,
		m.ID, m.Name, m.Unit, m.IsActive)
	return err
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medicineCols+` FROM medicines WHERE id = $1 AND is_deleted = FALSE`, id))
}

func (r *medicineRepoPG) List(ctx context.Context, limit, offset int) ([]*Medicine, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM medicines WHERE is_deleted = FALSE`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+medicineCols+` FROM medicines
		WHERE is_deleted = FALSE ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// ---- Stock rows ----

type stockRepoPG struct{ pool *pgxpool.Pool }

func NewStockRepoPG(pool *pgxpool.Pool) StockRepository {
	return &stockRepoPG{pool: pool}
}

const stockCols = `id, medicine_id, location, batch_number, expiry_date,
	total_quantity, reserved_quantity, is_synced, is_deleted, created_at, updated_at`

func scanStock(row pgx.Row) (*MedicineStock, error) {
	var s MedicineStock
	err := row.Scan(&s.ID, &s.MedicineID, &s.Location, &s.BatchNumber, &s.ExpiryDate,
		&s.Total, &s.Reserved, &s.IsSynced, &s.IsDeleted, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *stockRepoPG) Create(ctx context.Context, s *MedicineStock) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medicine_stocks (id, medicine_id, location, batch_number,
			expiry_date, total_quantity, reserved_quantity)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.MedicineID, s.Location, s.BatchNumber, s.ExpiryDate, s.Total, s.Reserved)
	return err
}

func (r *stockRepoPG) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*MedicineStock, error) {
	q := `SELECT ` + stockCols + ` FROM medicine_stocks WHERE id = $1 AND is_deleted = FALSE`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanStock(conn(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *stockRepoPG) Update(ctx context.Context, s *MedicineStock) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE medicine_stocks SET total_quantity=$2, reserved_quantity=$3,
			expiry_date=$4, is_synced=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Total, s.Reserved, s.ExpiryDate, s.IsSynced)
	return err
}

func (r *stockRepoPG) FindByKey(ctx context.Context, medicineID uuid.UUID, location, batch string, forUpdate bool) (*MedicineStock, error) {
	q := `SELECT ` + stockCols + ` FROM medicine_stocks
		WHERE medicine_id = $1 AND location = $2 AND batch_number = $3 AND is_deleted = FALSE`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	s, err := scanStock(conn(ctx, r.pool).QueryRow(ctx, q, medicineID, location, batch))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *stockRepoPG) List(ctx context.Context, medicineID uuid.UUID, location string, limit, offset int) ([]*MedicineStock, int, error) {
	where := ` WHERE is_deleted = FALSE`
	args := []interface{}{}
	idx := 0
	if medicineID != uuid.Nil {
		idx++
		where += fmt.Sprintf(` AND medicine_id = $%d`, idx)
		args = append(args, medicineID)
	}
	if location != "" {
		idx++
		where += fmt.Sprintf(` AND location = $%d`, idx)
		args = append(args, location)
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM medicine_stocks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT `+stockCols+` FROM medicine_stocks`+where+
		` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx+1, idx+2)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*MedicineStock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *stockRepoPG) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*MedicineStock, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+stockCols+` FROM medicine_stocks
		WHERE is_deleted = FALSE AND expiry_date IS NOT NULL AND expiry_date <= $1
		ORDER BY expiry_date`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MedicineStock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *stockRepoPG) ListAvailableAtMost(ctx context.Context, threshold int) ([]*MedicineStock, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+stockCols+` FROM medicine_stocks
		WHERE is_deleted = FALSE AND total_quantity - reserved_quantity <= $1
		ORDER BY total_quantity - reserved_quantity`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MedicineStock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *stockRepoPG) ListOutOfStock(ctx context.Context) ([]*MedicineStock, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+stockCols+` FROM medicine_stocks
		WHERE is_deleted = FALSE AND total_quantity - reserved_quantity <= 0
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MedicineStock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- Allocations ----

type allocationRepoPG struct{ pool *pgxpool.Pool }

func NewAllocationRepoPG(pool *pgxpool.Pool) AllocationRepository {
	return &allocationRepoPG{pool: pool}
}

const allocationCols = `id, user_id, stock_id, allocated_quantity, used_quantity,
	threshold_quantity, min_threshold, sync_status, created_at, updated_at`

func scanAllocation(row pgx.Row) (*UserMedicineAllocation, error) {
	var a UserMedicineAllocation
	err := row.Scan(&a.ID, &a.UserID, &a.StockID, &a.Allocated, &a.Used,
		&a.Threshold, &a.MinThreshold, &a.SyncStatus, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *allocationRepoPG) Create(ctx context.Context, a *UserMedicineAllocation) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.SyncStatus == "" {
		a.SyncStatus = SyncPending
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO user_medicine_allocations (id, user_id, stock_id,
			allocated_quantity, used_quantity, threshold_quantity, min_threshold, sync_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.UserID, a.StockID, a.Allocated, a.Used, a.Threshold, a.MinThreshold, a.SyncStatus)
	return err
}

func (r *allocationRepoPG) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*UserMedicineAllocation, error) {
	q := `SELECT ` + allocationCols + ` FROM user_medicine_allocations WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanAllocation(conn(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *allocationRepoPG) GetByUserAndStock(ctx context.Context, userID, stockID uuid.UUID, forUpdate bool) (*UserMedicineAllocation, error) {
	q := `SELECT ` + allocationCols + ` FROM user_medicine_allocations
		WHERE user_id = $1 AND stock_id = $2`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	a, err := scanAllocation(conn(ctx, r.pool).QueryRow(ctx, q, userID, stockID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *allocationRepoPG) Update(ctx context.Context, a *UserMedicineAllocation) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE user_medicine_allocations SET allocated_quantity=$2, used_quantity=$3,
			threshold_quantity=$4, min_threshold=$5, sync_status=$6, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Allocated, a.Used, a.Threshold, a.MinThreshold, a.SyncStatus)
	return err
}

func (r *allocationRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserMedicineAllocation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+allocationCols+` FROM user_medicine_allocations
		WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*UserMedicineAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *allocationRepoPG) List(ctx context.Context, limit, offset int) ([]*UserMedicineAllocation, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM user_medicine_allocations`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+allocationCols+` FROM user_medicine_allocations
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*UserMedicineAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// ---- Transactions ----

type txRepoPG struct{ pool *pgxpool.Pool }

func NewTransactionRepoPG(pool *pgxpool.Pool) TransactionRepository {
	return &txRepoPG{pool: pool}
}

func (r *txRepoPG) Create(ctx context.Context, t *StockTransaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO stock_transactions (id, stock_id, delta, tx_type, action, actor_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.StockID, t.Delta, t.TxType, t.Action, t.ActorID)
	return err
}

func (r *txRepoPG) ListByStock(ctx context.Context, stockID uuid.UUID, limit, offset int) ([]*StockTransaction, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_transactions WHERE stock_id = $1`, stockID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, stock_id, delta, tx_type, action, actor_id, created_at
		FROM stock_transactions WHERE stock_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, stockID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*StockTransaction
	for rows.Next() {
		var t StockTransaction
		if err := rows.Scan(&t.ID, &t.StockID, &t.Delta, &t.TxType, &t.Action, &t.ActorID, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &t)
	}
	return out, total, rows.Err()
}
