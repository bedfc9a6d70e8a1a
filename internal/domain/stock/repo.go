package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	List(ctx context.Context, limit, offset int) ([]*Medicine, int, error)
}

type StockRepository interface {
	Create(ctx context.Context, s *MedicineStock) error
	// GetByID loads a stock row, taking a row lock when forUpdate is set.
	GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*MedicineStock, error)
	Update(ctx context.Context, s *MedicineStock) error
	// FindByKey resolves the additive-upsert key, locking when forUpdate.
	// Nil when no row exists.
	FindByKey(ctx context.Context, medicineID uuid.UUID, location, batch string, forUpdate bool) (*MedicineStock, error)
	List(ctx context.Context, medicineID uuid.UUID, location string, limit, offset int) ([]*MedicineStock, int, error)
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*MedicineStock, error)
	ListOutOfStock(ctx context.Context) ([]*MedicineStock, error)
	// ListAvailableAtMost returns rows whose available quantity is at or
	// below threshold.
	ListAvailableAtMost(ctx context.Context, threshold int) ([]*MedicineStock, error)
}

type AllocationRepository interface {
	Create(ctx context.Context, a *UserMedicineAllocation) error
	GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*UserMedicineAllocation, error)
	// GetByUserAndStock resolves the single-row-per-pair upsert key. Nil
	// when the pair has no allocation yet.
	GetByUserAndStock(ctx context.Context, userID, stockID uuid.UUID, forUpdate bool) (*UserMedicineAllocation, error)
	Update(ctx context.Context, a *UserMedicineAllocation) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserMedicineAllocation, error)
	List(ctx context.Context, limit, offset int) ([]*UserMedicineAllocation, int, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, t *StockTransaction) error
	ListByStock(ctx context.Context, stockID uuid.UUID, limit, offset int) ([]*StockTransaction, int, error)
}
