package stock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

type Service struct {
	medicines   MedicineRepository
	stocks      StockRepository
	allocations AllocationRepository
	txns        TransactionRepository
	tx          db.TxRunner
}

func NewService(medicines MedicineRepository, stocks StockRepository,
	allocations AllocationRepository, txns TransactionRepository, tx db.TxRunner) *Service {
	return &Service{
		medicines:   medicines,
		stocks:      stocks,
		allocations: allocations,
		txns:        txns,
		tx:          tx,
	}
}

// ---- Medicines ----

func (s *Service) CreateMedicine(ctx context.Context, m *Medicine) error {
	if m.Name == "" {
		return apperr.Validation("name is required",
			map[string][]string{"name": {"name is required"}})
	}
	m.IsActive = true
	return s.medicines.Create(ctx, m)
}

func (s *Service) ListMedicines(ctx context.Context, limit, offset int) ([]*Medicine, int, error) {
	return s.medicines.List(ctx, limit, offset)
}

// ---- Central stock ----

// AddStock adds quantity to central stock. Rows are keyed by
// (medicine, location, batch); an existing row is topped up instead of
// duplicated.
func (s *Service) AddStock(ctx context.Context, medicineID uuid.UUID, location, batch string, expiry *time.Time, qty int) (*MedicineStock, error) {
	details := map[string][]string{}
	if location == "" {
		details["location"] = append(details["location"], "location is required")
	}
	if qty <= 0 {
		details["quantity"] = append(details["quantity"], "quantity must be positive")
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid stock entry", details)
	}
	if _, err := s.medicines.GetByID(ctx, medicineID); err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "medicine not found", err)
	}

	var result *MedicineStock
	err := s.tx(ctx, func(ctx context.Context) error {
		existing, err := s.stocks.FindByKey(ctx, medicineID, location, batch, true)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Total += qty
			if expiry != nil {
				existing.ExpiryDate = expiry
			}
			result = existing
			return s.stocks.Update(ctx, existing)
		}
		result = &MedicineStock{
			MedicineID:  medicineID,
			Location:    location,
			BatchNumber: batch,
			ExpiryDate:  expiry,
			Total:       qty,
		}
		return s.stocks.Create(ctx, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reserve holds qty of a stock row. The row is locked so concurrent
// reservations cannot oversell availability.
func (s *Service) Reserve(ctx context.Context, stockID uuid.UUID, qty int) error {
	if qty <= 0 {
		return apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	return s.tx(ctx, func(ctx context.Context) error {
		st, err := s.stocks.GetByID(ctx, stockID, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "stock not found", err)
		}
		if st.Available() < qty {
			return apperr.Newf(apperr.KindInsufficientStock,
				"requested %d but only %d available", qty, st.Available())
		}
		st.Reserved += qty
		return s.stocks.Update(ctx, st)
	})
}

// Release returns qty from reserved back to available.
func (s *Service) Release(ctx context.Context, stockID uuid.UUID, qty int) error {
	if qty <= 0 {
		return apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	return s.tx(ctx, func(ctx context.Context) error {
		st, err := s.stocks.GetByID(ctx, stockID, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "stock not found", err)
		}
		if st.Reserved < qty {
			return apperr.Newf(apperr.KindInvariantViolation,
				"cannot release %d, only %d reserved", qty, st.Reserved)
		}
		st.Reserved -= qty
		return s.stocks.Update(ctx, st)
	})
}

// Allocate reserves qty from a stock row and credits it to the user's
// allocation. The allocation row is additive: one row per (user, stock).
func (s *Service) Allocate(ctx context.Context, userID, stockID uuid.UUID, qty, threshold, minThreshold int, actor uuid.UUID) (*UserMedicineAllocation, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	var result *UserMedicineAllocation
	err := s.tx(ctx, func(ctx context.Context) error {
		st, err := s.stocks.GetByID(ctx, stockID, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "stock not found", err)
		}
		if st.Available() < qty {
			return apperr.Newf(apperr.KindInsufficientStock,
				"requested %d but only %d available", qty, st.Available())
		}
		st.Reserved += qty
		if err := s.stocks.Update(ctx, st); err != nil {
			return err
		}

		alloc, err := s.allocations.GetByUserAndStock(ctx, userID, stockID, true)
		if err != nil {
			return err
		}
		if alloc != nil {
			alloc.Allocated += qty
			alloc.SyncStatus = SyncPending
			if threshold > 0 {
				alloc.Threshold = threshold
			}
			if minThreshold > 0 {
				alloc.MinThreshold = minThreshold
			}
			if err := s.allocations.Update(ctx, alloc); err != nil {
				return err
			}
		} else {
			alloc = &UserMedicineAllocation{
				UserID:       userID,
				StockID:      stockID,
				Allocated:    qty,
				Threshold:    threshold,
				MinThreshold: minThreshold,
				SyncStatus:   SyncPending,
			}
			if err := s.allocations.Create(ctx, alloc); err != nil {
				return err
			}
		}
		result = alloc

		return s.txns.Create(ctx, &StockTransaction{
			StockID: stockID,
			Delta:   qty,
			TxType:  TxIn,
			Action:  ActionAllocated,
			ActorID: actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Consume burns qty from a user's allocation. The physical stock leaves
// both the reserved share and the total.
func (s *Service) Consume(ctx context.Context, allocID uuid.UUID, qty int, actor uuid.UUID) (*UserMedicineAllocation, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	var result *UserMedicineAllocation
	err := s.tx(ctx, func(ctx context.Context) error {
		// Peek at the allocation unlocked to learn its stock row, then
		// take the locks in stock -> allocation order, same as Allocate.
		peek, err := s.allocations.GetByID(ctx, allocID, false)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "allocation not found", err)
		}
		st, err := s.stocks.GetByID(ctx, peek.StockID, true)
		if err != nil {
			return err
		}
		alloc, err := s.allocations.GetByID(ctx, allocID, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "allocation not found", err)
		}
		if alloc.Used+qty > alloc.Allocated {
			return apperr.Newf(apperr.KindOverConsumption,
				"consuming %d would exceed the allocated %d (used %d)",
				qty, alloc.Allocated, alloc.Used)
		}
		alloc.Used += qty
		alloc.SyncStatus = SyncPending
		if err := s.allocations.Update(ctx, alloc); err != nil {
			return err
		}

		st.Total -= qty
		st.Reserved -= qty
		if err := s.stocks.Update(ctx, st); err != nil {
			return err
		}
		result = alloc

		return s.txns.Create(ctx, &StockTransaction{
			StockID: alloc.StockID,
			Delta:   -qty,
			TxType:  TxOut,
			Action:  ActionUsed,
			ActorID: actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Return hands back consumed quantity, bounded at zero used.
func (s *Service) Return(ctx context.Context, allocID uuid.UUID, qty int, actor uuid.UUID) (*UserMedicineAllocation, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	var result *UserMedicineAllocation
	err := s.tx(ctx, func(ctx context.Context) error {
		// Same stock -> allocation lock order as Allocate and Consume.
		peek, err := s.allocations.GetByID(ctx, allocID, false)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "allocation not found", err)
		}
		st, err := s.stocks.GetByID(ctx, peek.StockID, true)
		if err != nil {
			return err
		}
		alloc, err := s.allocations.GetByID(ctx, allocID, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "allocation not found", err)
		}
		returned := qty
		if returned > alloc.Used {
			returned = alloc.Used
		}
		if returned == 0 {
			return apperr.New(apperr.KindValidation, "nothing consumed to return")
		}
		alloc.Used -= returned
		alloc.SyncStatus = SyncPending
		if err := s.allocations.Update(ctx, alloc); err != nil {
			return err
		}

		st.Total += returned
		st.Reserved += returned
		if err := s.stocks.Update(ctx, st); err != nil {
			return err
		}
		result = alloc

		return s.txns.Create(ctx, &StockTransaction{
			StockID: alloc.StockID,
			Delta:   returned,
			TxType:  TxAdjust,
			Action:  ActionReturned,
			ActorID: actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transfer moves available quantity from a stock row to another location,
// preserving batch and expiry. Rows are locked in sorted id order so two
// opposite transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, fromStockID uuid.UUID, toLocation string, qty int, actor uuid.UUID) (*MedicineStock, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	if toLocation == "" {
		return nil, apperr.New(apperr.KindValidation, "destination location is required")
	}

	var dest *MedicineStock
	err := s.tx(ctx, func(ctx context.Context) error {
		src, err := s.stocks.GetByID(ctx, fromStockID, false)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "stock not found", err)
		}
		if src.Location == toLocation {
			return apperr.New(apperr.KindNoOpTransfer, "source and destination are the same location")
		}

		existing, err := s.stocks.FindByKey(ctx, src.MedicineID, toLocation, src.BatchNumber, false)
		if err != nil {
			return err
		}

		// Lock in sorted id order, then re-read under the locks.
		if existing != nil && strings.Compare(existing.ID.String(), src.ID.String()) < 0 {
			if _, err := s.stocks.GetByID(ctx, existing.ID, true); err != nil {
				return err
			}
		}
		src, err = s.stocks.GetByID(ctx, fromStockID, true)
		if err != nil {
			return err
		}
		if existing != nil && strings.Compare(existing.ID.String(), src.ID.String()) >= 0 {
			if existing, err = s.stocks.GetByID(ctx, existing.ID, true); err != nil {
				return err
			}
		}

		if src.Available() < qty {
			return apperr.Newf(apperr.KindInsufficientStock,
				"requested %d but only %d available", qty, src.Available())
		}
		src.Total -= qty
		if err := s.stocks.Update(ctx, src); err != nil {
			return err
		}

		if existing != nil {
			existing.Total += qty
			dest = existing
			if err := s.stocks.Update(ctx, existing); err != nil {
				return err
			}
		} else {
			dest = &MedicineStock{
				MedicineID:  src.MedicineID,
				Location:    toLocation,
				BatchNumber: src.BatchNumber,
				ExpiryDate:  src.ExpiryDate,
				Total:       qty,
			}
			if err := s.stocks.Create(ctx, dest); err != nil {
				return err
			}
		}

		if err := s.txns.Create(ctx, &StockTransaction{
			StockID: src.ID, Delta: -qty, TxType: TxOut, Action: ActionAllocated, ActorID: actor,
		}); err != nil {
			return err
		}
		return s.txns.Create(ctx, &StockTransaction{
			StockID: dest.ID, Delta: qty, TxType: TxIn, Action: ActionAllocated, ActorID: actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return dest, nil
}

// ---- Derived queries ----

func (s *Service) GetStock(ctx context.Context, id uuid.UUID) (*StockView, error) {
	st, err := s.stocks.GetByID(ctx, id, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "stock not found", err)
	}
	return s.view(st), nil
}

func (s *Service) view(st *MedicineStock) *StockView {
	return &StockView{
		MedicineStock: st,
		Available:     st.Available(),
		ExpiryStatus:  st.ExpiryBucket(time.Now().UTC()),
	}
}

func (s *Service) ListStock(ctx context.Context, medicineID uuid.UUID, location string, limit, offset int) ([]*StockView, int, error) {
	items, total, err := s.stocks.List(ctx, medicineID, location, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*StockView, 0, len(items))
	for _, st := range items {
		views = append(views, s.view(st))
	}
	return views, total, nil
}

// Default central-stock alert thresholds.
const (
	DefaultLowThreshold      = 10
	DefaultCriticalThreshold = 5
)

// liveViews drops expired batches and wraps the rest. Every central-stock
// query excludes expired rows except ListExpired itself.
func (s *Service) liveViews(items []*MedicineStock) []*StockView {
	now := time.Now().UTC()
	views := make([]*StockView, 0, len(items))
	for _, st := range items {
		if st.ExpiryDate != nil && !st.ExpiryDate.After(now) {
			continue
		}
		views = append(views, s.view(st))
	}
	return views
}

// ListExpiring returns stock expiring within the next days. Already
// expired rows are left to ListExpired.
func (s *Service) ListExpiring(ctx context.Context, days int) ([]*StockView, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, days)
	items, err := s.stocks.ListExpiringBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return s.liveViews(items), nil
}

// ListExpired returns batches whose expiry has passed.
func (s *Service) ListExpired(ctx context.Context) ([]*StockView, error) {
	items, err := s.stocks.ListExpiringBefore(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	views := make([]*StockView, 0, len(items))
	for _, st := range items {
		views = append(views, s.view(st))
	}
	return views, nil
}

// ListLowStock returns non-expired rows at or below the low threshold.
func (s *Service) ListLowStock(ctx context.Context, threshold int) ([]*StockView, error) {
	if threshold <= 0 {
		threshold = DefaultLowThreshold
	}
	items, err := s.stocks.ListAvailableAtMost(ctx, threshold)
	if err != nil {
		return nil, err
	}
	return s.liveViews(items), nil
}

// ListCriticalStock is ListLowStock with a tighter default threshold.
func (s *Service) ListCriticalStock(ctx context.Context, threshold int) ([]*StockView, error) {
	if threshold <= 0 {
		threshold = DefaultCriticalThreshold
	}
	items, err := s.stocks.ListAvailableAtMost(ctx, threshold)
	if err != nil {
		return nil, err
	}
	return s.liveViews(items), nil
}

func (s *Service) ListOutOfStock(ctx context.Context) ([]*StockView, error) {
	items, err := s.stocks.ListOutOfStock(ctx)
	if err != nil {
		return nil, err
	}
	return s.liveViews(items), nil
}

// SummaryForUser buckets a user's allocations by remaining quantity
// against their thresholds.
func (s *Service) SummaryForUser(ctx context.Context, userID uuid.UUID) (*UserStockSummary, error) {
	allocs, err := s.allocations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum := &UserStockSummary{UserID: userID}
	for _, a := range allocs {
		row := &AllocationSummary{
			UserMedicineAllocation: a,
			Remaining:              a.Remaining(),
			Health:                 a.HealthBucket(),
		}
		sum.Allocations = append(sum.Allocations, row)
		switch row.Health {
		case "CRITICAL":
			sum.Critical++
		case "WARNING":
			sum.Warning++
		default:
			sum.Healthy++
		}
	}
	return sum, nil
}

func (s *Service) ListAllocations(ctx context.Context, limit, offset int) ([]*UserMedicineAllocation, int, error) {
	return s.allocations.List(ctx, limit, offset)
}

func (s *Service) StockTransactions(ctx context.Context, stockID uuid.UUID, limit, offset int) ([]*StockTransaction, int, error) {
	return s.txns.ListByStock(ctx, stockID, limit, offset)
}
