package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/leafshop/leafshop-backend/internal/warehouses"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
)

const DefaultMaxAttempts = 3

// InventoryStore is the bucket persistence the allocator needs. Save must be a
// conditional write that fails with warehouses.ErrVersionConflict on a stale
// version.
type InventoryStore interface {
	GetInventory(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error)
	GetVariantInventory(ctx context.Context, warehouseID, productID, variantID uuid.UUID) (*models.InventoryRecord, error)
	GetProductInventory(ctx context.Context, warehouseID, productID uuid.UUID) (*models.InventoryRecord, error)
	Save(ctx context.Context, record *models.InventoryRecord) error
}

// Allocation is the quantity taken from one bucket.
type Allocation struct {
	InventoryRecordID uuid.UUID
	WarehouseID       uuid.UUID
	ProductID         uuid.UUID
	VariantID         *uuid.UUID
	Quantity          int
}

// Result lists what Reserve took, in the order it was taken.
type Result struct {
	Allocations []Allocation
	Remaining   int
}

// Reserved reports whether the full quantity was allocated.
func (r Result) Reserved() bool {
	return r.Remaining == 0
}

// Demand is one line's requested quantity for PreCheck.
type Demand struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

type Options struct {
	MaxAttempts int
	// OnConflict runs once per lost compare-and-swap.
	OnConflict func()
}

// Allocator reserves and releases stock across warehouse buckets.
type Allocator struct {
	store       InventoryStore
	maxAttempts int
	onConflict  func()
}

func NewAllocator(store InventoryStore, opts Options) (*Allocator, error) {
	if store == nil {
		return nil, fmt.Errorf("inventory store required")
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.OnConflict == nil {
		opts.OnConflict = func() {}
	}
	return &Allocator{store: store, maxAttempts: opts.MaxAttempts, onConflict: opts.OnConflict}, nil
}

// PreCheck replays Reserve's walk over a read-only snapshot, line by line in
// demand order, so lines sharing a product bucket draw it down for each other.
// It fails with INSUFFICIENT_STOCK on the first line left short. The details
// carry the product's cumulative demand and what the walk could cover.
func (a *Allocator) PreCheck(ctx context.Context, demand []Demand, warehouseIDs []uuid.UUID) error {
	for _, d := range demand {
		if d.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}

	type bucketKey struct {
		productID uuid.UUID
		variant   string
	}
	left := make(map[uuid.UUID]int)
	required := make(map[bucketKey]int, len(demand))
	covered := make(map[bucketKey]int, len(demand))
	for _, d := range demand {
		key := bucketKey{productID: d.ProductID, variant: models.VariantKeyFor(d.VariantID)}
		got, err := a.simulate(ctx, d, warehouseIDs, left)
		if err != nil {
			return err
		}
		required[key] += d.Quantity
		covered[key] += got
		if got < d.Quantity {
			details := map[string]any{
				"productId": d.ProductID,
				"required":  required[key],
				"available": covered[key],
			}
			if d.VariantID != nil {
				details["variantId"] = *d.VariantID
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(details)
		}
	}
	return nil
}

// simulate takes up to d.Quantity from the buckets Reserve would visit,
// debiting left (record id to units still unclaimed) instead of the store.
func (a *Allocator) simulate(ctx context.Context, d Demand, warehouseIDs []uuid.UUID, left map[uuid.UUID]int) (int, error) {
	remaining := d.Quantity
	for _, warehouseID := range warehouseIDs {
		for _, fetch := range a.buckets(warehouseID, d.ProductID, d.VariantID) {
			if remaining == 0 {
				return d.Quantity, nil
			}
			record, err := fetch(ctx)
			if err != nil {
				return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read inventory")
			}
			if record == nil {
				continue
			}
			avail, seen := left[record.ID]
			if !seen {
				avail = max(record.AvailableQuantity, 0)
			}
			n := min(avail, remaining)
			left[record.ID] = avail - n
			remaining -= n
		}
	}
	return d.Quantity - remaining, nil
}

type fetchFunc func(ctx context.Context) (*models.InventoryRecord, error)

// buckets lists the records Reserve may draw from in one warehouse: the
// variant bucket first when a variant is requested, then the product bucket.
func (a *Allocator) buckets(warehouseID, productID uuid.UUID, variantID *uuid.UUID) []fetchFunc {
	fetchers := make([]fetchFunc, 0, 2)
	if variantID != nil && *variantID != uuid.Nil {
		variant := *variantID
		fetchers = append(fetchers, func(ctx context.Context) (*models.InventoryRecord, error) {
			return a.store.GetVariantInventory(ctx, warehouseID, productID, variant)
		})
	}
	return append(fetchers, func(ctx context.Context) (*models.InventoryRecord, error) {
		return a.store.GetProductInventory(ctx, warehouseID, productID)
	})
}

// Reserve walks the warehouses in the given order and takes
// min(available, remaining) from each bucket until the quantity is covered.
// On error the returned Result still lists the allocations already written so
// the caller can release them.
func (a *Allocator) Reserve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, quantity int, warehouseIDs []uuid.UUID) (Result, error) {
	result := Result{Remaining: quantity}
	if quantity <= 0 {
		return result, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	for _, warehouseID := range warehouseIDs {
		for _, fetch := range a.buckets(warehouseID, productID, variantID) {
			if result.Remaining == 0 {
				return result, nil
			}
			allocation, err := a.take(ctx, fetch, result.Remaining)
			if err != nil {
				return result, err
			}
			if allocation != nil {
				result.Allocations = append(result.Allocations, *allocation)
				result.Remaining -= allocation.Quantity
			}
		}
	}
	return result, nil
}

// take reserves up to want units from one bucket, retrying the read-modify-CAS
// cycle on version conflicts.
func (a *Allocator) take(ctx context.Context, fetch fetchFunc, want int) (*Allocation, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		record, err := fetch(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read inventory")
		}
		if record == nil || record.AvailableQuantity <= 0 {
			return nil, nil
		}

		n := min(record.AvailableQuantity, want)
		record.AvailableQuantity -= n
		record.ReservedQuantity += n

		err = a.store.Save(ctx, record)
		if err == nil {
			return &Allocation{
				InventoryRecordID: record.ID,
				WarehouseID:       record.WarehouseID,
				ProductID:         record.ProductID,
				VariantID:         record.VariantID,
				Quantity:          n,
			}, nil
		}
		if !errors.Is(err, warehouses.ErrVersionConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save inventory")
		}
		a.onConflict()
	}
	return nil, pkgerrors.New(pkgerrors.CodeStockAllocationFailed, "inventory kept changing during reservation").
		WithDetails(map[string]any{"attempts": a.maxAttempts})
}

// Release is the inverse of Reserve for one allocation: reserved shrinks and
// available grows by the same amount, on-hand is untouched.
func (a *Allocator) Release(ctx context.Context, allocation Allocation) error {
	return a.adjust(ctx, allocation.InventoryRecordID, func(record *models.InventoryRecord) error {
		if record.ReservedQuantity < allocation.Quantity {
			return fmt.Errorf("inventory %s: release of %d exceeds reserved %d", record.ID, allocation.Quantity, record.ReservedQuantity)
		}
		record.ReservedQuantity -= allocation.Quantity
		record.AvailableQuantity += allocation.Quantity
		return nil
	})
}

// Restock returns units to on-hand stock (customer returns).
func (a *Allocator) Restock(ctx context.Context, recordID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return a.adjust(ctx, recordID, func(record *models.InventoryRecord) error {
		record.Quantity += quantity
		record.AvailableQuantity += quantity
		return nil
	})
}

func (a *Allocator) adjust(ctx context.Context, recordID uuid.UUID, apply func(*models.InventoryRecord) error) error {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		record, err := a.store.GetInventory(ctx, recordID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read inventory")
		}
		if record == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found").
				WithDetails(map[string]any{"inventoryId": recordID})
		}
		if err := apply(record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "inventory adjustment rejected")
		}
		err = a.store.Save(ctx, record)
		if err == nil {
			return nil
		}
		if !errors.Is(err, warehouses.ErrVersionConflict) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save inventory")
		}
		a.onConflict()
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "inventory kept changing during adjustment")
}
