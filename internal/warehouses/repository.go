package warehouses

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
)

// ErrVersionConflict is returned by Save when another writer bumped the
// record version since it was read.
var ErrVersionConflict = errors.New("inventory record version conflict")

// Repository persists warehouses and their inventory buckets.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, now: r.now}
}

// ListActive returns active warehouses in reservation order.
func (r *Repository) ListActive(ctx context.Context) ([]models.Warehouse, error) {
	var rows []models.Warehouse
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("priority ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var rows []models.Warehouse
	err := r.db.WithContext(ctx).Order("priority ASC").Order("code ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error {
	return r.db.WithContext(ctx).Create(warehouse).Error
}

func (r *Repository) FindWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	err := r.db.WithContext(ctx).First(&warehouse, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// GetInventory returns nil when the record does not exist.
func (r *Repository) GetInventory(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error) {
	return r.findOne(ctx, r.db.Where("id = ?", id))
}

// GetVariantInventory returns the variant bucket for a warehouse, or nil.
func (r *Repository) GetVariantInventory(ctx context.Context, warehouseID, productID, variantID uuid.UUID) (*models.InventoryRecord, error) {
	return r.findOne(ctx, r.db.Where(
		"warehouse_id = ? AND product_id = ? AND variant_key = ?",
		warehouseID, productID, models.VariantKeyFor(&variantID),
	))
}

// GetProductInventory returns the product-level bucket for a warehouse, or nil.
func (r *Repository) GetProductInventory(ctx context.Context, warehouseID, productID uuid.UUID) (*models.InventoryRecord, error) {
	return r.findOne(ctx, r.db.Where(
		"warehouse_id = ? AND product_id = ? AND variant_key = ?",
		warehouseID, productID, "",
	))
}

func (r *Repository) findOne(ctx context.Context, scope *gorm.DB) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := scope.WithContext(ctx).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) ListByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]models.InventoryRecord, error) {
	var rows []models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		Order("product_id ASC").
		Order("variant_key ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.InventoryRecord, error) {
	var rows []models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("warehouse_id ASC").
		Order("variant_key ASC").
		Find(&rows).Error
	return rows, err
}

// ListLowStock returns buckets whose available quantity is at or below the
// reorder point.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.InventoryRecord, error) {
	var rows []models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("available_quantity <= reorder_point").
		Order("available_quantity ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateInventory(ctx context.Context, record *models.InventoryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *Repository) DeleteInventory(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.InventoryRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Save writes the counters of record only if its version is unchanged since it
// was read, then bumps the in-memory version to match the stored one.
func (r *Repository) Save(ctx context.Context, record *models.InventoryRecord) error {
	if err := record.CheckInvariants(); err != nil {
		return err
	}
	now := r.now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]any{
			"quantity":           record.Quantity,
			"reserved_quantity":  record.ReservedQuantity,
			"available_quantity": record.AvailableQuantity,
			"reorder_point":      record.ReorderPoint,
			"max_stock":          record.MaxStock,
			"location":           record.Location,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	record.Version++
	record.UpdatedAt = now
	return nil
}
