package warehouses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
)

const defaultAdjustAttempts = 3

type repository interface {
	ListActive(ctx context.Context) ([]models.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
	CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error
	FindWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	GetInventory(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error)
	ListByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]models.InventoryRecord, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.InventoryRecord, error)
	ListLowStock(ctx context.Context) ([]models.InventoryRecord, error)
	CreateInventory(ctx context.Context, record *models.InventoryRecord) error
	DeleteInventory(ctx context.Context, id uuid.UUID) error
	Save(ctx context.Context, record *models.InventoryRecord) error
}

// CreateWarehouseInput describes a new stock location.
type CreateWarehouseInput struct {
	Code     string
	Name     string
	Priority int
	Active   bool
}

// CreateInventoryInput seeds a bucket. Available is derived.
type CreateInventoryInput struct {
	WarehouseID      uuid.UUID
	ProductID        uuid.UUID
	VariantID        *uuid.UUID
	Quantity         int
	ReservedQuantity int
	ReorderPoint     int
	MaxStock         int
	Location         string
}

// UpdateInventoryInput patches the non-counter fields of a bucket.
type UpdateInventoryInput struct {
	ReorderPoint *int
	MaxStock     *int
	Location     *string
}

// InventoryFilter selects buckets by warehouse or by product; exactly one is set.
type InventoryFilter struct {
	WarehouseID *uuid.UUID
	ProductID   *uuid.UUID
}

// Service is the admin surface over warehouses and inventory buckets.
type Service struct {
	repo        repository
	logg        *logger.Logger
	maxAttempts int
}

func NewService(repo repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("warehouse repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg, maxAttempts: defaultAdjustAttempts}, nil
}

func (s *Service) CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse code and name are required")
	}
	if input.Priority < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse priority must not be negative")
	}
	warehouse := &models.Warehouse{Code: code, Name: name, Priority: input.Priority, Active: input.Active}
	if err := s.repo.CreateWarehouse(ctx, warehouse); err != nil {
		if db.IsUniqueViolation(err, "code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "warehouse code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create warehouse")
	}
	return warehouse, nil
}

func (s *Service) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	rows, err := s.repo.ListWarehouses(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warehouses")
	}
	return rows, nil
}

// CreateInventory rejects a second bucket for the same warehouse, product and variant.
func (s *Service) CreateInventory(ctx context.Context, input CreateInventoryInput) (*models.InventoryRecord, error) {
	if input.WarehouseID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouseId and productId are required")
	}
	warehouse, err := s.repo.FindWarehouse(ctx, input.WarehouseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load warehouse")
	}
	if warehouse == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
	}

	record := &models.InventoryRecord{
		WarehouseID:       input.WarehouseID,
		ProductID:         input.ProductID,
		VariantID:         input.VariantID,
		Quantity:          input.Quantity,
		ReservedQuantity:  input.ReservedQuantity,
		AvailableQuantity: input.Quantity - input.ReservedQuantity,
		ReorderPoint:      input.ReorderPoint,
		MaxStock:          input.MaxStock,
		Location:          strings.TrimSpace(input.Location),
	}
	if err := validateCounters(*record); err != nil {
		return nil, err
	}
	if err := s.repo.CreateInventory(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "inventory_records_bucket_key", "inventory_records.warehouse_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "inventory already exists for this warehouse and product").
				WithDetails(map[string]any{
					"warehouseId": input.WarehouseID,
					"productId":   input.ProductID,
					"variantId":   input.VariantID,
				})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory")
	}
	return record, nil
}

func (s *Service) GetInventory(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error) {
	record, err := s.repo.GetInventory(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
	}
	return record, nil
}

func (s *Service) ListInventory(ctx context.Context, filter InventoryFilter) ([]models.InventoryRecord, error) {
	var (
		rows []models.InventoryRecord
		err  error
	)
	switch {
	case filter.WarehouseID != nil && filter.ProductID == nil:
		rows, err = s.repo.ListByWarehouse(ctx, *filter.WarehouseID)
	case filter.ProductID != nil && filter.WarehouseID == nil:
		rows, err = s.repo.ListByProduct(ctx, *filter.ProductID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of warehouseId or productId is required")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	return rows, nil
}

func (s *Service) UpdateInventory(ctx context.Context, id uuid.UUID, input UpdateInventoryInput) (*models.InventoryRecord, error) {
	return s.mutate(ctx, id, func(record *models.InventoryRecord) error {
		if input.ReorderPoint != nil {
			record.ReorderPoint = *input.ReorderPoint
		}
		if input.MaxStock != nil {
			record.MaxStock = *input.MaxStock
		}
		if input.Location != nil {
			record.Location = strings.TrimSpace(*input.Location)
		}
		return validateCounters(*record)
	})
}

func (s *Service) DeleteInventory(ctx context.Context, id uuid.UUID) error {
	record, err := s.GetInventory(ctx, id)
	if err != nil {
		return err
	}
	if record.ReservedQuantity > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "inventory has outstanding reservations").
			WithDetails(map[string]any{"reservedQuantity": record.ReservedQuantity})
	}
	if err := s.repo.DeleteInventory(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete inventory")
	}
	return nil
}

// AdjustQuantity applies a stock movement. RESTOCK adds delta units, DAMAGE
// removes delta available units, CORRECTION applies a signed delta to on-hand
// and FULFILLMENT ships delta reserved units.
func (s *Service) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int, reason enums.InventoryAdjustmentReason) (*models.InventoryRecord, error) {
	if !reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid adjustment reason")
	}
	if delta == 0 || (reason != enums.AdjustmentCorrection && delta < 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment delta must be positive")
	}

	record, err := s.mutate(ctx, id, func(record *models.InventoryRecord) error {
		switch {
		case reason.ConsumesReservation():
			record.Quantity -= delta
			record.ReservedQuantity -= delta
		case reason == enums.AdjustmentDamage:
			record.Quantity -= delta
			record.AvailableQuantity -= delta
		default:
			record.Quantity += delta
			record.AvailableQuantity += delta
		}
		return validateCounters(*record)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"inventory_id": id.String(),
		"reason":       reason.String(),
		"delta":        delta,
	})
	s.logg.Info(logCtx, "inventory adjusted")
	return record, nil
}

// LowStockAlerts lists buckets at or below their reorder point, restricted to
// active warehouses.
func (s *Service) LowStockAlerts(ctx context.Context) ([]models.InventoryRecord, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warehouses")
	}
	activeIDs := make(map[uuid.UUID]struct{}, len(active))
	for _, warehouse := range active {
		activeIDs[warehouse.ID] = struct{}{}
	}

	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	alerts := make([]models.InventoryRecord, 0, len(rows))
	for _, row := range rows {
		if _, ok := activeIDs[row.WarehouseID]; ok {
			alerts = append(alerts, row)
		}
	}
	return alerts, nil
}

// mutate re-reads and re-applies fn until the conditional save wins or the
// attempts run out.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*models.InventoryRecord) error) (*models.InventoryRecord, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		record, err := s.GetInventory(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(record); err != nil {
			return nil, err
		}
		err = s.repo.Save(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save inventory")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "inventory changed concurrently, retry the request")
}

func validateCounters(record models.InventoryRecord) error {
	if record.Quantity < 0 || record.ReorderPoint < 0 || record.MaxStock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory quantities must not be negative")
	}
	if err := record.CheckInvariants(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "inventory counters out of range").
			WithDetails(map[string]any{
				"quantity":          record.Quantity,
				"reservedQuantity":  record.ReservedQuantity,
				"availableQuantity": record.AvailableQuantity,
			})
	}
	return nil
}
