package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository constructs the reservation ledger repository.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &ledgerRepository{db: tx}
}

func (r *ledgerRepository) Insert(ctx context.Context, row *models.InventoryReservation) error {
	if row.Status == "" {
		row.Status = enums.ReservationStatusActive
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// ListActiveByOrder returns unreleased rows in the order they were written.
func (r *ledgerRepository) ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error) {
	var rows []models.InventoryReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusActive).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// MarkReleased is a no-op for rows already released.
func (r *ledgerRepository) MarkReleased(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryReservation{}).
		Where("id = ? AND status = ?", id, enums.ReservationStatusActive).
		Updates(map[string]any{
			"status":      enums.ReservationStatusReleased,
			"released_at": at.UTC(),
		}).Error
}
