package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/internal/coupons"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindMeta(ctx context.Context, cartKey string) (*models.CartMeta, error)
	CreateMeta(ctx context.Context, meta *models.CartMeta) error
	SaveMeta(ctx context.Context, meta *models.CartMeta) error
	DeleteMeta(ctx context.Context, cartKey string) error
	ListLines(ctx context.Context, cartKey string) ([]models.CartLine, error)
	FindLine(ctx context.Context, cartKey string, lineID uuid.UUID) (*models.CartLine, error)
	FindMatchingLine(ctx context.Context, cartKey string, productID uuid.UUID, variantID *uuid.UUID, size *string) (*models.CartLine, error)
	CreateLine(ctx context.Context, line *models.CartLine) error
	SaveLine(ctx context.Context, line *models.CartLine) error
	DeleteLine(ctx context.Context, cartKey string, lineID uuid.UUID) error
	DeleteLines(ctx context.Context, cartKey string) error
}

type productCatalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
}

type couponQuoter interface {
	Quote(ctx context.Context, code string, userID *uuid.UUID, subtotal decimal.Decimal) (*coupons.Quote, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
