package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrVariantNotFound = errors.New("catalog: variant not found")
)

type repository interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
}

// Service is the read-only catalog lookup used by the cart and checkout.
// Concurrent lookups of the same id share one database round trip.
type Service struct {
	repo  repository
	group singleflight.Group
}

func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Service{repo: repo}, nil
}

// GetProduct returns ErrProductNotFound when the product is missing.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := lookup(ctx, &s.group, "product:"+id.String(), func(ctx context.Context) (*models.Product, error) {
		product, err := s.repo.FindProduct(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product == nil {
			return nil, ErrProductNotFound
		}
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	copied := *product
	return &copied, nil
}

// GetVariant returns ErrVariantNotFound when the variant is missing or
// belongs to another product.
func (s *Service) GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	key := "variant:" + productID.String() + ":" + variantID.String()
	variant, err := lookup(ctx, &s.group, key, func(ctx context.Context) (*models.ProductVariant, error) {
		variant, err := s.repo.FindVariant(ctx, productID, variantID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		if variant == nil {
			return nil, ErrVariantNotFound
		}
		return variant, nil
	})
	if err != nil {
		return nil, err
	}
	copied := *variant
	return &copied, nil
}

// lookup shares one load per key. The load runs detached from the caller
// that started it; each caller stops waiting when its own ctx ends.
func lookup[T any](ctx context.Context, group *singleflight.Group, key string, load func(context.Context) (*T, error)) (*T, error) {
	detached := context.WithoutCancel(ctx)
	ch := group.DoChan(key, func() (any, error) {
		return load(detached)
	})
	select {
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "catalog lookup abandoned")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*T), nil
	}
}

// UnitPrice is the variant override when present, otherwise the product price.
func UnitPrice(product *models.Product, variant *models.ProductVariant) decimal.Decimal {
	if variant != nil && variant.PriceOverride != nil {
		return *variant.PriceOverride
	}
	if product == nil {
		return decimal.Zero
	}
	return product.Price
}
