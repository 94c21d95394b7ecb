package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/internal/catalog"
	"github.com/leafshop/leafshop-backend/internal/checkout/helpers"
	"github.com/leafshop/leafshop-backend/pkg/db"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
	"github.com/leafshop/leafshop-backend/pkg/types"
)

// Service exposes the cart operations. Reads never write; every mutation
// finishes with RecomputeAndPersist.
type Service interface {
	Get(ctx context.Context, owner types.CartOwner) (*Summary, error)
	AddItem(ctx context.Context, owner types.CartOwner, input AddItemInput) (*Summary, error)
	UpdateItem(ctx context.Context, owner types.CartOwner, lineID uuid.UUID, quantity int) (*Summary, error)
	DeleteItem(ctx context.Context, owner types.CartOwner, lineID uuid.UUID) (*Summary, error)
	ApplyCoupon(ctx context.Context, owner types.CartOwner, code string) (*Summary, error)
	RemoveCoupon(ctx context.Context, owner types.CartOwner) (*Summary, error)
	Clear(ctx context.Context, owner types.CartOwner) error
	RecomputeAndPersist(ctx context.Context, owner types.CartOwner, couponCode *string) (*Summary, error)
}

type service struct {
	repo        CartRepository
	tx          txRunner
	catalog     productCatalog
	coupons     couponQuoter
	shippingFee decimal.Decimal
	logg        *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, catalog productCatalog, coupons couponQuoter, shippingFee decimal.Decimal, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon quoter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:        repo,
		tx:          tx,
		catalog:     catalog,
		coupons:     coupons,
		shippingFee: shippingFee,
		logg:        logg,
	}, nil
}

func validateOwner(owner types.CartOwner) error {
	if err := owner.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "cart owner required")
	}
	return nil
}

// Get computes the summary from stored lines without touching the aggregate.
func (s *service) Get(ctx context.Context, owner types.CartOwner) (*Summary, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	key := owner.Key()
	meta, err := s.repo.FindMeta(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	lines, err := s.repo.ListLines(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	var code *string
	if meta != nil {
		code = meta.CouponCode
	}
	totals := s.computeTotals(ctx, owner, lines, code)
	return newSummary(key, meta, lines, totals), nil
}

func (s *service) AddItem(ctx context.Context, owner types.CartOwner, input AddItemInput) (*Summary, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	if err := helpers.ValidateQuantity(input.Quantity); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, helpers.CatalogError(err, input.ProductID, input.VariantID)
	}
	if err := helpers.ValidateProductActive(product); err != nil {
		return nil, err
	}
	var variant *models.ProductVariant
	if input.VariantID != nil {
		variant, err = s.catalog.GetVariant(ctx, input.ProductID, *input.VariantID)
		if err != nil {
			return nil, helpers.CatalogError(err, input.ProductID, input.VariantID)
		}
	}
	unitPrice := catalog.UnitPrice(product, variant)
	size := normalizeSize(input.Size)

	if _, err := s.ensureMeta(ctx, owner); err != nil {
		return nil, err
	}

	key := owner.Key()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		line, err := txRepo.FindMatchingLine(ctx, key, input.ProductID, input.VariantID, size)
		if err != nil {
			return err
		}
		if line == nil {
			return txRepo.CreateLine(ctx, &models.CartLine{
				CartKey:     key,
				ProductID:   input.ProductID,
				VariantID:   input.VariantID,
				Size:        size,
				ProductName: productName(product, variant),
				Quantity:    input.Quantity,
				UnitPrice:   unitPrice,
				LineTotal:   helpers.LineTotal(unitPrice, input.Quantity),
			})
		}
		quantity := line.Quantity + input.Quantity
		if err := helpers.ValidateQuantity(quantity); err != nil {
			return err
		}
		line.Quantity = quantity
		line.UnitPrice = unitPrice
		line.ProductName = productName(product, variant)
		line.LineTotal = helpers.LineTotal(unitPrice, quantity)
		return txRepo.SaveLine(ctx, line)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}
	return s.RecomputeAndPersist(ctx, owner, nil)
}

// UpdateItem sets the line quantity; zero removes the line.
func (s *service) UpdateItem(ctx context.Context, owner types.CartOwner, lineID uuid.UUID, quantity int) (*Summary, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if quantity == 0 {
		return s.DeleteItem(ctx, owner, lineID)
	}
	if err := helpers.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	line, err := s.repo.FindLine(ctx, owner.Key(), lineID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	if line == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	line.Quantity = quantity
	line.LineTotal = helpers.LineTotal(line.UnitPrice, quantity)
	if err := s.repo.SaveLine(ctx, line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}
	return s.RecomputeAndPersist(ctx, owner, nil)
}

func (s *service) DeleteItem(ctx context.Context, owner types.CartOwner, lineID uuid.UUID) (*Summary, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteLine(ctx, owner.Key(), lineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return s.RecomputeAndPersist(ctx, owner, nil)
}

// ApplyCoupon stores the code after quoting it against the current subtotal.
// Unlike checkout, an explicit apply surfaces the rejection.
func (s *service) ApplyCoupon(ctx context.Context, owner types.CartOwner, code string) (*Summary, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	normalized := helpers.NormalizeCouponCode(&code)
	if normalized == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	lines, err := s.repo.ListLines(ctx, owner.Key())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	if _, err := s.coupons.Quote(ctx, *normalized, owner.UserID, subtotalOf(lines)); err != nil {
		return nil, err
	}
	return s.RecomputeAndPersist(ctx, owner, normalized)
}

func (s *service) RemoveCoupon(ctx context.Context, owner types.CartOwner) (*Summary, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	meta, err := s.repo.FindMeta(ctx, owner.Key())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if meta != nil && meta.CouponCode != nil {
		meta.CouponCode = nil
		if err := s.repo.SaveMeta(ctx, meta); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
		}
	}
	return s.RecomputeAndPersist(ctx, owner, nil)
}

// Clear removes every line and the aggregate.
func (s *service) Clear(ctx context.Context, owner types.CartOwner) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	key := owner.Key()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DeleteLines(ctx, key); err != nil {
			return err
		}
		return txRepo.DeleteMeta(ctx, key)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// RecomputeAndPersist derives totals from the current lines and overwrites
// the aggregate. A non-nil couponCode replaces the stored one. A coupon that
// no longer qualifies stays on the cart with a zero discount.
func (s *service) RecomputeAndPersist(ctx context.Context, owner types.CartOwner, couponCode *string) (*Summary, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	meta, err := s.ensureMeta(ctx, owner)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, meta.CartKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	if couponCode != nil {
		meta.CouponCode = helpers.NormalizeCouponCode(couponCode)
	}

	totals := s.computeTotals(ctx, owner, lines, meta.CouponCode)
	meta.Subtotal = totals.Subtotal
	meta.ShippingAmount = totals.Shipping
	meta.DiscountAmount = totals.Discount
	meta.TotalAmount = totals.Total
	if err := s.repo.SaveMeta(ctx, meta); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return newSummary(meta.CartKey, meta, lines, totals), nil
}

func (s *service) computeTotals(ctx context.Context, owner types.CartOwner, lines []models.CartLine, couponCode *string) helpers.Totals {
	subtotal := subtotalOf(lines)
	discount := decimal.Zero
	if couponCode != nil && subtotal.IsPositive() {
		quote, err := s.coupons.Quote(ctx, *couponCode, owner.UserID, subtotal)
		if err != nil {
			s.logg.Debug(s.logg.WithField(ctx, "coupon_code", *couponCode), "cart coupon not applicable")
		} else {
			discount = quote.Discount
		}
	}
	return helpers.ComputeTotals(subtotal, s.shippingFee, discount)
}

// ensureMeta creates the aggregate on first use. A concurrent creator wins the
// unique cart_key and its row is returned instead.
func (s *service) ensureMeta(ctx context.Context, owner types.CartOwner) (*models.CartMeta, error) {
	key := owner.Key()
	meta, err := s.repo.FindMeta(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if meta != nil {
		return meta, nil
	}

	meta = &models.CartMeta{
		CartKey:   key,
		UserID:    owner.UserID,
		SessionID: owner.SessionPtr(),
	}
	if err := s.repo.CreateMeta(ctx, meta); err != nil {
		if !db.IsUniqueViolation(err, "cart_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
		}
		meta, err = s.repo.FindMeta(ctx, key)
		if err != nil || meta == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
	}
	return meta, nil
}

func subtotalOf(lines []models.CartLine) decimal.Decimal {
	totals := make([]decimal.Decimal, 0, len(lines))
	for _, line := range lines {
		totals = append(totals, line.LineTotal)
	}
	return helpers.Sum(totals...)
}

func productName(product *models.Product, variant *models.ProductVariant) string {
	if variant == nil || strings.TrimSpace(variant.Name) == "" {
		return product.Name
	}
	return product.Name + " - " + variant.Name
}

func normalizeSize(size *string) *string {
	if size == nil {
		return nil
	}
	trimmed := strings.ToUpper(strings.TrimSpace(*size))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
