package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
	"github.com/leafshop/leafshop-backend/pkg/enums"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
)

// Rejection reasons reported in COUPON_REJECTED details.
const (
	ReasonNotFound       = "not_found"
	ReasonInactive       = "inactive"
	ReasonNotStarted     = "not_started"
	ReasonExpired        = "expired"
	ReasonUsageLimit     = "usage_limit_reached"
	ReasonPerUserLimit   = "per_user_limit_reached"
	ReasonMinimumNotMet  = "minimum_purchase_not_met"
	ReasonNoDiscount     = "no_discount"
	ReasonInvalidRequest = "invalid_request"
)

var hundred = decimal.NewFromInt(100)

type repository interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error)
	InsertUsage(ctx context.Context, usage *models.CouponUsage) error
	IncrementUsed(ctx context.Context, couponID uuid.UUID) (bool, error)
}

// Quote is a validated coupon and the discount it grants on a subtotal.
type Quote struct {
	Coupon   models.Coupon
	Discount decimal.Decimal
}

// Service validates coupons and records their redemptions.
type Service struct {
	repo   repository
	withTx func(tx *gorm.DB) repository
	now    func() time.Time
}

func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &Service{
		repo:   repo,
		withTx: func(tx *gorm.DB) repository { return repo.WithTx(tx) },
		now:    time.Now,
	}, nil
}

// Quote validates code for the given buyer and subtotal without recording a
// redemption.
func (s *Service) Quote(ctx context.Context, code string, userID *uuid.UUID, subtotal decimal.Decimal) (*Quote, error) {
	return s.quote(ctx, s.repo, code, userID, subtotal)
}

// Apply quotes the coupon and records the redemption inside tx. Losing the
// usage-limit race rejects the coupon.
func (s *Service) Apply(ctx context.Context, tx *gorm.DB, code string, userID *uuid.UUID, orderID uuid.UUID, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if tx == nil || orderID == uuid.Nil {
		return decimal.Zero, rejected(code, ReasonInvalidRequest)
	}
	repo := s.withTx(tx)
	quote, err := s.quote(ctx, repo, code, userID, subtotal)
	if err != nil {
		return decimal.Zero, err
	}

	won, err := repo.IncrementUsed(ctx, quote.Coupon.ID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !won {
		return decimal.Zero, rejected(code, ReasonUsageLimit)
	}
	usage := &models.CouponUsage{
		CouponID:       quote.Coupon.ID,
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: quote.Discount,
	}
	if err := repo.InsertUsage(ctx, usage); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
	}
	return quote.Discount, nil
}

func (s *Service) quote(ctx context.Context, repo repository, code string, userID *uuid.UUID, subtotal decimal.Decimal) (*Quote, error) {
	coupon, err := repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if coupon == nil {
		return nil, rejected(code, ReasonNotFound)
	}
	if !coupon.Active {
		return nil, rejected(code, ReasonInactive)
	}
	now := s.now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return nil, rejected(code, ReasonNotStarted)
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return nil, rejected(code, ReasonExpired)
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return nil, rejected(code, ReasonUsageLimit)
	}
	if coupon.PerUserLimit != nil && userID != nil {
		used, err := repo.CountUsageByUser(ctx, coupon.ID, *userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usage")
		}
		if used >= int64(*coupon.PerUserLimit) {
			return nil, rejected(code, ReasonPerUserLimit)
		}
	}
	if coupon.MinPurchaseAmount != nil && subtotal.LessThan(*coupon.MinPurchaseAmount) {
		return nil, rejected(code, ReasonMinimumNotMet)
	}

	discount := Discount(*coupon, subtotal)
	if !discount.IsPositive() {
		return nil, rejected(code, ReasonNoDiscount)
	}
	return &Quote{Coupon: *coupon, Discount: discount}, nil
}

// Discount computes what coupon takes off subtotal: a capped percentage or a
// fixed amount, never more than the subtotal itself.
func Discount(coupon models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountPercentage:
		discount = subtotal.Mul(coupon.DiscountValue).Div(hundred)
		if coupon.MaxDiscountAmount != nil && discount.GreaterThan(*coupon.MaxDiscountAmount) {
			discount = *coupon.MaxDiscountAmount
		}
	case enums.DiscountFixedAmount:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}

func rejected(code, reason string) error {
	return pkgerrors.New(pkgerrors.CodeCouponRejected, "coupon rejected").
		WithDetails(map[string]any{"code": code, "reason": reason})
}
