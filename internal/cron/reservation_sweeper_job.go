package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/leafshop/leafshop-backend/pkg/db/models"
	pkgerrors "github.com/leafshop/leafshop-backend/pkg/errors"
	"github.com/leafshop/leafshop-backend/pkg/logger"
)

const (
	defaultPendingTimeout = 15 * time.Minute
	defaultSweepBatchSize = 50

	sweepReason = "pending timeout"
)

type stalePendingLister interface {
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
}

type pendingExpirer interface {
	ExpirePending(ctx context.Context, orderID uuid.UUID, reason string) error
}

// ReservationSweeperJobParams configure the pending order sweeper.
type ReservationSweeperJobParams struct {
	Logger         *logger.Logger
	Orders         stalePendingLister
	Checkout       pendingExpirer
	PendingTimeout time.Duration
	BatchSize      int
}

// NewReservationSweeperJob releases reservations held by orders that stayed
// PENDING past the timeout, typically after a failed compensation or a
// crashed checkout.
func NewReservationSweeperJob(params ReservationSweeperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	timeout := params.PendingTimeout
	if timeout <= 0 {
		timeout = defaultPendingTimeout
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &reservationSweeperJob{
		logg:     params.Logger,
		orders:   params.Orders,
		checkout: params.Checkout,
		timeout:  timeout,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type reservationSweeperJob struct {
	logg     *logger.Logger
	orders   stalePendingLister
	checkout pendingExpirer
	timeout  time.Duration
	batch    int
	now      func() time.Time
}

func (j *reservationSweeperJob) Name() string { return "reservation_sweeper" }

func (j *reservationSweeperJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.timeout)
	stale, err := j.orders.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list stale pending orders: %w", err)
	}

	var (
		expired int
		busy    int
		errs    error
	)
	for _, order := range stale {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		err := j.checkout.ExpirePending(orderCtx, order.ID, sweepReason)
		switch {
		case err == nil:
			expired++
		case pkgerrors.IsCode(err, pkgerrors.CodeCheckoutInProgress):
			// A live checkout owns the cart; the next cycle retries.
			busy++
		default:
			j.logg.Error(orderCtx, "failed to expire pending order", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
		"busy":    busy,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "reservation sweep complete")
	return errs
}
