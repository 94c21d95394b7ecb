package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/leafshop/leafshop-backend/pkg/db/dbtest"
	"github.com/leafshop/leafshop-backend/pkg/db/models"
)

func TestServiceLookups(t *testing.T) {
	conn := dbtest.Open(t, "catalog")
	product := dbtest.MustProduct(t, conn, "Monstera", "25.00")
	override := "30.00"
	variant := dbtest.MustVariant(t, conn, product.ID, "Large", &override)
	other := dbtest.MustProduct(t, conn, "Fern", "9.50")

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, "Monstera", got.Name)

	_, err = svc.GetProduct(ctx, uuid.New())
	require.ErrorIs(t, err, ErrProductNotFound)

	gotVariant, err := svc.GetVariant(ctx, product.ID, variant.ID)
	require.NoError(t, err)
	require.True(t, UnitPrice(got, gotVariant).Equal(decimal.RequireFromString("30.00")))

	_, err = svc.GetVariant(ctx, other.ID, variant.ID)
	require.ErrorIs(t, err, ErrVariantNotFound)
}

func TestUnitPriceFallsBackToProduct(t *testing.T) {
	product := &models.Product{Price: decimal.RequireFromString("12.00")}
	require.True(t, UnitPrice(product, nil).Equal(product.Price))
	require.True(t, UnitPrice(product, &models.ProductVariant{}).Equal(product.Price))
	require.True(t, UnitPrice(nil, nil).IsZero())
}

type slowRepo struct {
	calls   atomic.Int32
	release chan struct{}
	product models.Product
}

func (r *slowRepo) FindProduct(ctx context.Context, _ uuid.UUID) (*models.Product, error) {
	r.calls.Add(1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.release:
	}
	product := r.product
	return &product, nil
}

func (r *slowRepo) FindVariant(context.Context, uuid.UUID, uuid.UUID) (*models.ProductVariant, error) {
	return nil, errors.New("not used")
}

func TestGetProductCollapsesConcurrentLookups(t *testing.T) {
	repo := &slowRepo{release: make(chan struct{}), product: models.Product{ID: uuid.New(), Name: "Pothos"}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.GetProduct(context.Background(), repo.product.ID)
			if err != nil || got.Name != "Pothos" {
				t.Errorf("unexpected lookup result: %v %v", got, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	require.LessOrEqual(t, repo.calls.Load(), int32(2))
}

func TestGetProductOutlivesCancelledFirstCaller(t *testing.T) {
	repo := &slowRepo{release: make(chan struct{}), product: models.Product{ID: uuid.New(), Name: "Pothos"}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.GetProduct(leaderCtx, repo.product.ID)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, time.Millisecond)

	follower := make(chan error, 1)
	go func() {
		got, err := svc.GetProduct(context.Background(), repo.product.ID)
		if err == nil && got.Name != "Pothos" {
			err = errors.New("wrong product")
		}
		follower <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(repo.release)
	require.NoError(t, <-follower)
	require.Equal(t, int32(1), repo.calls.Load())
}
