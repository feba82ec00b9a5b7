package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/example/champaran-pos/internal/models"
)

func setupTestDB(t *testing.T) *OrderRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("intake"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Connect(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, Close(db))
	})
	return NewOrderRepository(db)
}

func intakeRecord(number string) *models.OrderRecord {
	rec := models.NewOrderRecord(models.IntakePayload{
		OrderNumber:   number,
		Date:          "2026-10-15",
		Time:          "09:30:05",
		CustomerName:  "Asha Devi",
		CustomerPhone: "9876543210",
		Pincode:       "845401",
		Subtotal:      520,
		Discount:      26,
		DeliveryFee:   100,
		GrandTotal:    594,
		OrderStatus:   "Pending",
		Items: []models.IntakeItem{
			{ProductName: "Thekua", Size: "200g", SKU: "TK-200", Quantity: 2, UnitPrice: 140, LineTotal: 280},
			{ProductName: "Tilkut", Size: "500g", SKU: "TL-500", Quantity: 1, UnitPrice: 240, LineTotal: 240},
		},
	})
	return &rec
}

func TestOrderRepository(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		created, err := repo.Save(ctx, intakeRecord("MC-1"))
		require.NoError(t, err)
		assert.True(t, created)

		got, err := repo.Get(ctx, "MC-1")
		require.NoError(t, err)
		assert.Equal(t, int64(594), got.GrandTotal)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Len(t, got.Items, 2)
	})

	t.Run("duplicate order number is not stored twice", func(t *testing.T) {
		dup := intakeRecord("MC-1")
		dup.GrandTotal = 1
		created, err := repo.Save(ctx, dup)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := repo.Get(ctx, "MC-1")
		require.NoError(t, err)
		assert.Equal(t, int64(594), got.GrandTotal)
		assert.Len(t, got.Items, 2)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := repo.Get(ctx, "MC-404")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("update status and list", func(t *testing.T) {
		_, err := repo.Save(ctx, intakeRecord("MC-2"))
		require.NoError(t, err)

		rec, previous, err := repo.UpdateStatus(ctx, "MC-2", models.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, previous)
		assert.Equal(t, models.StatusConfirmed, rec.Status)
		assert.Len(t, rec.Items, 2)

		confirmed, total, err := repo.List(ctx, OrderFilter{Status: models.StatusConfirmed})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, confirmed, 1)
		assert.Equal(t, "MC-2", confirmed[0].OrderNumber)

		all, total, err := repo.List(ctx, OrderFilter{Since: time.Now().Add(-time.Hour), Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, all, 1)
	})

	t.Run("bad status", func(t *testing.T) {
		_, _, err := repo.UpdateStatus(ctx, "MC-1", "lost")
		assert.Error(t, err)

		_, _, err = repo.UpdateStatus(ctx, "MC-404", models.StatusCancelled)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestEnsureDatabase_SkipsNonURLDSN(t *testing.T) {
	assert.NoError(t, ensureDatabase("host=localhost user=pos dbname=pos"))
	assert.NoError(t, ensureDatabase("postgres://localhost:5432"))
}
