package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/champaran-pos/internal/models"
)

func setupArchive(t *testing.T, maxEntries int64) (*RedisArchive, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisArchive(client, maxEntries), mr
}

func testOrder(n string) models.Order {
	return models.Order{
		OrderNumber:  n,
		CustomerName: "Asha",
		Subtotal:     520,
		DiscountRate: decimal.RequireFromString("0.05"),
		Discount:     26,
		Delivery:     100,
		GrandTotal:   594,
		Items: []models.LineItem{
			{ProductID: "thekua", VariantName: "classic", Size: models.Size200g, UnitPrice: 140, Quantity: 2, LineTotal: 280},
		},
		Timestamp: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestAppendAndFind(t *testing.T) {
	a, _ := setupArchive(t, 0)
	ctx := context.Background()

	require.NoError(t, a.Append(ctx, testOrder("MC-1")))

	got, err := a.FindByOrderNumber(ctx, "MC-1")
	require.NoError(t, err)
	assert.Equal(t, testOrder("MC-1"), got)
}

func TestAppend_FailedIndexStoresNothing(t *testing.T) {
	a, mr := setupArchive(t, 0)
	ctx := context.Background()

	// a wrongly typed index key makes RPUSH fail
	require.NoError(t, mr.Set(a.indexKey(), "not-a-list"))

	require.Error(t, a.Append(ctx, testOrder("MC-1")))
	assert.False(t, mr.Exists(a.ordersKey()))

	_, err := a.FindByOrderNumber(ctx, "MC-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// once the index is usable the same order can be archived
	mr.Del(a.indexKey())
	require.NoError(t, a.Append(ctx, testOrder("MC-1")))
	all, err := a.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestFindUnknown(t *testing.T) {
	a, _ := setupArchive(t, 0)

	_, err := a.FindByOrderNumber(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllKeepsInsertionOrder(t *testing.T) {
	a, _ := setupArchive(t, 0)
	ctx := context.Background()

	empty, err := a.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, n := range []string{"MC-3", "MC-1", "MC-2"} {
		require.NoError(t, a.Append(ctx, testOrder(n)))
	}

	all, err := a.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "MC-3", all[0].OrderNumber)
	assert.Equal(t, "MC-1", all[1].OrderNumber)
	assert.Equal(t, "MC-2", all[2].OrderNumber)
}

func TestAppendRejectsDuplicates(t *testing.T) {
	a, _ := setupArchive(t, 0)
	ctx := context.Background()

	require.NoError(t, a.Append(ctx, testOrder("MC-1")))
	err := a.Append(ctx, testOrder("MC-1"))
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	all, err := a.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAppendRequiresOrderNumber(t *testing.T) {
	a, _ := setupArchive(t, 0)
	assert.Error(t, a.Append(context.Background(), models.Order{}))
}

func TestEvictionDropsOldest(t *testing.T) {
	a, mr := setupArchive(t, 2)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n := fmt.Sprintf("MC-%d", i)
		require.NoError(t, a.Append(ctx, testOrder(n)))
		require.NoError(t, a.RecordDelivery(ctx, n, models.DeliveryStatus{Outcome: models.DeliveryFailed}))
		require.NoError(t, a.StoreProof(ctx, n, models.StoredProof{FileName: "p.jpg", Data: []byte{1}}))
	}

	all, err := a.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "MC-2", all[0].OrderNumber)

	_, err = a.FindByOrderNumber(ctx, "MC-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.Delivery(ctx, "MC-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(a.proofKey("MC-1")))
	assert.True(t, mr.Exists(a.proofKey("MC-3")))
}

func TestDeliveryLog(t *testing.T) {
	a, _ := setupArchive(t, 0)
	ctx := context.Background()

	_, err := a.Delivery(ctx, "MC-1")
	assert.ErrorIs(t, err, ErrNotFound)

	status := models.DeliveryStatus{
		Outcome:   models.DeliveryUnconfirmed,
		Transport: "post-no-response",
		At:        time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, a.RecordDelivery(ctx, "MC-1", status))

	got, err := a.Delivery(ctx, "MC-1")
	require.NoError(t, err)
	assert.Equal(t, status, got)
	assert.True(t, got.Submitted())
}

func TestProofStash(t *testing.T) {
	a, _ := setupArchive(t, 0)
	ctx := context.Background()

	_, err := a.Proof(ctx, "MC-1")
	assert.ErrorIs(t, err, ErrNotFound)

	proof := models.StoredProof{
		FileName: "screenshot.png",
		MimeType: "image/png",
		Data:     []byte{0x89, 'P', 'N', 'G'},
		StoredAt: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, a.StoreProof(ctx, "MC-1", proof))

	got, err := a.Proof(ctx, "MC-1")
	require.NoError(t, err)
	assert.Equal(t, proof, got)
}

func TestAllFailsWhenRedisIsDown(t *testing.T) {
	a, mr := setupArchive(t, 0)
	mr.Close()

	_, err := a.All(context.Background())
	assert.Error(t, err)
}
