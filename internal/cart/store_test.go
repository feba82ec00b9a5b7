package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/champaran-pos/internal/models"
	"github.com/example/champaran-pos/internal/pricing"
)

func item(product, variant string, size models.Size, price int64, qty int) models.LineItem {
	return models.LineItem{
		ProductID:   product,
		ProductName: product,
		VariantName: variant,
		Size:        size,
		SKU:         product + "-" + variant + "-" + string(size),
		UnitPrice:   price,
		Quantity:    qty,
	}
}

func TestAddItem_MergesSameKey(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.AddItem(item("thekua", "classic", models.Size200g, 140, 1)))
	require.NoError(t, s.AddItem(item("thekua", "classic", models.Size200g, 140, 2)))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, int64(420), items[0].LineTotal)
}

func TestAddItem_DistinctKeysAppend(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.AddItem(item("thekua", "classic", models.Size200g, 140, 1)))
	require.NoError(t, s.AddItem(item("thekua", "classic", models.Size500g, 320, 1)))
	require.NoError(t, s.AddItem(item("thekua", "jaggery", models.Size200g, 160, 1)))

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, models.Size500g, items[1].Size)
	assert.Equal(t, "jaggery", items[2].VariantName)
}

func TestAddItem_IgnoresSuppliedLineTotal(t *testing.T) {
	s := NewStore()
	it := item("khaja", "plain", models.Size1kg, 500, 2)
	it.LineTotal = 1

	require.NoError(t, s.AddItem(it))

	assert.Equal(t, int64(1000), s.Items()[0].LineTotal)
}

func TestAddItem_Validation(t *testing.T) {
	s := NewStore()

	cases := []models.LineItem{
		item("a", "v", models.Size200g, 10, 0),
		item("a", "v", models.Size200g, -1, 1),
		item("a", "v", models.Size("3kg"), 10, 1),
		item("", "v", models.Size200g, 10, 1),
	}
	for _, c := range cases {
		err := s.AddItem(c)
		assert.ErrorIs(t, err, ErrInvalidItem)
	}
	assert.Zero(t, s.Len())
}

func TestUpdateQuantity(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddItem(item("a", "v", models.Size200g, 10, 1)))
	require.NoError(t, s.AddItem(item("b", "v", models.Size200g, 20, 1)))

	s.UpdateQuantity(1, 5)
	assert.Equal(t, 5, s.Items()[1].Quantity)
	assert.Equal(t, int64(100), s.Items()[1].LineTotal)

	s.UpdateQuantity(0, 0)
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ProductID)

	s.UpdateQuantity(7, 3)
	assert.Equal(t, 1, s.Len())
}

func TestRemoveItem_OutOfRangeIsNoop(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddItem(item("a", "v", models.Size200g, 10, 1)))

	s.RemoveItem(-1)
	s.RemoveItem(1)
	assert.Equal(t, 1, s.Len())

	s.RemoveItem(0)
	assert.Zero(t, s.Len())
}

func TestItemsReturnsCopy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddItem(item("a", "v", models.Size200g, 10, 1)))

	items := s.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, s.Items()[0].Quantity)
}

func TestClearAndTotals(t *testing.T) {
	engine, err := pricing.NewEngine(pricing.DefaultConfig())
	require.NoError(t, err)

	s := NewStore()
	require.NoError(t, s.AddItem(item("a", "v", models.Size200g, 140, 2)))
	require.NoError(t, s.AddItem(item("b", "v", models.Size200g, 240, 1)))

	assert.Equal(t, int64(594), s.Totals(engine).GrandTotal)

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Totals(engine).GrandTotal)
}

func TestRegistry(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour)
	r.now = func() time.Time { return now }

	a := r.Get("a")
	assert.Same(t, a, r.Get("a"))
	assert.NotSame(t, a, r.Get("b"))

	now = now.Add(30 * time.Minute)
	r.Get("b")

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.NotSame(t, a, r.Get("a"))
}

func TestStore_BeginCheckoutIsExclusive(t *testing.T) {
	s := NewStore()

	release, ok := s.BeginCheckout()
	require.True(t, ok)

	_, ok = s.BeginCheckout()
	assert.False(t, ok)

	release()
	release2, ok := s.BeginCheckout()
	assert.True(t, ok)
	release2()
}

func TestRemoveOrdered_KeepsLinesAddedAfterSnapshot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddItem(item("thekua", "classic", models.Size200g, 140, 2)))
	require.NoError(t, s.AddItem(item("litti", "sattu", models.Size500g, 240, 1)))

	ordered := s.Items()

	require.NoError(t, s.AddItem(item("khaja", "sugar", models.Size200g, 120, 1)))
	require.NoError(t, s.AddItem(item("thekua", "classic", models.Size200g, 140, 1)))

	s.RemoveOrdered(ordered)

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "thekua", items[0].ProductID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, int64(140), items[0].LineTotal)
	assert.Equal(t, "khaja", items[1].ProductID)
}

func TestRemoveOrdered_DropsLinesReducedDuringCheckout(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddItem(item("thekua", "classic", models.Size200g, 140, 3)))
	ordered := s.Items()

	s.UpdateQuantity(0, 1)
	s.RemoveOrdered(ordered)

	assert.Zero(t, s.Len())
}
