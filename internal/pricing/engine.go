// Package pricing derives cart totals: subtotal, tiered discount, delivery fee
// and grand total. All amounts are whole currency units.
package pricing

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/champaran-pos/internal/models"
)

// Tier grants Rate on subtotals of at least MinSubtotal.
type Tier struct {
	MinSubtotal int64           `yaml:"min_subtotal" json:"min_subtotal"`
	Rate        decimal.Decimal `yaml:"rate" json:"rate"`
}

// Config is the pricing table.
type Config struct {
	Tiers                 []Tier `yaml:"tiers" json:"tiers"`
	FreeDeliveryThreshold int64  `yaml:"free_delivery_threshold" json:"free_delivery_threshold"`
	DeliveryFee           int64  `yaml:"delivery_fee" json:"delivery_fee"`
}

// DefaultConfig is used when no pricing table is supplied.
func DefaultConfig() Config {
	return Config{
		Tiers: []Tier{
			{MinSubtotal: 2000, Rate: decimal.RequireFromString("0.15")},
			{MinSubtotal: 1000, Rate: decimal.RequireFromString("0.10")},
			{MinSubtotal: 500, Rate: decimal.RequireFromString("0.05")},
		},
		FreeDeliveryThreshold: 1000,
		DeliveryFee:           100,
	}
}

// Validate rejects tables that could produce nonsensical totals.
func (c Config) Validate() error {
	if c.DeliveryFee < 0 {
		return errors.New("delivery fee must not be negative")
	}
	if c.FreeDeliveryThreshold < 0 {
		return errors.New("free delivery threshold must not be negative")
	}
	seen := make(map[int64]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.MinSubtotal < 0 {
			return errors.Errorf("tier %d: minimum subtotal must not be negative", t.MinSubtotal)
		}
		if t.Rate.IsNegative() || t.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return errors.Errorf("tier %d: rate %s outside [0, 1]", t.MinSubtotal, t.Rate)
		}
		if seen[t.MinSubtotal] {
			return errors.Errorf("tier %d: duplicate threshold", t.MinSubtotal)
		}
		seen[t.MinSubtotal] = true
	}
	return nil
}

// Snapshot is derived from a cart and never stored on its own.
type Snapshot struct {
	Subtotal     int64           `json:"subtotal"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	Discount     int64           `json:"discount"`
	Delivery     int64           `json:"delivery"`
	GrandTotal   int64           `json:"grand_total"`

	// Clamped is set when the table drove the total below zero. It cannot
	// happen with a validated Config.
	Clamped bool `json:"-"`

	NextTier              *TierHint `json:"next_tier,omitempty"`
	FreeDeliveryShortfall int64     `json:"free_delivery_shortfall,omitempty"`
}

// TierHint tells how much more must be spent to reach the next discount.
type TierHint struct {
	Shortfall int64           `json:"shortfall"`
	Rate      decimal.Decimal `json:"rate"`
}

// Engine computes Snapshots from a fixed table.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an Engine. Tiers are kept sorted from
// the highest threshold down.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pricing config")
	}
	tiers := make([]Tier, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinSubtotal > tiers[j].MinSubtotal })
	cfg.Tiers = tiers
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's table.
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute derives totals for items. An empty cart yields an all-zero
// snapshot: there is nothing to deliver.
func (e *Engine) Compute(items []models.LineItem) Snapshot {
	var subtotal int64
	for _, it := range items {
		subtotal += it.UnitPrice * int64(it.Quantity)
	}
	if len(items) == 0 {
		return Snapshot{DiscountRate: decimal.Zero}
	}

	rate := e.RateFor(subtotal)
	discount := decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()

	delivery := e.cfg.DeliveryFee
	if subtotal >= e.cfg.FreeDeliveryThreshold {
		delivery = 0
	}

	s := Snapshot{
		Subtotal:     subtotal,
		DiscountRate: rate,
		Discount:     discount,
		Delivery:     delivery,
		GrandTotal:   subtotal - discount + delivery,
	}
	if s.GrandTotal < 0 {
		s.GrandTotal = 0
		s.Clamped = true
	}

	if next := e.nextTier(subtotal); next != nil {
		s.NextTier = &TierHint{Shortfall: next.MinSubtotal - subtotal, Rate: next.Rate}
	}
	if delivery > 0 {
		s.FreeDeliveryShortfall = e.cfg.FreeDeliveryThreshold - subtotal
	}
	return s
}

// RateFor returns the rate of the highest tier whose threshold subtotal
// reaches. Tiers do not stack.
func (e *Engine) RateFor(subtotal int64) decimal.Decimal {
	for _, t := range e.cfg.Tiers {
		if subtotal >= t.MinSubtotal {
			return t.Rate
		}
	}
	return decimal.Zero
}

func (e *Engine) nextTier(subtotal int64) *Tier {
	current := e.RateFor(subtotal)
	var next *Tier
	for i := range e.cfg.Tiers {
		t := &e.cfg.Tiers[i]
		if t.MinSubtotal > subtotal && t.Rate.GreaterThan(current) {
			next = t
		}
	}
	return next
}
