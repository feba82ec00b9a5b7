// Package cart holds the live shopping cart of a storefront session.
package cart

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/example/champaran-pos/internal/models"
	"github.com/example/champaran-pos/internal/pricing"
)

// ErrInvalidItem is returned when an item cannot be placed in a cart.
var ErrInvalidItem = errors.New("invalid cart item")

// Store is an ordered collection of line items. All mutations go through its
// methods; callers only ever receive copies of the lines.
type Store struct {
	id    string
	mu    sync.Mutex
	items []models.LineItem

	checkout sync.Mutex
}

// NewStore returns an empty cart that belongs to no session.
func NewStore() *Store {
	return &Store{}
}

// ID returns the session id the cart belongs to, or "" for a detached cart.
func (s *Store) ID() string {
	return s.id
}

// AddItem appends item, or adds its quantity to an existing line with the
// same product, variant and size.
func (s *Store) AddItem(item models.LineItem) error {
	if err := validateItem(item); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := item.Key()
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items[i].Quantity += item.Quantity
			s.items[i].Recompute()
			return nil
		}
	}

	item.Recompute()
	s.items = append(s.items, item)
	return nil
}

// UpdateQuantity sets the quantity of line index. A quantity of zero or less
// removes the line. Out-of-range indexes are ignored.
func (s *Store) UpdateQuantity(index, qty int) {
	if qty <= 0 {
		s.RemoveItem(index)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return
	}
	s.items[index].Quantity = qty
	s.items[index].Recompute()
}

// RemoveItem drops line index. Out-of-range indexes are ignored.
func (s *Store) RemoveItem(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return
	}
	s.items = append(s.items[:index:index], s.items[index+1:]...)
}

// RemoveOrdered takes the ordered lines out of the cart. Each ordered line
// lowers the quantity of the live line with the same key; lines that reach
// zero are dropped. Anything added after the snapshot was taken stays.
func (s *Store) RemoveOrdered(ordered []models.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ordered {
		key := o.Key()
		for i := range s.items {
			if s.items[i].Key() != key {
				continue
			}
			s.items[i].Quantity -= o.Quantity
			s.items[i].Recompute()
			break
		}
	}

	kept := s.items[:0:0]
	for _, it := range s.items {
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	s.items = kept
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Totals prices the current lines. Nothing is cached.
func (s *Store) Totals(engine *pricing.Engine) pricing.Snapshot {
	return engine.Compute(s.Items())
}

func validateItem(item models.LineItem) error {
	switch {
	case strings.TrimSpace(item.ProductID) == "":
		return errors.Wrap(ErrInvalidItem, "product id is required")
	case item.Quantity < 1:
		return errors.Wrap(ErrInvalidItem, "quantity must be at least 1")
	case item.UnitPrice < 0:
		return errors.Wrap(ErrInvalidItem, "unit price must not be negative")
	case !item.Size.Valid():
		return errors.Wrapf(ErrInvalidItem, "unknown size %q", item.Size)
	}
	return nil
}

// BeginCheckout claims the cart for a single checkout. It returns false if a
// checkout of this cart is already running; otherwise release must be called
// when the checkout ends.
func (s *Store) BeginCheckout() (release func(), ok bool) {
	if !s.checkout.TryLock() {
		return nil, false
	}
	return s.checkout.Unlock, true
}
