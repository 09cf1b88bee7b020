package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

// Store keeps one session's cart as a JSON list under storage.KeyCartItems.
// Every mutation is read-modify-write and last writer wins.
type Store struct {
	kv     storage.KV
	logger *logrus.Logger
}

func NewStore(kv storage.KV, logger *logrus.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Items returns the persisted cart. A missing or unreadable value is an empty
// cart, never an error; only a failing storage backend is reported.
func (s *Store) Items(ctx context.Context) ([]models.CartItem, error) {
	raw, ok, err := s.kv.Get(ctx, storage.KeyCartItems)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if !ok || raw == "" {
		return []models.CartItem{}, nil
	}

	var items []models.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.WithError(err).Warn("Discarding unreadable cart")
		return []models.CartItem{}, nil
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return items, nil
}

func (s *Store) Save(ctx context.Context, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyCartItems, string(data)); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Add merges item into the cart. An existing entry keeps its position, gains
// qty and takes the latest name, price and image.
func (s *Store) Add(ctx context.Context, item models.CartItem, qty int) ([]models.CartItem, error) {
	if qty <= 0 {
		qty = 1
	}

	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range items {
		if items[i].ID == item.ID {
			items[i].Qty += qty
			items[i].Name = item.Name
			items[i].Price = item.Price
			items[i].Image = item.Image
			found = true
			break
		}
	}
	if !found {
		item.Qty = qty
		items = append(items, item)
	}

	if err := s.Save(ctx, items); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"item_id": item.ID,
		"qty":     qty,
		"merged":  found,
	}).Debug("Item added to cart")

	return items, nil
}

// Update sets the quantity for id. Entries that end at qty <= 0 are dropped.
func (s *Store) Update(ctx context.Context, id int64, qty int) ([]models.CartItem, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}

	kept := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		if it.ID == id {
			it.Qty = qty
		}
		if it.Qty > 0 {
			kept = append(kept, it)
		}
	}

	if err := s.Save(ctx, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (s *Store) Remove(ctx context.Context, id int64) ([]models.CartItem, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}

	kept := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}

	if err := s.Save(ctx, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storage.KeyCartItems); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Totals sums quantities and price*qty using decimal arithmetic so that
// 0.1-style prices do not drift.
func Totals(items []models.CartItem) (int, decimal.Decimal) {
	count := 0
	subtotal := decimal.Zero
	for _, it := range items {
		count += it.Qty
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	return count, subtotal.Round(2)
}

// UnitPrice is the menu price plus every selected extra, per unit.
func UnitPrice(item models.MenuItem, selected []string) float64 {
	total := decimal.NewFromFloat(item.Price)
	for _, id := range selected {
		for _, extra := range item.Extras {
			if extra.ID == id {
				total = total.Add(decimal.NewFromFloat(extra.Price))
				break
			}
		}
	}
	return total.Round(2).InexactFloat64()
}
