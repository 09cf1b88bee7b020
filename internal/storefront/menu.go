package storefront

import (
	"sync"

	"github.com/jogardn/restaurant-storefront/pkg/models"
)

// menuIndex remembers the items of the last catalog served, so cart lines
// can be priced from the menu instead of from what the page sent.
type menuIndex struct {
	mu    sync.RWMutex
	items map[int64]models.MenuItem
}

func newMenuIndex() *menuIndex {
	return &menuIndex{items: make(map[int64]models.MenuItem)}
}

func (m *menuIndex) store(items []models.MenuItem) {
	index := make(map[int64]models.MenuItem, len(items))
	for _, item := range items {
		index[item.ID] = item
	}
	m.mu.Lock()
	m.items = index
	m.mu.Unlock()
}

func (m *menuIndex) lookup(id int64) (models.MenuItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok
}
