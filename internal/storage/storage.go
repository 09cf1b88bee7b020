// Package storage holds the persisted key/value state that a browser would
// otherwise keep in local storage: the cart, the token pair, the selected
// language and table, and the restaurant open flag.
package storage

import "context"

const (
	KeyCartItems      = "cart_items"
	KeyAccessToken    = "access_token"
	KeyRefreshToken   = "refresh_token"
	KeyLanguage       = "language"
	KeyTableNumber    = "table_number"
	KeyStaffUser      = "staff_user"
	KeyRestaurantOpen = "restaurant_open"
)

// KV is a flat string store. Values carry no versioning.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type prefixed struct {
	kv     KV
	prefix string
}

// WithPrefix scopes kv so that every key is stored as prefix+key.
func WithPrefix(kv KV, prefix string) KV {
	return &prefixed{kv: kv, prefix: prefix}
}

// ForSession scopes kv to a single customer session.
func ForSession(kv KV, sessionID string) KV {
	return WithPrefix(kv, "session:"+sessionID+":")
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.kv.Delete(ctx, p.prefix+key)
}
