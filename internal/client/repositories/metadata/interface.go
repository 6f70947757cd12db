// Package metadata is a small key/value store in the client database. It
// keeps what must survive a restart outside the queue: the session cookies
// and the last signed-in user. Values are stored as JSON documents.
package metadata

import "context"

// Well-known keys.
const (
	KeyCookies = "session.cookies"
	KeyUser    = "session.user"
)

type Repository interface {
	// Get returns the raw document under key, or (nil, nil) when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Load decodes the document under key into v and reports whether it existed.
	Load(ctx context.Context, key string, v any) (bool, error)
	// Save encodes v and upserts it under key.
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
}
