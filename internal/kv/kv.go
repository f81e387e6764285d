// Package kv is the storage interface behind the local store: a handful of
// keyed collections, each holding opaque values.
package kv

import (
	"context"
	"errors"
)

// Logical collections of the local store.
const (
	Products      = "products"
	Cart          = "cart"
	Wishlist      = "wishlist"
	PendingOrders = "pendingOrders"
)

var (
	ErrNotFound          = errors.New("key not found")
	ErrClosed            = errors.New("backend closed")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Record is one key/value pair of a collection.
type Record struct {
	Key   string
	Value []byte
}

// Backend is implemented by every storage engine. Each Put is atomic: a value
// is either fully stored or absent.
type Backend interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Put(ctx context.Context, collection, key string, value []byte) error
	Delete(ctx context.Context, collection, key string) error
	// GetAll returns the collection's records ordered by key.
	GetAll(ctx context.Context, collection string) ([]Record, error)
	// Replace swaps the whole content of a collection for records.
	Replace(ctx context.Context, collection string, records []Record) error
	Clear(ctx context.Context, collection string) error
	Close() error
}

func checkCollection(collection string) error {
	switch collection {
	case Products, Cart, Wishlist, PendingOrders:
		return nil
	}
	return ErrUnknownCollection
}
