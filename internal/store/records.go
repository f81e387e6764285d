package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/kv"
)

func put[T any](ctx context.Context, s *Store, collection, key string, v T) error {
	b, err := s.ready(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", collection, err)
	}
	return b.Put(ctx, collection, key, raw)
}

// get reports found=false both for a missing key and for an unavailable store.
func get[T any](ctx context.Context, s *Store, collection, key string) (T, bool, error) {
	var v T
	b, err := s.ready(ctx)
	if err != nil {
		return v, false, err
	}
	raw, err := b.Get(ctx, collection, key)
	if errors.Is(err, kv.ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("failed to decode %s/%s: %w", collection, key, err)
	}
	return v, true, nil
}

// list skips records that fail to decode so one bad entry cannot hide the rest.
func list[T any](ctx context.Context, s *Store, collection string) ([]T, error) {
	b, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	records, err := b.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		var v T
		if err := json.Unmarshal(r.Value, &v); err != nil {
			s.log.Warn("skipping undecodable record", "collection", collection, "key", r.Key, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func remove(ctx context.Context, s *Store, collection, key string) error {
	b, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return b.Delete(ctx, collection, key)
}

func clearCollection(ctx context.Context, s *Store, collection string) error {
	b, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return b.Clear(ctx, collection)
}
