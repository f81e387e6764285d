package store

import (
	"context"
	"sort"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
)

func (s *Store) AddWishlistEntry(ctx context.Context, entry domain.WishlistEntry) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = s.ids.now().UTC()
	}
	if err := put(ctx, s, kv.Wishlist, entry.ProductID, entry); err != nil {
		return s.writeFailed("add wishlist entry", err)
	}
	return nil
}

func (s *Store) RemoveWishlistEntry(ctx context.Context, productID string) error {
	if err := remove(ctx, s, kv.Wishlist, productID); err != nil {
		return s.writeFailed("remove wishlist entry", err)
	}
	return nil
}

// GetWishlist returns entries oldest first.
func (s *Store) GetWishlist(ctx context.Context) []domain.WishlistEntry {
	entries, err := list[domain.WishlistEntry](ctx, s, kv.Wishlist)
	if err != nil {
		s.readFailed("get wishlist", err)
		return []domain.WishlistEntry{}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AddedAt.Before(entries[j].AddedAt)
	})
	return entries
}
