// Package store is the local persistent store: typed access to the cached
// catalog, the cart mirror, the wishlist and the pending order queue.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	StateUnopened State = iota
	StateOpening
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var ErrClosed = errors.New("store closed")

// Opener creates the backend. It runs at most once per successful open.
type Opener func(ctx context.Context) (kv.Backend, error)

// WithMemoryFallback wraps an opener so that an unavailable backend degrades
// to an in-memory one instead of failing the open.
func WithMemoryFallback(open Opener, log *slog.Logger) Opener {
	log = logger.OrNop(log)
	return func(ctx context.Context) (kv.Backend, error) {
		b, err := open(ctx)
		if err != nil {
			log.Warn("local store unavailable, continuing memory-only", "error", err)
			return kv.NewMemory(), nil
		}
		return b, nil
	}
}

type Store struct {
	opener Opener
	log    *slog.Logger
	sfg    singleflight.Group

	mu      sync.RWMutex
	state   State
	backend kv.Backend
	openErr error

	ids idSource
}

func New(opener Opener, log *slog.Logger) *Store {
	return &Store{
		opener: opener,
		log:    logger.OrNop(log),
		ids:    newIDSource(),
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Open brings the store to Ready. Concurrent callers share the same opening;
// a failed open may be retried by a later call.
func (s *Store) Open(ctx context.Context) error {
	_, err := s.ready(ctx)
	return err
}

func (s *Store) ready(ctx context.Context) (kv.Backend, error) {
	s.mu.RLock()
	state, backend := s.state, s.backend
	s.mu.RUnlock()

	switch state {
	case StateReady:
		return backend, nil
	case StateClosed:
		return nil, ErrClosed
	}

	v, err, _ := s.sfg.Do("open", func() (interface{}, error) {
		s.mu.Lock()
		switch s.state {
		case StateReady:
			b := s.backend
			s.mu.Unlock()
			return b, nil
		case StateClosed:
			s.mu.Unlock()
			return nil, ErrClosed
		}
		s.state = StateOpening
		s.mu.Unlock()

		b, err := s.opener(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateClosed {
			if b != nil {
				_ = b.Close()
			}
			return nil, ErrClosed
		}
		if err != nil {
			s.state = StateFailed
			s.openErr = err
			s.log.Error("failed to open local store", "error", err)
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		s.state = StateReady
		s.backend = b
		s.openErr = nil
		s.log.Debug("local store ready")
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(kv.Backend), nil
}

// Close releases the backend. The store cannot be reopened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

func (s *Store) writeFailed(op string, err error) error {
	s.log.Warn("local store write failed", "op", op, "error", err)
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrPersistence, err)
}

func (s *Store) readFailed(op string, err error) {
	s.log.Warn("local store read failed, serving empty result", "op", op, "error", err)
}
