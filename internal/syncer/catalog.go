package syncer

import (
	"context"
	"time"
)

// PullResult describes what a catalog pull served.
type PullResult struct {
	Products  int
	Refreshed bool
}

// PullCatalog replaces the cached catalog with the authority's list when
// online. Offline, or when the fetch fails, the cache is served as is; a
// failed pull never surfaces as an error. Concurrent callers share one pull.
func (e *Engine) PullCatalog(ctx context.Context) PullResult {
	v, _, _ := e.pullGroup.Do("catalog", func() (interface{}, error) {
		return e.pull(ctx), nil
	})
	return v.(PullResult)
}

func (e *Engine) pull(ctx context.Context) PullResult {
	if !e.monitor.IsOnline() {
		e.log.Debug("offline, serving cached catalog")
		return PullResult{Products: len(e.store.GetProducts(ctx))}
	}

	products, err := e.remote.ListProducts(ctx)
	if err != nil {
		e.log.Warn("catalog pull failed, serving cached catalog", "error", err)
		e.recordPull(err)
		return PullResult{Products: len(e.store.GetProducts(ctx))}
	}

	if err := e.store.ReplaceProducts(ctx, products); err != nil {
		e.log.Warn("failed to cache catalog", "error", err)
		e.recordPull(err)
		return PullResult{Products: len(products)}
	}

	e.recordPull(nil)
	e.log.Info("catalog refreshed", "products", len(products))
	return PullResult{Products: len(products), Refreshed: true}
}

func (e *Engine) recordPull(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPull = flowStatus{at: time.Now()}
	if err != nil {
		e.lastPull.err = err.Error()
	}
}
