package syncer

import (
	"context"
	"sort"
	"time"
)

type StalledOrder struct {
	TempID    string `json:"tempId"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError"`
}

type Status struct {
	Online        bool           `json:"online"`
	Pending       int            `json:"pending"`
	Pushing       bool           `json:"pushing"`
	Stalled       []StalledOrder `json:"stalled"`
	LastPullAt    *time.Time     `json:"lastPullAt,omitempty"`
	LastPullError string         `json:"lastPullError,omitempty"`
	LastPushAt    *time.Time     `json:"lastPushAt,omitempty"`
	LastPushError string         `json:"lastPushError,omitempty"`
}

func (e *Engine) Status(ctx context.Context) Status {
	pending := 0
	queued := make(map[string]bool)
	for _, o := range e.store.GetPendingOrders(ctx) {
		queued[o.TempID] = true
		if !o.Synced {
			pending++
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Online:        e.monitor.IsOnline(),
		Pending:       pending,
		Pushing:       e.pushing,
		Stalled:       []StalledOrder{},
		LastPullError: e.lastPull.err,
		LastPushError: e.lastPush.err,
	}
	if !e.lastPull.at.IsZero() {
		at := e.lastPull.at
		st.LastPullAt = &at
	}
	if !e.lastPush.at.IsZero() {
		at := e.lastPush.at
		st.LastPushAt = &at
	}
	for id, f := range e.failures {
		// dropped by another process
		if f.stalled && queued[id] {
			st.Stalled = append(st.Stalled, StalledOrder{TempID: id, Attempts: f.attempts, LastError: f.lastError})
		}
	}
	sort.Slice(st.Stalled, func(i, j int) bool { return st.Stalled[i].TempID < st.Stalled[j].TempID })
	return st
}
