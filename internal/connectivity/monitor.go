package connectivity

import (
	"sync"
	"time"
)

// Event is one online/offline edge.
type Event struct {
	Online bool
	At     time.Time
}

// Monitor reports connectivity and notifies listeners of transitions.
type Monitor interface {
	IsOnline() bool
	// Subscribe registers fn for transitions. Listeners are called in
	// registration order, once per edge, from the goroutine that observed it.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// notifier holds the last known state and fans edges out to listeners.
// Reports that do not change the state are dropped, so every listener sees
// each transition exactly once.
type notifier struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(Event)
	order     []int

	// serialises delivery so listeners see edges in the order they happened
	deliver sync.Mutex
}

func newNotifier(initial bool) *notifier {
	return &notifier{online: initial, listeners: make(map[int]func(Event))}
}

func (n *notifier) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *notifier) Subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.order = append(n.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.listeners, id)
			for i, v := range n.order {
				if v == id {
					n.order = append(n.order[:i], n.order[i+1:]...)
					break
				}
			}
		})
	}
}

// report records the observed state; it returns true when it was an edge.
func (n *notifier) report(online bool) bool {
	n.deliver.Lock()
	defer n.deliver.Unlock()

	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return false
	}
	n.online = online
	fns := make([]func(Event), 0, len(n.order))
	for _, id := range n.order {
		fns = append(fns, n.listeners[id])
	}
	n.mu.Unlock()

	ev := Event{Online: online, At: time.Now()}
	for _, fn := range fns {
		fn(ev)
	}
	return true
}

// Manual is a Monitor driven by SetOnline. Hosts that already own a platform
// connectivity signal feed it here.
type Manual struct {
	*notifier
}

func NewManual(online bool) *Manual {
	return &Manual{notifier: newNotifier(online)}
}

// SetOnline reports the current state; listeners fire only on change.
func (m *Manual) SetOnline(online bool) {
	m.report(online)
}
