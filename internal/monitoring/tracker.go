package monitoring

import (
	"sync"
	"time"
)

// Tracker accumulates run-level counters and values for the end-of-run
// summary. It complements the prometheus Collector with free-form state a
// single batch run wants to print.
type Tracker struct {
	mu      sync.RWMutex
	values  map[string]interface{}
	started time.Time
}

// NewTracker creates a tracker with the run clock started.
func NewTracker() *Tracker {
	return &Tracker{
		values:  make(map[string]interface{}),
		started: time.Now(),
	}
}

// Set records a value under a name, replacing any previous value.
func (t *Tracker) Set(name string, value interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[name] = value
}

// Add increments a numeric counter.
func (t *Tracker) Add(name string, delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, _ := t.values[name].(int)
	t.values[name] = current + delta
}

// Get returns a recorded value.
func (t *Tracker) Get(name string) (interface{}, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[name]
	return v, ok
}

// Values returns a copy of everything recorded plus the run's elapsed time.
func (t *Tracker) Values() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]interface{}, len(t.values)+1)
	for k, v := range t.values {
		out[k] = v
	}
	out["elapsed_seconds"] = time.Since(t.started).Seconds()
	return out
}
