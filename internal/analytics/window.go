package analytics

import "time"

// Window is a half-open [From, To) analysis interval.
type Window struct {
	From time.Time
	To   time.Time
}

// Days returns the window length in days.
func (w Window) Days() float64 {
	return w.To.Sub(w.From).Hours() / 24
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// DataGap is a per-entity data-quality problem that excluded the entity from
// a computation. Gaps are reported alongside results, never as failures.
type DataGap struct {
	EntityID    string
	DisplayName string
	Reason      string
}
