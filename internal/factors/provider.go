package factors

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"brigade/internal/models"
)

// ErrUnavailable is returned when every configured factor source failed.
var ErrUnavailable = errors.New("no factor source available")

// Source supplies external factor readings (weather, events, holidays) for a
// date range at a location.
type Source interface {
	// GetFactors returns readings with dates in [from, to]. Implementations
	// must honor ctx cancellation.
	GetFactors(ctx context.Context, from, to time.Time, location string) ([]models.ExternalFactorReading, error)

	// Name identifies the source in logs.
	Name() string
}

// Static is a Source backed by a fixed set of readings. It is used for
// locally configured calendars (known holidays, booked events) and in tests.
type Static struct {
	name     string
	readings []models.ExternalFactorReading
}

// NewStatic creates a static source with the given readings.
func NewStatic(name string, readings []models.ExternalFactorReading) *Static {
	return &Static{name: name, readings: readings}
}

// Name implements Source.
func (s *Static) Name() string {
	return s.name
}

// GetFactors implements Source. Readings are filtered to [from, to] and
// returned in date order.
func (s *Static) GetFactors(ctx context.Context, from, to time.Time, _ string) ([]models.ExternalFactorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.ExternalFactorReading
	for _, r := range s.readings {
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// MultiSource fans a query out to several sources concurrently and merges
// the results. A failing source is logged and skipped; the query fails only
// when every source fails.
type MultiSource struct {
	sources []Source
	timeout time.Duration
	log     *logrus.Logger
}

// NewMultiSource combines the given sources under a per-source timeout.
func NewMultiSource(timeout time.Duration, log *logrus.Logger, sources ...Source) *MultiSource {
	return &MultiSource{sources: sources, timeout: timeout, log: log}
}

// Name implements Source.
func (m *MultiSource) Name() string {
	return "multi"
}

// GetFactors implements Source. Results are deduplicated on (date, kind);
// the earliest-listed source wins a collision.
func (m *MultiSource) GetFactors(ctx context.Context, from, to time.Time, location string) ([]models.ExternalFactorReading, error) {
	if len(m.sources) == 0 {
		return nil, ErrUnavailable
	}

	type result struct {
		idx      int
		readings []models.ExternalFactorReading
		err      error
	}
	results := make([]result, len(m.sources))

	var wg sync.WaitGroup
	for i, src := range m.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			readings, err := src.GetFactors(sctx, from, to, location)
			results[i] = result{idx: i, readings: readings, err: err}
		}(i, src)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var merged []models.ExternalFactorReading
	failures := 0
	for i, res := range results {
		if res.err != nil {
			failures++
			m.log.WithFields(logrus.Fields{
				"source": m.sources[i].Name(),
				"error":  res.err.Error(),
			}).Warn("[factors.source_failed]")
			continue
		}
		for _, r := range res.readings {
			key := models.FactorKey(r.Date, r.Kind)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
		}
	}
	if failures == len(m.sources) {
		return nil, ErrUnavailable
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Date.Equal(merged[j].Date) {
			return merged[i].Date.Before(merged[j].Date)
		}
		return merged[i].Kind < merged[j].Kind
	})
	return merged, nil
}
