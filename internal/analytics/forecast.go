package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"brigade/internal/config"
	"brigade/internal/factors"
	"brigade/internal/models"
	"brigade/internal/warehouse"
)

const (
	// Learned factor coefficients are clamped to keep a sparse history from
	// producing absurd adjustments.
	minFactorCoefficient = 0.25
	maxFactorCoefficient = 4.0

	fullConfidence    = 0.8
	reducedConfidence = 0.5
)

// FactorEffect is one ranked contributor to a forecast adjustment.
type FactorEffect struct {
	Kind        models.FactorKind
	Name        string
	Coefficient float64
	// Magnitude is the absolute deviation of the coefficient from 1.
	Magnitude float64
}

// ForecastEntry is the prediction for one future date.
type ForecastEntry struct {
	Date              time.Time
	PredictedRevenue  decimal.Decimal
	PredictedGuests   float64
	Factors           []FactorEffect
	ReducedConfidence bool
	Confidence        float64
}

// ForecastResult is an ordered horizon of daily predictions.
type ForecastResult struct {
	// Target is the menu item id forecast, or empty for total revenue.
	Target      string
	DisplayName string
	Entries     []ForecastEntry
	// DataAsOf is the date of the newest sale feeding the baseline.
	DataAsOf time.Time
}

// Forecaster produces demand forecasts from warehouse history and external
// factor readings.
type Forecaster struct {
	cfg      config.ForecastConfig
	source   factors.Source
	location string
	log      *logrus.Logger
}

// NewForecaster wires a forecaster. The source may be nil, in which case
// only factor readings already in the warehouse are used and forecasts are
// flagged reduced confidence.
func NewForecaster(cfg config.ForecastConfig, source factors.Source, location string, log *logrus.Logger) *Forecaster {
	return &Forecaster{cfg: cfg, source: source, location: location, log: log}
}

// Forecast predicts daily revenue and guest count for horizonDays starting
// the day after the newest sale on record. Factor coefficients are learned
// from history at call time; an unavailable factor source degrades the
// forecast to the unadjusted baseline instead of failing it.
func (f *Forecaster) Forecast(ctx context.Context, snap *warehouse.Snapshot, target string, horizonDays int) (*ForecastResult, error) {
	if horizonDays <= 0 {
		return nil, fmt.Errorf("forecast horizon must be positive, got %d", horizonDays)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	history := newSalesHistory(snap, target)
	if history.empty() {
		return nil, fmt.Errorf("no sales history for forecast target")
	}

	result := &ForecastResult{Target: target, DataAsOf: history.lastDay}
	if target != "" {
		result.DisplayName = snap.DisplayName(target)
	}

	start := history.lastDay.AddDate(0, 0, 1)
	end := start.AddDate(0, 0, horizonDays-1)
	coefficients := f.learnCoefficients(snap, history)

	future, sourceOK := f.futureFactors(ctx, snap, start, end)

	avgCheck := history.averageCheck()
	for i := 0; i < horizonDays; i++ {
		date := start.AddDate(0, 0, i)
		baseline := history.weekdayBaseline(date.Weekday(), f.cfg.LookbackWeeks)

		entry := ForecastEntry{Date: date, Confidence: fullConfidence}
		adjusted := baseline
		for _, reading := range future[dayKey(date)] {
			coef, known := coefficients[reading.Kind]
			if !known {
				continue
			}
			adjusted *= coef
			entry.Factors = append(entry.Factors, FactorEffect{
				Kind:        reading.Kind,
				Name:        reading.Payload.Name,
				Coefficient: coef,
				Magnitude:   abs(coef - 1),
			})
		}
		sort.SliceStable(entry.Factors, func(a, b int) bool {
			return entry.Factors[a].Magnitude > entry.Factors[b].Magnitude
		})

		if !sourceOK && len(future[dayKey(date)]) == 0 {
			entry.ReducedConfidence = true
			entry.Confidence = reducedConfidence
		}

		entry.PredictedRevenue = decimal.NewFromFloat(adjusted).Round(2)
		if avgCheck > 0 {
			entry.PredictedGuests = adjusted / avgCheck
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

// futureFactors collects factor readings covering the horizon, merging the
// warehouse's stored readings with a live source query. The boolean reports
// whether live data was available.
func (f *Forecaster) futureFactors(ctx context.Context, snap *warehouse.Snapshot, start, end time.Time) (map[string][]models.ExternalFactorReading, bool) {
	byDay := make(map[string][]models.ExternalFactorReading)
	seen := make(map[string]struct{})
	add := func(readings []models.ExternalFactorReading) {
		for _, r := range readings {
			key := models.FactorKey(r.Date, r.Kind)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			byDay[dayKey(r.Date)] = append(byDay[dayKey(r.Date)], r)
		}
	}

	add(snap.FactorsBetween(start, end))

	if f.source == nil {
		return byDay, false
	}
	sctx, cancel := context.WithTimeout(ctx, f.cfg.FactorTimeout())
	defer cancel()
	live, err := f.source.GetFactors(sctx, start, end, f.location)
	if err != nil {
		f.log.WithFields(logrus.Fields{
			"source": f.source.Name(),
			"error":  err.Error(),
		}).Warn("[forecast.factors_unavailable]")
		return byDay, false
	}
	add(live)
	return byDay, true
}

// learnCoefficients estimates one multiplicative coefficient per factor kind
// from the historical ratio of factored-day revenue to the same-weekday
// baseline. Kinds with no usable observations stay unknown.
func (f *Forecaster) learnCoefficients(snap *warehouse.Snapshot, history *salesHistory) map[models.FactorKind]float64 {
	sums := make(map[models.FactorKind]float64)
	counts := make(map[models.FactorKind]int)

	for _, reading := range snap.FactorsBetween(history.firstDay, history.lastDay) {
		baseline := history.weekdayBaselineExcluding(reading.Date, f.cfg.LookbackWeeks)
		if baseline <= 0 {
			continue
		}
		revenue := history.revenueOn(reading.Date)
		sums[reading.Kind] += revenue / baseline
		counts[reading.Kind]++
	}

	coefficients := make(map[models.FactorKind]float64, len(sums))
	for kind, sum := range sums {
		coef := sum / float64(counts[kind])
		if coef < minFactorCoefficient {
			coef = minFactorCoefficient
		}
		if coef > maxFactorCoefficient {
			coef = maxFactorCoefficient
		}
		coefficients[kind] = coef
	}
	return coefficients
}

// salesHistory indexes daily revenue for baseline computation.
type salesHistory struct {
	daily    map[string]float64
	firstDay time.Time
	lastDay  time.Time

	totalRevenue float64
	eventCount   int
}

func newSalesHistory(snap *warehouse.Snapshot, target string) *salesHistory {
	h := &salesHistory{daily: make(map[string]float64)}
	wide := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, ev := range snap.SalesBetween(target, wide, snap.Taken().AddDate(1, 0, 0)) {
		day := ev.Timestamp.Truncate(24 * time.Hour)
		if day.Year() < 1971 {
			// Facts ingested without a date column carry the zero time and
			// cannot anchor a daily baseline.
			continue
		}
		revenue, _ := ev.Total.Float64()
		h.daily[dayKey(day)] += revenue
		h.totalRevenue += revenue
		h.eventCount++
		if h.firstDay.IsZero() || day.Before(h.firstDay) {
			h.firstDay = day
		}
		if day.After(h.lastDay) {
			h.lastDay = day
		}
	}
	return h
}

func (h *salesHistory) empty() bool {
	return len(h.daily) == 0
}

func (h *salesHistory) revenueOn(date time.Time) float64 {
	return h.daily[dayKey(date)]
}

// averageCheck is revenue per sale event across the full history.
func (h *salesHistory) averageCheck() float64 {
	if h.eventCount == 0 {
		return 0
	}
	return h.totalRevenue / float64(h.eventCount)
}

// weekdayBaseline is the mean revenue of the trailing same-weekday days that
// fall inside the observed history.
func (h *salesHistory) weekdayBaseline(weekday time.Weekday, lookbackWeeks int) float64 {
	return h.weekdayMean(weekday, lookbackWeeks, time.Time{})
}

// weekdayBaselineExcluding leaves one day out, used when measuring that
// day's own deviation from baseline.
func (h *salesHistory) weekdayBaselineExcluding(exclude time.Time, lookbackWeeks int) float64 {
	return h.weekdayMean(exclude.Weekday(), lookbackWeeks, exclude)
}

func (h *salesHistory) weekdayMean(weekday time.Weekday, lookbackWeeks int, exclude time.Time) float64 {
	sum, n := 0.0, 0
	day := h.lastDay
	for !day.Before(h.firstDay) && n < lookbackWeeks {
		if day.Weekday() == weekday && dayKey(day) != dayKey(exclude) {
			sum += h.daily[dayKey(day)]
			n++
		}
		day = day.AddDate(0, 0, -1)
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
