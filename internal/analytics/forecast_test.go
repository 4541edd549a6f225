package analytics

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brigade/internal/config"
	"brigade/internal/factors"
	"brigade/internal/models"
	"brigade/internal/warehouse"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type downSource struct{}

func (downSource) Name() string { return "down" }

func (downSource) GetFactors(context.Context, time.Time, time.Time, string) ([]models.ExternalFactorReading, error) {
	return nil, errors.New("timeout")
}

// seedWeeks writes one sale per day for the given number of weeks ending
// 2025-07-07, with weekday-dependent revenue so baselines are predictable.
func seedWeeks(t *testing.T, store *warehouse.Store, itemID string, weeks int, revenueFor func(time.Time) float64) {
	t.Helper()
	last := day("2025-07-07")
	for i := 0; i < weeks*7; i++ {
		d := last.AddDate(0, 0, -i)
		sellOn(t, store, itemID, d, 1, revenueFor(d))
	}
}

func TestForecastUsesWeekdayBaseline(t *testing.T) {
	store := warehouse.NewStore()
	itemID := mint(t, store, models.KindMenuItem, "Margherita Pizza")
	seedWeeks(t, store, itemID, 4, func(d time.Time) float64 {
		if d.Weekday() == time.Saturday {
			return 300
		}
		return 100
	})

	f := NewForecaster(config.Default().Forecast, nil, "downtown", quietLogger())
	result, err := f.Forecast(context.Background(), store.Snapshot(), itemID, 7)
	require.NoError(t, err)
	require.Len(t, result.Entries, 7)
	assert.Equal(t, day("2025-07-07"), result.DataAsOf)

	for _, entry := range result.Entries {
		want := 100.0
		if entry.Date.Weekday() == time.Saturday {
			want = 300
		}
		got, _ := entry.PredictedRevenue.Float64()
		assert.InDelta(t, want, got, 0.01, "date %s", entry.Date.Format("2006-01-02"))
	}
}

func TestForecastDegradesWithoutFactorSource(t *testing.T) {
	store := warehouse.NewStore()
	itemID := mint(t, store, models.KindMenuItem, "Margherita Pizza")
	seedWeeks(t, store, itemID, 4, func(time.Time) float64 { return 100 })

	f := NewForecaster(config.Default().Forecast, downSource{}, "downtown", quietLogger())
	result, err := f.Forecast(context.Background(), store.Snapshot(), itemID, 3)
	require.NoError(t, err, "an unavailable factor source must never fail the forecast")

	for _, entry := range result.Entries {
		assert.True(t, entry.ReducedConfidence)
		assert.Equal(t, reducedConfidence, entry.Confidence)
		got, _ := entry.PredictedRevenue.Float64()
		assert.InDelta(t, 100, got, 0.01)
	}
}

func TestForecastLearnsFactorCoefficient(t *testing.T) {
	store := warehouse.NewStore()
	itemID := mint(t, store, models.KindMenuItem, "Margherita Pizza")

	// Flat 100/day, except past holidays doubled.
	holidays := map[string]bool{"2025-06-16": true, "2025-06-23": true}
	seedWeeks(t, store, itemID, 6, func(d time.Time) float64 {
		if holidays[d.Format("2006-01-02")] {
			return 200
		}
		return 100
	})
	for ds := range holidays {
		store.PutFactor(models.ExternalFactorReading{
			Date:    day(ds),
			Kind:    models.FactorHoliday,
			Payload: models.FactorPayload{Name: "Closed Street Market"},
		})
	}

	upcoming := factors.NewStatic("calendar", []models.ExternalFactorReading{
		{Date: day("2025-07-09"), Kind: models.FactorHoliday, Payload: models.FactorPayload{Name: "Civic Holiday"}},
	})

	f := NewForecaster(config.Default().Forecast, upcoming, "downtown", quietLogger())
	result, err := f.Forecast(context.Background(), store.Snapshot(), itemID, 3)
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)

	plain := result.Entries[0]
	assert.Empty(t, plain.Factors)
	assert.False(t, plain.ReducedConfidence)

	holiday := result.Entries[1]
	require.Len(t, holiday.Factors, 1)
	assert.Equal(t, models.FactorHoliday, holiday.Factors[0].Kind)
	assert.Greater(t, holiday.Factors[0].Coefficient, 1.5)

	plainRevenue, _ := plain.PredictedRevenue.Float64()
	holidayRevenue, _ := holiday.PredictedRevenue.Float64()
	assert.Greater(t, holidayRevenue, plainRevenue*1.5)
}

func TestForecastGuestCountFromAverageCheck(t *testing.T) {
	store := warehouse.NewStore()
	itemID := mint(t, store, models.KindMenuItem, "Margherita Pizza")
	seedWeeks(t, store, itemID, 2, func(time.Time) float64 { return 50 })

	f := NewForecaster(config.Default().Forecast, nil, "downtown", quietLogger())
	result, err := f.Forecast(context.Background(), store.Snapshot(), itemID, 1)
	require.NoError(t, err)

	// Average check is 50, predicted revenue 50: one guest.
	assert.InDelta(t, 1, result.Entries[0].PredictedGuests, 0.01)
}

func TestForecastRejectsNonPositiveHorizon(t *testing.T) {
	f := NewForecaster(config.Default().Forecast, nil, "downtown", quietLogger())
	_, err := f.Forecast(context.Background(), warehouse.NewStore().Snapshot(), "", 0)
	assert.Error(t, err)
}
