package insight

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"brigade/internal/analytics"
	"brigade/internal/config"
)

// Category labels the analytics pass an insight came from.
type Category string

const (
	CategoryMenu      Category = "menu"
	CategoryStockout  Category = "stockout"
	CategoryOverstock Category = "overstock"
	CategoryForecast  Category = "forecast"
)

// Annual carrying cost rate applied to capital tied up in overstock, and the
// share of peak-day revenue recoverable through staffing adjustments.
const (
	carryingRate       = 0.25
	staffingUpliftRate = 0.05
	peakThreshold      = 1.15
)

// Insight is one ranked, actionable finding. Selection, ranking, and dollar
// amounts are deterministic for the same inputs; only Phrase may come from
// an external collaborator.
type Insight struct {
	Category      Category
	Subject       string
	SubjectID     string
	Justification string
	DollarImpact  decimal.Decimal
	Confidence    float64
	Priority      float64
	DataAsOf      time.Time
	Phrase        string
}

// Report carries the surfaced top actions and the full retained list.
type Report struct {
	Top []Insight
	All []Insight
}

// Generator turns analytics outputs into ranked insights.
type Generator struct {
	cfg     config.InsightConfig
	phraser Phraser
	log     *logrus.Logger
}

// NewGenerator wires a generator. A nil phraser falls back to templates.
func NewGenerator(cfg config.InsightConfig, phraser Phraser, log *logrus.Logger) *Generator {
	if phraser == nil {
		phraser = TemplatePhraser{}
	}
	return &Generator{cfg: cfg, phraser: phraser, log: log}
}

// Generate builds, ranks, and phrases insights from the three analytics
// passes. Any input may be nil.
func (g *Generator) Generate(menu *analytics.MenuReport, inventory *analytics.InventoryReport, forecasts []*analytics.ForecastResult) *Report {
	var candidates []Insight
	candidates = append(candidates, menuInsights(menu)...)
	candidates = append(candidates, inventoryInsights(inventory, menu)...)
	candidates = append(candidates, forecastInsights(forecasts)...)

	rank(candidates)
	g.phrase(candidates)

	report := &Report{All: candidates}
	n := g.cfg.TopN
	if n > len(candidates) {
		n = len(candidates)
	}
	report.Top = candidates[:n]
	return report
}

// rank assigns priority as impact normalized against the largest candidate,
// weighted by confidence. Ties break on data recency, then category, then
// subject id so equal inputs always order identically.
func rank(candidates []Insight) {
	var maxImpact decimal.Decimal
	for _, c := range candidates {
		if c.DollarImpact.Cmp(maxImpact) > 0 {
			maxImpact = c.DollarImpact
		}
	}
	for i := range candidates {
		normalized := 0.0
		if maxImpact.IsPositive() {
			n, _ := candidates[i].DollarImpact.Div(maxImpact).Float64()
			normalized = n
		}
		candidates[i].Priority = normalized * candidates[i].Confidence
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.DataAsOf.Equal(b.DataAsOf) {
			return a.DataAsOf.After(b.DataAsOf)
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.SubjectID < b.SubjectID
	})
}

func (g *Generator) phrase(candidates []Insight) {
	for i := range candidates {
		text, err := g.phraser.Phrase(candidates[i])
		if err != nil {
			g.log.WithFields(logrus.Fields{
				"category": candidates[i].Category,
				"subject":  candidates[i].Subject,
				"error":    err.Error(),
			}).Warn("[insight.phrasing_failed]")
			text, _ = TemplatePhraser{}.Phrase(candidates[i])
		}
		candidates[i].Phrase = text
	}
}

// menuInsights estimates the margin uplift available from quadrant moves:
// lifting a dog's margin to the median, or lifting a puzzle's volume to the
// median units sold.
func menuInsights(menu *analytics.MenuReport) []Insight {
	if menu == nil || len(menu.Items) == 0 {
		return nil
	}
	medianUnits := medianUnitsSold(menu.Items)

	var out []Insight
	for _, item := range menu.Items {
		switch item.Quadrant {
		case analytics.QuadrantDog:
			uplift := menu.MedianMargin.Sub(item.Margin).Mul(decimal.NewFromFloat(item.UnitsSold))
			if !uplift.IsPositive() {
				continue
			}
			out = append(out, Insight{
				Category:  CategoryMenu,
				Subject:   item.DisplayName,
				SubjectID: item.MenuItemID,
				Justification: fmt.Sprintf(
					"margin %s is %s below the menu median across %.0f units sold",
					item.Margin.StringFixed(2), menu.MedianMargin.Sub(item.Margin).StringFixed(2), item.UnitsSold),
				DollarImpact: uplift.Round(2),
				Confidence:   0.9,
				DataAsOf:     menu.Window.To,
			})
		case analytics.QuadrantPuzzle:
			extraUnits := medianUnits - item.UnitsSold
			if extraUnits <= 0 {
				continue
			}
			uplift := item.Margin.Mul(decimal.NewFromFloat(extraUnits))
			if !uplift.IsPositive() {
				continue
			}
			out = append(out, Insight{
				Category:  CategoryMenu,
				Subject:   item.DisplayName,
				SubjectID: item.MenuItemID,
				Justification: fmt.Sprintf(
					"high margin %s but only %.0f units sold against a median of %.0f",
					item.Margin.StringFixed(2), item.UnitsSold, medianUnits),
				DollarImpact: uplift.Round(2),
				Confidence:   0.9,
				DataAsOf:     menu.Window.To,
			})
		}
	}
	return out
}

// inventoryInsights prices stockout risk as margin lost over the resupply
// lead time, and overstock as carrying cost on tied-up capital.
func inventoryInsights(inventory *analytics.InventoryReport, menu *analytics.MenuReport) []Insight {
	if inventory == nil {
		return nil
	}
	marginPerUnit := averageMarginPerUnit(menu)

	var out []Insight
	for _, a := range inventory.Ingredients {
		if a.StockoutRisk {
			impact := decimal.NewFromFloat(a.Velocity * a.LeadTimeDays).Mul(marginPerUnit)
			out = append(out, Insight{
				Category:  CategoryStockout,
				Subject:   a.DisplayName,
				SubjectID: a.IngredientID,
				Justification: fmt.Sprintf(
					"%.1f days of supply against a %.0f day lead time at %.1f units/day",
					a.DaysOfSupply, a.LeadTimeDays, a.Velocity),
				DollarImpact: impact.Round(2),
				Confidence:   0.8,
				DataAsOf:     inventory.AsOf,
			})
		}
		if a.Overstock {
			capital := decimal.NewFromFloat(a.CurrentStock).Mul(a.UnitCost)
			impact := capital.Mul(decimal.NewFromFloat(carryingRate * a.OverstockSeverity))
			out = append(out, Insight{
				Category:  CategoryOverstock,
				Subject:   a.DisplayName,
				SubjectID: a.IngredientID,
				Justification: fmt.Sprintf(
					"%.0f units on hand with no depletion inside the overstock threshold, severity %.2f",
					a.CurrentStock, a.OverstockSeverity),
				DollarImpact: impact.Round(2),
				Confidence:   0.8,
				DataAsOf:     inventory.AsOf,
			})
		}
	}
	return out
}

// forecastInsights flags horizon days whose predicted revenue stands well
// above the horizon mean, valuing them at the staffing-optimization share.
func forecastInsights(forecasts []*analytics.ForecastResult) []Insight {
	var out []Insight
	for _, f := range forecasts {
		if f == nil || len(f.Entries) == 0 {
			continue
		}
		mean := horizonMean(f.Entries)
		if !mean.IsPositive() {
			continue
		}
		threshold := mean.Mul(decimal.NewFromFloat(peakThreshold))
		for _, entry := range f.Entries {
			if entry.PredictedRevenue.Cmp(threshold) <= 0 {
				continue
			}
			subject := f.DisplayName
			if subject == "" {
				subject = "total revenue"
			}
			out = append(out, Insight{
				Category:  CategoryForecast,
				Subject:   subject,
				SubjectID: f.Target + "|" + entry.Date.Format("2006-01-02"),
				Justification: fmt.Sprintf(
					"predicted revenue %s on %s vs horizon mean %s",
					entry.PredictedRevenue.StringFixed(2), entry.Date.Format("2006-01-02"), mean.StringFixed(2)),
				DollarImpact: entry.PredictedRevenue.Mul(decimal.NewFromFloat(staffingUpliftRate)).Round(2),
				Confidence:   entry.Confidence,
				DataAsOf:     f.DataAsOf,
			})
		}
	}
	return out
}

func medianUnitsSold(items []analytics.MenuItemResult) float64 {
	units := make([]float64, len(items))
	for i, it := range items {
		units[i] = it.UnitsSold
	}
	sort.Float64s(units)
	n := len(units)
	if n%2 == 1 {
		return units[n/2]
	}
	return (units[n/2-1] + units[n/2]) / 2
}

// averageMarginPerUnit proxies per-unit profit when pricing ingredient-level
// risk. Falls back to 1 when no menu economics are available so relative
// ranking still works.
func averageMarginPerUnit(menu *analytics.MenuReport) decimal.Decimal {
	if menu == nil || len(menu.Items) == 0 {
		return decimal.NewFromInt(1)
	}
	totalMargin := decimal.Zero
	totalUnits := 0.0
	for _, it := range menu.Items {
		totalMargin = totalMargin.Add(it.Margin.Mul(decimal.NewFromFloat(it.UnitsSold)))
		totalUnits += it.UnitsSold
	}
	if totalUnits == 0 {
		return decimal.NewFromInt(1)
	}
	return totalMargin.Div(decimal.NewFromFloat(totalUnits))
}

func horizonMean(entries []analytics.ForecastEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.PredictedRevenue)
	}
	return sum.Div(decimal.NewFromInt(int64(len(entries))))
}
