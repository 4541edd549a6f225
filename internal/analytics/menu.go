package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"brigade/internal/config"
	"brigade/internal/warehouse"
)

// Quadrant represents a menu engineering class.
type Quadrant string

const (
	QuadrantStar      Quadrant = "star"
	QuadrantPlowHorse Quadrant = "plow_horse"
	QuadrantPuzzle    Quadrant = "puzzle"
	QuadrantDog       Quadrant = "dog"
)

// MenuItemResult is one classified menu item with its drill-down numbers.
type MenuItemResult struct {
	MenuItemID  string
	DisplayName string
	Quadrant    Quadrant

	UnitsSold  float64
	Revenue    decimal.Decimal
	UnitPrice  decimal.Decimal
	UnitCost   decimal.Decimal
	Margin     decimal.Decimal
	Percentile float64

	HighProfit     bool
	HighPopularity bool
}

// MenuReport is the outcome of one menu engineering pass over a window.
type MenuReport struct {
	Window       Window
	MedianMargin decimal.Decimal
	Items        []MenuItemResult
	Gaps         []DataGap
}

// ClassifyMenu classifies every menu item with at least one sale in the
// window into a quadrant. High Profit means margin at or above the median
// margin of classified items; High Popularity means popularity percentile at
// or above the configured cut. Items whose cost cannot be derived are
// excluded and reported as gaps.
func ClassifyMenu(snap *warehouse.Snapshot, window Window, cfg config.MenuConfig) *MenuReport {
	report := &MenuReport{Window: window}

	type stats struct {
		units   float64
		revenue decimal.Decimal
	}
	sold := make(map[string]*stats)
	for _, ev := range snap.SalesBetween("", window.From, window.To) {
		st, ok := sold[ev.MenuItemID]
		if !ok {
			st = &stats{}
			sold[ev.MenuItemID] = st
		}
		st.units += ev.Quantity
		st.revenue = st.revenue.Add(ev.Total)
	}

	ids := make([]string, 0, len(sold))
	for id := range sold {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var items []MenuItemResult
	for _, id := range ids {
		st := sold[id]
		name := snap.DisplayName(id)
		cost, gap := unitCost(snap, id)
		if gap != "" {
			report.Gaps = append(report.Gaps, DataGap{EntityID: id, DisplayName: name, Reason: gap})
			continue
		}
		price := st.revenue.Div(decimal.NewFromFloat(st.units))
		items = append(items, MenuItemResult{
			MenuItemID:  id,
			DisplayName: name,
			UnitsSold:   st.units,
			Revenue:     st.revenue,
			UnitPrice:   price,
			UnitCost:    cost,
			Margin:      price.Sub(cost),
		})
	}
	if len(items) == 0 {
		report.Items = items
		return report
	}

	report.MedianMargin = medianMargin(items)
	for i := range items {
		items[i].Percentile = popularityPercentile(items, items[i].UnitsSold)
		items[i].HighProfit = items[i].Margin.Cmp(report.MedianMargin) >= 0
		items[i].HighPopularity = items[i].Percentile >= cfg.PopularityCut
		items[i].Quadrant = quadrantOf(items[i].HighProfit, items[i].HighPopularity)
	}
	report.Items = items
	return report
}

// unitCost derives a menu item's unit cost from its recipe and the most
// recent invoiced cost of each ingredient. A missing recipe or an ingredient
// with no invoice history makes the cost unknown.
func unitCost(snap *warehouse.Snapshot, menuItemID string) (decimal.Decimal, string) {
	recipe, ok := snap.RecipeFor(menuItemID)
	if !ok {
		return decimal.Decimal{}, "no recipe on file"
	}

	ingredientIDs := make([]string, 0, len(recipe.Ingredients))
	for id := range recipe.Ingredients {
		ingredientIDs = append(ingredientIDs, id)
	}
	sort.Strings(ingredientIDs)

	total := decimal.Zero
	for _, ingredientID := range ingredientIDs {
		cost, _, ok := snap.LatestUnitCost(ingredientID)
		if !ok {
			return decimal.Decimal{}, "no invoice history for ingredient " + snap.DisplayName(ingredientID)
		}
		qty := decimal.NewFromFloat(recipe.Ingredients[ingredientID])
		total = total.Add(cost.Mul(qty))
	}
	return total, ""
}

// medianMargin returns the median of item margins. Even-sized sets take the
// mean of the two middle values.
func medianMargin(items []MenuItemResult) decimal.Decimal {
	margins := make([]decimal.Decimal, len(items))
	for i, it := range items {
		margins[i] = it.Margin
	}
	sort.Slice(margins, func(i, j int) bool { return margins[i].Cmp(margins[j]) < 0 })

	n := len(margins)
	if n%2 == 1 {
		return margins[n/2]
	}
	return margins[n/2-1].Add(margins[n/2]).Div(decimal.NewFromInt(2))
}

// popularityPercentile ranks units sold as the fraction of classified items
// selling at or below it.
func popularityPercentile(items []MenuItemResult, units float64) float64 {
	atOrBelow := 0
	for _, it := range items {
		if it.UnitsSold <= units {
			atOrBelow++
		}
	}
	return float64(atOrBelow) / float64(len(items))
}

func quadrantOf(highProfit, highPopularity bool) Quadrant {
	switch {
	case highProfit && highPopularity:
		return QuadrantStar
	case !highProfit && highPopularity:
		return QuadrantPlowHorse
	case highProfit && !highPopularity:
		return QuadrantPuzzle
	default:
		return QuadrantDog
	}
}

// QuadrantCounts aggregates the report for summaries and logging.
func (r *MenuReport) QuadrantCounts() map[Quadrant]int {
	counts := make(map[Quadrant]int)
	for _, it := range r.Items {
		counts[it.Quadrant]++
	}
	return counts
}
