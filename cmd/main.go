package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"brigade/internal/analytics"
	"brigade/internal/config"
	"brigade/internal/factors"
	"brigade/internal/ingest"
	"brigade/internal/insight"
	"brigade/internal/llm"
	"brigade/internal/models"
	"brigade/internal/monitoring"
	"brigade/internal/warehouse"
)

var (
	configFile   = flag.String("config", "configs/config.yaml", "Path to configuration file")
	dataDir      = flag.String("data", "data", "Directory of spreadsheets to ingest")
	recipesFile  = flag.String("recipes", "", "Optional recipes YAML file")
	calendarFile = flag.String("calendar", "", "Optional factor calendar YAML file")
	windowDays   = flag.Int("window", 28, "Analysis window length in days")
	horizonDays  = flag.Int("horizon", 7, "Forecast horizon in days")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()
	store := warehouse.NewStore()
	collector := monitoring.NewCollector()
	tracker := monitoring.NewTracker()
	pipeline := ingest.NewPipeline(cfg, store, collector, log)

	if err := ingestDirectory(ctx, pipeline, *dataDir, tracker, log); err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}
	if *recipesFile != "" {
		if err := loadRecipes(*recipesFile, pipeline, store); err != nil {
			log.Fatalf("Failed to load recipes: %v", err)
		}
	}
	calendar, err := loadCalendar(*calendarFile, store)
	if err != nil {
		log.Fatalf("Failed to load factor calendar: %v", err)
	}

	stats := store.Stats()
	collector.SetWarehouseFacts("sales", stats.Sales)
	collector.SetWarehouseFacts("snapshots", stats.Snapshots)
	collector.SetWarehouseFacts("invoices", stats.InvoiceLines)
	log.WithFields(logrus.Fields{
		"menu_items":  stats.Entities[models.KindMenuItem],
		"ingredients": stats.Entities[models.KindIngredient],
		"suppliers":   stats.Entities[models.KindSupplier],
		"sales":       stats.Sales,
		"snapshots":   stats.Snapshots,
		"invoices":    stats.InvoiceLines,
	}).Info("[warehouse.loaded]")

	snap := store.Snapshot()
	window, ok := analysisWindow(snap, *windowDays)
	if !ok {
		log.Fatal("No dated sales on record; nothing to analyze")
	}

	menuStart := time.Now()
	menuReport := analytics.ClassifyMenu(snap, window, cfg.Menu)
	collector.ObserveRun("menu", time.Since(menuStart))

	invStart := time.Now()
	inventoryReport := analytics.AssessInventory(snap, window, cfg.Inventory)
	collector.ObserveRun("inventory", time.Since(invStart))

	source := factorSource(cfg, calendar, log)
	forecaster := analytics.NewForecaster(cfg.Forecast, source, cfg.Location, log)

	forecastStart := time.Now()
	var forecasts []*analytics.ForecastResult
	total, err := forecaster.Forecast(ctx, snap, "", *horizonDays)
	if err != nil {
		log.WithError(err).Warn("[forecast.total_failed]")
	} else {
		forecasts = append(forecasts, total)
	}
	collector.ObserveRun("forecast", time.Since(forecastStart))

	generator := insight.NewGenerator(cfg.Insights, phraser(cfg, log), log)
	report := generator.Generate(menuReport, inventoryReport, forecasts)

	log.WithFields(logrus.Fields(tracker.Values())).Info("[run.complete]")
	printSummary(window, menuReport, inventoryReport, report)
}

// ingestDirectory feeds every spreadsheet in the directory through the
// pipeline. Rejected files are logged and skipped, not fatal.
func ingestDirectory(ctx context.Context, pipeline *ingest.Pipeline, dir string, tracker *monitoring.Tracker, log *logrus.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("cannot read data directory %s: %w", dir, err)
	}

	ingested := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv", ".xlsx", ".txt":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("[ingest.open_failed]")
			continue
		}
		report, err := pipeline.IngestFile(ctx, entry.Name(), f)
		f.Close()
		if err != nil {
			tracker.Add("files_rejected", 1)
			log.WithFields(logrus.Fields{
				"file":    entry.Name(),
				"reason":  report.RejectReason,
				"details": strings.Join(report.RejectDetails, "; "),
			}).Warn("[ingest.rejected]")
			continue
		}
		ingested++
		tracker.Add("files_ingested", 1)
		tracker.Add("facts_appended", report.FactsAppended)
		tracker.Add("facts_duplicated", report.FactsDuplicated)
		tracker.Add("data_gaps", len(report.Gaps))
		for _, gap := range report.Gaps {
			log.WithFields(logrus.Fields{
				"file":   entry.Name(),
				"row":    gap.Row,
				"reason": gap.Reason,
			}).Debug("[ingest.gap]")
		}
	}
	if ingested == 0 {
		return fmt.Errorf("no usable spreadsheets in %s", dir)
	}
	return nil
}

// recipesDocument is the on-disk recipe format: quantities per ingredient
// name, resolved through the reconciler on load.
type recipesDocument struct {
	Recipes []struct {
		Item        string             `yaml:"item"`
		Ingredients map[string]float64 `yaml:"ingredients"`
	} `yaml:"recipes"`
}

func loadRecipes(path string, pipeline *ingest.Pipeline, store *warehouse.Store) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc recipesDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	reconciler := pipeline.Reconciler()
	for _, r := range doc.Recipes {
		item, err := reconciler.Resolve(r.Item, models.KindMenuItem)
		if err != nil {
			return fmt.Errorf("recipe item %q: %w", r.Item, err)
		}
		recipe := models.Recipe{MenuItemID: item.ID, Ingredients: make(map[string]float64, len(r.Ingredients))}
		for name, qty := range r.Ingredients {
			ing, err := reconciler.Resolve(name, models.KindIngredient)
			if err != nil {
				return fmt.Errorf("recipe ingredient %q: %w", name, err)
			}
			recipe.Ingredients[ing.ID] += qty
		}
		if err := store.PutRecipe(recipe); err != nil {
			return err
		}
	}
	return nil
}

// calendarDocument is the on-disk factor calendar: known holidays, booked
// events, and weather advisories.
type calendarDocument struct {
	Factors []struct {
		Date       string  `yaml:"date"`
		Kind       string  `yaml:"kind"`
		Name       string  `yaml:"name"`
		Severity   float64 `yaml:"severity"`
		DistanceKm float64 `yaml:"distance_km"`
	} `yaml:"factors"`
}

// loadCalendar records calendar readings in the warehouse and returns them
// for the live factor source.
func loadCalendar(path string, store *warehouse.Store) ([]models.ExternalFactorReading, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc calendarDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var readings []models.ExternalFactorReading
	for _, f := range doc.Factors {
		date, err := time.Parse("2006-01-02", f.Date)
		if err != nil {
			return nil, fmt.Errorf("bad calendar date %q: %w", f.Date, err)
		}
		kind := models.FactorKind(f.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown factor kind %q", f.Kind)
		}
		reading := models.ExternalFactorReading{
			Date: date,
			Kind: kind,
			Payload: models.FactorPayload{
				Name:       f.Name,
				Severity:   f.Severity,
				DistanceKm: f.DistanceKm,
			},
		}
		store.PutFactor(reading)
		readings = append(readings, reading)
	}
	return readings, nil
}

func factorSource(cfg *config.Config, calendar []models.ExternalFactorReading, log *logrus.Logger) factors.Source {
	if len(calendar) == 0 {
		return nil
	}
	return factors.NewMultiSource(cfg.Forecast.FactorTimeout(), log,
		factors.NewStatic("calendar", calendar))
}

// phraser prefers a language model when credentials are present and falls
// back to deterministic templates otherwise.
func phraser(cfg *config.Config, log *logrus.Logger) insight.Phraser {
	model, err := llm.FromEnv()
	if err != nil {
		log.WithError(err).Debug("[insight.llm_unavailable]")
		return insight.TemplatePhraser{}
	}
	return insight.NewLLMPhraser(model, cfg.Forecast.FactorTimeout())
}

// analysisWindow anchors the window to the newest dated sale so historical
// exports analyze cleanly.
func analysisWindow(snap *warehouse.Snapshot, days int) (analytics.Window, bool) {
	var last time.Time
	wide := time.Date(1971, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, ev := range snap.SalesBetween("", wide, snap.Taken().AddDate(1, 0, 0)) {
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
	}
	if last.IsZero() {
		return analytics.Window{}, false
	}
	to := last.Truncate(24 * time.Hour).AddDate(0, 0, 1)
	return analytics.Window{From: to.AddDate(0, 0, -days), To: to}, true
}

func printSummary(window analytics.Window, menu *analytics.MenuReport, inventory *analytics.InventoryReport, report *insight.Report) {
	fmt.Printf("Analysis window %s to %s\n\n",
		window.From.Format("2006-01-02"), window.To.Format("2006-01-02"))

	fmt.Println("Menu engineering:")
	counts := menu.QuadrantCounts()
	quadrants := make([]string, 0, len(counts))
	for q := range counts {
		quadrants = append(quadrants, string(q))
	}
	sort.Strings(quadrants)
	for _, q := range quadrants {
		fmt.Printf("  %-11s %d\n", q, counts[analytics.Quadrant(q)])
	}
	for _, gap := range menu.Gaps {
		fmt.Printf("  gap: %s (%s)\n", gap.DisplayName, gap.Reason)
	}

	fmt.Println("\nInventory:")
	fmt.Printf("  %d at stockout risk, %d overstocked\n",
		len(inventory.StockoutRisks()), len(inventory.Overstocked()))

	fmt.Println("\nTop actions:")
	for i, ins := range report.Top {
		fmt.Printf("  %d. [%s] %s (priority %.2f, est. $%s)\n",
			i+1, ins.Category, ins.Phrase, ins.Priority, ins.DollarImpact.StringFixed(2))
	}
	if len(report.Top) == 0 {
		fmt.Println("  nothing actionable found")
	}
}
