package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and updates the ingestion and analytics metrics.
type Collector struct {
	registry *prometheus.Registry

	filesClassified *prometheus.CounterVec
	filesRejected   *prometheus.CounterVec
	entitiesCreated *prometheus.CounterVec
	factsAppended   *prometheus.CounterVec
	dataGaps        prometheus.Counter
	warehouseFacts  *prometheus.GaugeVec
	runDuration     *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filesClassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "files_classified_total",
				Help: "Uploaded files accepted by the schema classifier",
			},
			[]string{"kind"},
		),
		filesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "files_rejected_total",
				Help: "Uploaded files rejected as ambiguous or incompatible",
			},
			[]string{"reason"},
		),
		entitiesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entities_created_total",
				Help: "Canonical entities minted by reconciliation",
			},
			[]string{"kind"},
		),
		factsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "facts_appended_total",
				Help: "Facts appended to the warehouse",
			},
			[]string{"kind"},
		),
		dataGaps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "data_gaps_total",
				Help: "Per-entity data quality gaps reported by analytics",
			},
		),
		warehouseFacts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "warehouse_facts",
				Help: "Current warehouse fact counts",
			},
			[]string{"kind"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_run_seconds",
				Help:    "Duration of analytics passes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"module"},
		),
	}

	c.registry.MustRegister(
		c.filesClassified,
		c.filesRejected,
		c.entitiesCreated,
		c.factsAppended,
		c.dataGaps,
		c.warehouseFacts,
		c.runDuration,
	)
	return c
}

// Registry exposes the underlying registry for scraping or inspection.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordClassification counts an accepted file of the given kind.
func (c *Collector) RecordClassification(kind string) {
	c.filesClassified.WithLabelValues(kind).Inc()
}

// RecordRejection counts a rejected file by reject reason.
func (c *Collector) RecordRejection(reason string) {
	c.filesRejected.WithLabelValues(reason).Inc()
}

// RecordEntityCreated counts a newly minted canonical entity.
func (c *Collector) RecordEntityCreated(kind string) {
	c.entitiesCreated.WithLabelValues(kind).Inc()
}

// RecordFactAppended counts a fact accepted into the warehouse.
func (c *Collector) RecordFactAppended(kind string) {
	c.factsAppended.WithLabelValues(kind).Inc()
}

// RecordDataGaps counts reported data quality gaps.
func (c *Collector) RecordDataGaps(n int) {
	c.dataGaps.Add(float64(n))
}

// SetWarehouseFacts publishes a current fact count.
func (c *Collector) SetWarehouseFacts(kind string, n int) {
	c.warehouseFacts.WithLabelValues(kind).Set(float64(n))
}

// ObserveRun records the duration of one analytics pass.
func (c *Collector) ObserveRun(module string, d time.Duration) {
	c.runDuration.WithLabelValues(module).Observe(d.Seconds())
}
