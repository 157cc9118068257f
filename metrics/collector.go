// Package metrics exposes fetch and score counters in Prometheus format.
//
// The collector owns a private registry rather than the global default so
// tests can build as many as they like and /metrics only shows this process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scoreboard/aggregate"
	"scoreboard/poller"
)

const namespace = "scoreboard"

// Collector records poller outcomes and mirrors aggregate totals as gauges.
// It implements poller.Observer.
type Collector struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	responseBytes *prometheus.CounterVec
	recordsParsed prometheus.Counter
	contactsAdded prometheus.Counter
	duplicates    prometheus.Counter
	unchanged     prometheus.Counter
	recorderDrops prometheus.Counter
}

// NewCollector registers all metrics. agg may be nil, in which case the score
// gauges are omitted.
func NewCollector(agg *aggregate.Aggregator) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.fetches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetches_total",
		Help:      "N3FJP LIST requests issued, by kind (seed, poll)",
	}, []string{"kind"})

	c.fetchFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_failures_total",
		Help:      "N3FJP LIST requests that failed, by kind",
	}, []string{"kind"})

	c.fetchDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Wall time of one LIST exchange including the idle wait",
		Buckets:   []float64{0.25, 0.5, 0.75, 1, 1.5, 2, 4, 8, 15, 30, 60},
	}, []string{"kind"})

	c.responseBytes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_bytes_total",
		Help:      "Raw bytes received from N3FJP, by kind",
	}, []string{"kind"})

	c.recordsParsed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_parsed_total",
		Help:      "Contact records parsed from LIST responses",
	})

	c.contactsAdded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contacts_added_total",
		Help:      "Contacts merged into the aggregate for the first time",
	})

	c.duplicates = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contacts_duplicate_total",
		Help:      "Parsed contacts skipped because their primary key was already seen",
	})

	c.unchanged = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "responses_unchanged_total",
		Help:      "Responses identical to the previous one of the same kind",
	})

	c.recorderDrops = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recorder_dropped_total",
		Help:      "Contacts not journaled because the recorder queue was full",
	})

	if agg != nil {
		gauge := func(name, help string, read func(aggregate.Counts) int) {
			factory.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			}, func() float64 { return float64(read(agg.Totals())) })
		}
		gauge("contacts", "Unique contacts in the aggregate", func(c aggregate.Counts) int { return c.Contacts })
		gauge("qso_points", "QSO points before multipliers and bonuses", func(c aggregate.Counts) int { return c.Points })
		gauge("sections_worked", "Distinct ARRL/RAC sections worked", func(c aggregate.Counts) int { return c.Sections })
		gauge("stations", "Operating positions seen", func(c aggregate.Counts) int { return c.Stations })
		gauge("active_hours", "Distinct clock hours with at least one timed contact", func(c aggregate.Counts) int { return c.Hours })
	}
	return c
}

// ObserveFetch records one poller outcome.
func (c *Collector) ObserveFetch(o poller.FetchOutcome) {
	c.fetches.WithLabelValues(o.Kind).Inc()
	c.fetchDuration.WithLabelValues(o.Kind).Observe(o.Elapsed.Seconds())
	if o.Err != nil {
		c.fetchFailures.WithLabelValues(o.Kind).Inc()
		return
	}
	c.responseBytes.WithLabelValues(o.Kind).Add(float64(o.RawBytes))
	c.recordsParsed.Add(float64(o.Records))
	c.contactsAdded.Add(float64(o.Added))
	c.duplicates.Add(float64(o.Duplicates))
	if o.Unchanged {
		c.unchanged.Inc()
	}
}

// RecorderDropped counts contacts the recorder could not queue.
func (c *Collector) RecorderDropped(n int) {
	if n > 0 {
		c.recorderDrops.Add(float64(n))
	}
}

// Registry exposes the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
