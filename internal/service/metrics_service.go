package service

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// substitution workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	sourceFailures  *prometheus.CounterVec
	planStoreLookup *prometheus.CounterVec
	plansBuilt      *prometheus.CounterVec
	slotsPlanned    *prometheus.CounterVec
	overrides       prometheus.Counter
	settlements     *prometheus.CounterVec
	ledgerVersion   prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sourceDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sheet_source_duration_seconds",
		Help:    "Duration of schedule and ledger source calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	sourceFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheet_source_failures_total",
		Help: "Failed schedule and ledger source calls",
	}, []string{"operation"})

	planStoreLookup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_store_lookups_total",
		Help: "Plan store lookups by result",
	}, []string{"result"})

	plansBuilt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitution_plans_built_total",
		Help: "Substitution plans computed, by trigger",
	}, []string{"trigger"})

	slotsPlanned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitution_slots_planned_total",
		Help: "Vacated sessions planned, by outcome",
	}, []string{"outcome"})

	overrides := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "substitution_overrides_total",
		Help: "Manual substitute overrides applied to plans",
	})

	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitution_settlements_total",
		Help: "Confirmed plans settled into the ledger, by persistence result",
	}, []string{"persisted"})

	ledgerVersion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "substitution_ledger_version",
		Help: "Version of the in-memory substitution ledger",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sourceDuration, sourceFailures, planStoreLookup,
		plansBuilt, slotsPlanned, overrides, settlements, ledgerVersion, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sourceDuration:  sourceDuration,
		sourceFailures:  sourceFailures,
		planStoreLookup: planStoreLookup,
		plansBuilt:      plansBuilt,
		slotsPlanned:    slotsPlanned,
		overrides:       overrides,
		settlements:     settlements,
		ledgerVersion:   ledgerVersion,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSourceCall records a schedule or ledger source call.
func (m *MetricsService) ObserveSourceCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.sourceDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.sourceFailures.WithLabelValues(operation).Inc()
	}
}

// RecordPlanLookup counts plan store hits and misses.
func (m *MetricsService) RecordPlanLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.planStoreLookup.WithLabelValues(result).Inc()
}

// RecordPlan counts a computed plan and its slot outcomes.
func (m *MetricsService) RecordPlan(trigger string, filled, unfilled int) {
	if m == nil {
		return
	}
	m.plansBuilt.WithLabelValues(trigger).Inc()
	m.slotsPlanned.WithLabelValues("filled").Add(float64(filled))
	m.slotsPlanned.WithLabelValues("no_candidate").Add(float64(unfilled))
}

// RecordOverride counts a manual reassignment.
func (m *MetricsService) RecordOverride() {
	if m == nil {
		return
	}
	m.overrides.Inc()
}

// RecordSettlement counts a settlement and tracks the resulting ledger version.
func (m *MetricsService) RecordSettlement(persisted bool, version int) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(strconv.FormatBool(persisted)).Inc()
	m.ledgerVersion.Set(float64(version))
}

// SetLedgerVersion tracks the in-memory ledger version.
func (m *MetricsService) SetLedgerVersion(version int) {
	if m == nil {
		return
	}
	m.ledgerVersion.Set(float64(version))
}
