// Package metrics exposes Prometheus metrics about IP checks and record updates.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/database64128/dyns-go/tslog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dyns"

// Metrics holds the collectors updated by the reconciliation loop.
//
// All methods are safe to call on a nil *Metrics, in which case they do nothing.
type Metrics struct {
	registry      *prometheus.Registry
	ipChecks      *prometheus.CounterVec
	ipChanges     prometheus.Counter
	recordUpdates *prometheus.CounterVec
	currentIP     *prometheus.GaugeVec
}

// New creates a new [Metrics] registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ipChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_checks_total",
			Help:      "Number of public IP address lookups, by result.",
		}, []string{"result"}),
		ipChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_changes_total",
			Help:      "Number of detected public IP address changes.",
		}),
		recordUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_updates_total",
			Help:      "Number of DNS record update attempts, by zone, record and result.",
		}, []string{"zone", "record", "result"}),
		currentIP: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_ip_info",
			Help:      "Always 1, labeled with the address the records were last pointed at.",
		}, []string{"ip"}),
	}
	m.registry.MustRegister(m.ipChecks, m.ipChanges, m.recordUpdates, m.currentIP)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveIPCheck counts a public IP address lookup.
func (m *Metrics) ObserveIPCheck(err error) {
	if m == nil {
		return
	}
	m.ipChecks.WithLabelValues(result(err)).Inc()
}

// ObserveIPChange counts a detected address change.
func (m *Metrics) ObserveIPChange() {
	if m == nil {
		return
	}
	m.ipChanges.Inc()
}

// ObserveRecordUpdate counts a record update attempt.
func (m *Metrics) ObserveRecordUpdate(zone, record string, err error) {
	if m == nil {
		return
	}
	m.recordUpdates.WithLabelValues(zone, record, result(err)).Inc()
}

// SetCurrentIP records the address the records were last pointed at.
func (m *Metrics) SetCurrentIP(ip string) {
	if m == nil {
		return
	}
	m.currentIP.Reset()
	m.currentIP.WithLabelValues(ip).Set(1)
}

// Handler returns an HTTP handler serving the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve serves the metrics on addr at /metrics until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *tslog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down metrics server", tslog.Err(err))
		}
	}()

	logger.Info("Serving metrics", slog.String("listen", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
