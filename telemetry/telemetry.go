// Package telemetry wires go-metrics into a Prometheus sink and serves it
// over HTTP, the same sink/serve split the teacher uses for every
// component that exposes metrics.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/armon/go-metrics"
	prometheusMetrics "github.com/armon/go-metrics/prometheus"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the metrics server's listen address.
type Config struct {
	PrometheusAddr string `json:"prometheusAddr"` // empty means disabled, otherwise e.g. "0.0.0.0:5001"
}

// Telemetry runs the relayer's Prometheus metrics endpoint.
type Telemetry struct {
	prometheusServer *http.Server
	config           Config
	logger           hclog.Logger
}

func New(config Config, logger hclog.Logger) *Telemetry {
	return &Telemetry{config: config, logger: logger}
}

func (t *Telemetry) Start() error {
	if t.config.PrometheusAddr == "" {
		return nil
	}

	if err := setupPrometheus(); err != nil {
		return err
	}

	t.prometheusServer = &http.Server{
		Addr: t.config.PrometheusAddr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{},
			),
		),
		ReadHeaderTimeout: 60 * time.Second,
	}

	go t.run()

	return nil
}

func (t *Telemetry) Close(ctx context.Context) error {
	if t.prometheusServer == nil {
		return nil
	}

	t.logger.Info("telemetry: prometheus server stopping", "addr", t.prometheusServer.Addr)

	return t.prometheusServer.Shutdown(ctx)
}

func (t *Telemetry) IsEnabled() bool {
	return t.config.PrometheusAddr != ""
}

func (t *Telemetry) run() {
	t.logger.Info("telemetry: prometheus server started", "addr", t.config.PrometheusAddr)

	if err := t.prometheusServer.ListenAndServe(); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("telemetry: prometheus server error", "err", err)
		}
	}
}

func setupPrometheus() error {
	inm := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(inm)

	promSink, err := prometheusMetrics.NewPrometheusSinkFrom(prometheusMetrics.PrometheusOpts{
		Name:       "ambridge_relayer_prometheus_sink",
		Expiration: 0,
	})
	if err != nil {
		return err
	}

	metricsConf := metrics.DefaultConfig("ambridge_relayer")
	metricsConf.EnableHostname = false

	_, err = metrics.NewGlobal(metricsConf, metrics.FanoutSink{inm, promSink})

	return err
}
