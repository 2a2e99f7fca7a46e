package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// DefaultMetricsPort is used when the exporter address cannot be resolved.
const DefaultMetricsPort = 9090

var (
	// TelemetrySystem is nil until InitMetrics succeeds; emitters treat nil as disabled.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the registered metrics.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter under namespace on port (0 picks
// a free port) and routes telemetry through it.
func InitMetrics(namespace string, port int) error {
	if port < 0 {
		port = 0
	}
	metricsPort = port

	exporter := exporters.NewPrometheusExporter(namespace, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter: %w", err)
	}

	if actual, err := resolvePort(exporter.GetAddr()); err == nil {
		metricsPort = actual
	} else if port == 0 {
		metricsPort = DefaultMetricsPort
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: exporter,
	})
	if err != nil {
		_ = exporter.Stop()
		return fmt.Errorf("init telemetry: %w", err)
	}

	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// StopMetrics stops the exporter and disables emission.
func StopMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// GetMetricsPort returns the port the exporter is listening on.
func GetMetricsPort() int {
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
