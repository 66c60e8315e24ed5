// Package metrics defines the observability interfaces used by the file
// service, blob stores and the orphan collector.
//
// All metrics are optional. When InitRegistry has not been called the
// constructors in metrics/prometheus return no-op implementations, so the
// service runs with or without a metrics endpoint.
//
// Usage:
//
//	metrics.InitRegistry()
//	svc := files.NewService(reg, blobs, cfg, prometheus.NewFileMetrics())
//
//	// Or pass nil for no-op behavior
//	svc := files.NewService(reg, blobs, cfg, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry holds every DittoDrive collector.
	// Written once by InitRegistry, read many times.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry with the Go
// runtime and process collectors. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
