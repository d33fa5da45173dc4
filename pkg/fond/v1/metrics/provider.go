package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryProvider gives access to the registry the solver registers its
// collectors on, so callers can expose them (e.g. through promhttp).
type RegistryProvider interface {
	// Registry returns the Prometheus registry holding the solver metrics.
	Registry() *prometheus.Registry
}
