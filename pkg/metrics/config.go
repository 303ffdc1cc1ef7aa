package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is the metric namespace used when Config.Namespace is empty.
const DefaultNamespace = "jobgraph"

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "jobgraph" namespace for metrics.
	Namespace string
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
	}
}

// Build returns the Registry described by c, or nil when metrics are
// disabled. A nil Registry with the default namespace shares DefaultRegistry.
func (c Config) Build() *Registry {
	if !c.Enabled {
		return nil
	}
	ns := c.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	if (c.Registry == nil || c.Registry == prometheus.DefaultRegisterer) && ns == DefaultNamespace {
		return DefaultRegistry()
	}
	reg := c.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return NewRegistryWithNamespace(reg, ns)
}
