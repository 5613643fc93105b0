// Package metrics provides interfaces for defining self-contained, reusable metrics.
//
// Each metric is a computation unit that:
//   - Declares its input requirements
//   - Computes a typed output
//   - Provides metadata for documentation and serialization
//
// Metrics of the same input and output type are grouped in a Registry and
// computed together or selected by name.
package metrics

import (
	"errors"
	"fmt"
)

// Sentinel registry errors.
var (
	ErrDuplicateMetric = errors.New("metric already registered")
	ErrUnknownMetric   = errors.New("unknown metric")
)

// Metric is the core interface that all metrics must implement.
type Metric[In, Out any] interface {
	// Name returns the machine-readable identifier (snake_case, unique).
	Name() string

	// DisplayName returns a human-readable name for reports.
	DisplayName() string

	// Description explains what the metric measures and how to read it.
	Description() string

	// Type returns the metric category (e.g., "workload", "inequality").
	Type() string

	// Compute calculates the metric value from input data.
	Compute(input In) Out
}

// MetricMeta holds the common metadata for a metric.
// Embed this in metric implementations to satisfy metadata methods.
type MetricMeta struct {
	MetricName        string
	MetricDisplayName string
	MetricDescription string
	MetricType        string
}

// Name returns the machine-readable identifier.
func (m MetricMeta) Name() string { return m.MetricName }

// DisplayName returns a human-readable name for reports.
func (m MetricMeta) DisplayName() string { return m.MetricDisplayName }

// Description returns detailed documentation.
func (m MetricMeta) Description() string { return m.MetricDescription }

// Type returns the metric category.
func (m MetricMeta) Type() string { return m.MetricType }

// Func adapts a plain function to the Metric interface.
type Func[In, Out any] struct {
	MetricMeta

	fn func(In) Out
}

// New creates a metric from its metadata and compute function.
func New[In, Out any](meta MetricMeta, fn func(In) Out) *Func[In, Out] {
	return &Func[In, Out]{MetricMeta: meta, fn: fn}
}

// Compute calls the wrapped function.
func (f *Func[In, Out]) Compute(input In) Out {
	return f.fn(input)
}

// Value is one computed metric.
type Value[Out any] struct {
	Name        string `json:"name"         yaml:"name"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Value       Out    `json:"value"        yaml:"value"`
}

// Registry holds metrics that can be computed together. Names keep their
// registration order.
type Registry[In, Out any] struct {
	order   []string
	metrics map[string]Metric[In, Out]
}

// NewRegistry creates an empty metric registry.
func NewRegistry[In, Out any]() *Registry[In, Out] {
	return &Registry[In, Out]{metrics: make(map[string]Metric[In, Out])}
}

// Register adds a metric to the registry.
func (r *Registry[In, Out]) Register(m Metric[In, Out]) error {
	if _, exists := r.metrics[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}

	r.metrics[m.Name()] = m
	r.order = append(r.order, m.Name())

	return nil
}

// MustRegister is Register for package-level initialisation.
func (r *Registry[In, Out]) MustRegister(metrics ...Metric[In, Out]) *Registry[In, Out] {
	for _, m := range metrics {
		err := r.Register(m)
		if err != nil {
			panic(err)
		}
	}

	return r
}

// Get retrieves a metric by name.
func (r *Registry[In, Out]) Get(name string) (Metric[In, Out], bool) {
	m, ok := r.metrics[name]

	return m, ok
}

// Names returns all registered metric names in registration order.
func (r *Registry[In, Out]) Names() []string {
	return append([]string(nil), r.order...)
}

// Compute evaluates the named metrics, or all of them when names is empty,
// in the requested order.
func (r *Registry[In, Out]) Compute(input In, names ...string) ([]Value[Out], error) {
	if len(names) == 0 {
		names = r.order
	}

	values := make([]Value[Out], 0, len(names))

	for _, name := range names {
		m, ok := r.metrics[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
		}

		values = append(values, Value[Out]{Name: name, DisplayName: m.DisplayName(), Value: m.Compute(input)})
	}

	return values, nil
}
