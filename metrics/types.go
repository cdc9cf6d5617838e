// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/request-profiler/metrics"

// Create ids.go from metrics.json
//go:generate go run genids/main.go metrics.json ids.go

// MetricID is the type for metric IDs.
type MetricID uint16

// MetricValue is the type for metric values.
type MetricValue int64

// Metric is the type for a metric id/value pair.
type Metric struct {
	ID    MetricID
	Value MetricValue
}

// MetricType selects the OpenTelemetry instrument used for a metric.
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

// MetricDefinition is one entry of metrics.json.
type MetricDefinition struct {
	Description string     `json:"description"`
	Type        MetricType `json:"type"`
	Name        string     `json:"name"`
	Field       string     `json:"field"`
	Unit        string     `json:"unit,omitempty"`
	ID          MetricID   `json:"id"`
	Obsolete    bool       `json:"obsolete,omitempty"`
}

// Source is implemented by components that keep their own counters and
// hand them out, reset, when asked.
type Source interface {
	Metrics() []Metric
}

// Summary helps summarizing metrics of the same ID from different sources before
// processing it further.
type Summary map[MetricID]MetricValue

// Metrics returns the summarized metrics in ascending ID order.
func (s Summary) Metrics() []Metric {
	out := make([]Metric, 0, len(s))
	for id := MetricID(0); id < IDMax; id++ {
		if v, ok := s[id]; ok {
			out = append(out, Metric{ID: id, Value: v})
		}
	}
	return out
}
