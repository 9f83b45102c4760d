// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

package field

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefinitionsCreated counts created definitions.
// Use RegisterMetrics to register this with a Prometheus registry.
var DefinitionsCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "customfields_definitions_created_total",
		Help: "Total number of custom field definitions created",
	},
	[]string{"entity_type", "type_id"},
)

// DefinitionsDestroyed counts destroyed definitions.
// Use RegisterMetrics to register this with a Prometheus registry.
var DefinitionsDestroyed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "customfields_definitions_destroyed_total",
		Help: "Total number of custom field definitions destroyed",
	},
	[]string{"entity_type"},
)

// ValuesBackfilled counts values inserted while backfilling new definitions.
// Use RegisterMetrics to register this with a Prometheus registry.
var ValuesBackfilled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "customfields_values_backfilled_total",
		Help: "Total number of values inserted by definition backfill",
	},
	[]string{"entity_type"},
)

// ValidationFailures counts value validation failures by error code.
// Use RegisterMetrics to register this with a Prometheus registry.
var ValidationFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "customfields_validation_failures_total",
		Help: "Total number of value validation failures by code",
	},
	[]string{"code"},
)

// BackfillBatchDuration is the histogram for backfill batch duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var BackfillBatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "customfields_backfill_batch_duration_seconds",
		Help:    "Backfill batch duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"entity_type"},
)

// RegisterMetrics registers field package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(DefinitionsCreated)
	reg.MustRegister(DefinitionsDestroyed)
	reg.MustRegister(ValuesBackfilled)
	reg.MustRegister(ValidationFailures)
	reg.MustRegister(BackfillBatchDuration)
}

func recordDefinitionCreated(entityType, typeID string) {
	DefinitionsCreated.WithLabelValues(entityType, typeID).Inc()
}

func recordDefinitionDestroyed(entityType string) {
	DefinitionsDestroyed.WithLabelValues(entityType).Inc()
}

func recordBackfillBatch(entityType string, inserted int64, d time.Duration) {
	BackfillBatchDuration.WithLabelValues(entityType).Observe(d.Seconds())
	if inserted > 0 {
		ValuesBackfilled.WithLabelValues(entityType).Add(float64(inserted))
	}
}

func recordValidationFailures(errs []FieldError) {
	for _, e := range errs {
		ValidationFailures.WithLabelValues(string(e.Code)).Inc()
	}
}
