// Package metrics содержит прометеевские метрики песочницы.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LiveWatches число активных подписок на документное хранилище.
var LiveWatches = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sandbox_live_watches",
	Help: "Number of active document store subscriptions.",
})

// Toasts число показанных тостов по уровням важности.
var Toasts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sandbox_toasts_total",
	Help: "Number of shell toast notifications.",
}, []string{"severity"})

// SimulatedEvents число симулированных событий по типам.
var SimulatedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sandbox_simulated_events_total",
	Help: "Number of simulated billing and webhook events.",
}, []string{"type"})
