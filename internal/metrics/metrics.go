package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	deploys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deployr",
			Subsystem: "deploy",
			Name:      "runs_total",
			Help:      "Number of deploy runs by terminal state.",
		}, []string{"service", "state"},
	)
	stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deployr",
			Subsystem: "deploy",
			Name:      "stops_total",
			Help:      "Number of stop operations; found tells whether a matching process existed.",
		}, []string{"service", "found"},
	)
	starts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deployr",
			Subsystem: "deploy",
			Name:      "starts_total",
			Help:      "Number of successful detached session starts.",
		}, []string{"service"},
	)
	probeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deployr",
			Subsystem: "probe",
			Name:      "attempts_total",
			Help:      "Number of liveness probes issued during verification.",
		}, []string{"service"},
	)
	deployDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deployr",
			Subsystem: "deploy",
			Name:      "duration_seconds",
			Help:      "Wall time of full deploy sequences.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deployr",
			Subsystem: "deploy",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions between deploy states.",
		}, []string{"service", "from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "deployr",
			Subsystem: "deploy",
			Name:      "current_state",
			Help:      "Current deploy state per service (1 = active state, 0 = inactive).",
		}, []string{"service", "state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{deploys, stops, starts, probeAttempts, deployDuration, stateTransitions, currentState}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncDeploy(service, state string) {
	if regOK.Load() {
		deploys.WithLabelValues(service, state).Inc()
	}
}

func IncStop(service string, found bool) {
	if regOK.Load() {
		f := "false"
		if found {
			f = "true"
		}
		stops.WithLabelValues(service, f).Inc()
	}
}

func IncStart(service string) {
	if regOK.Load() {
		starts.WithLabelValues(service).Inc()
	}
}

func IncProbeAttempt(service string) {
	if regOK.Load() {
		probeAttempts.WithLabelValues(service).Inc()
	}
}

func ObserveDeployDuration(service string, seconds float64) {
	if regOK.Load() {
		deployDuration.WithLabelValues(service).Observe(seconds)
	}
}

func RecordStateTransition(service, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(service, from, to).Inc()
	}
}

func SetCurrentState(service, state string, active bool) {
	if regOK.Load() {
		var value float64
		if active {
			value = 1
		}
		currentState.WithLabelValues(service, state).Set(value)
	}
}
