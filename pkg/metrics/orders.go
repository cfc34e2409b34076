package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks status transitions, fulfillment steps and gateway calls.
type OrderMetrics struct {
	transitions     *prometheus.CounterVec
	lostRaces       *prometheus.CounterVec
	fulfillment     *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	ceilingRejected prometheus.Counter
}

// NewOrderMetrics registers the order metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := counterVec("orders", "transitions_total", "Committed order status transitions.", "from", "to", "source")
	lostRaces := counterVec("orders", "transition_noop_total", "Transition attempts that matched no pending row.", "source")
	fulfillment := counterVec("orders", "fulfillment_steps_total", "Fulfillment step executions by outcome.", "step", "outcome")
	gatewayLatency := histogramVec("payments", "gateway_request_duration_seconds", "Latency of payment gateway calls.", nil, "operation", "outcome")
	ceilingRejected := counter("payments", "ceiling_rejected_total", "Payment sessions refused because the amount exceeded the ceiling.")
	reg.MustRegister(transitions, lostRaces, fulfillment, gatewayLatency, ceilingRejected)
	return &OrderMetrics{
		transitions:     transitions,
		lostRaces:       lostRaces,
		fulfillment:     fulfillment,
		gatewayLatency:  gatewayLatency,
		ceilingRejected: ceilingRejected,
	}
}

// IncTransition counts a committed transition.
func (m *OrderMetrics) IncTransition(from, to, source string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(source)).Inc()
}

// IncNoop counts a transition attempt that lost the race or found a final order.
func (m *OrderMetrics) IncNoop(source string) {
	if m == nil || m.lostRaces == nil {
		return
	}
	m.lostRaces.WithLabelValues(normalizeLabel(source)).Inc()
}

// ObserveFulfillmentStep records the outcome of one fulfillment step.
func (m *OrderMetrics) ObserveFulfillmentStep(step string, err error) {
	if m == nil || m.fulfillment == nil {
		return
	}
	m.fulfillment.WithLabelValues(normalizeLabel(step), outcome(err)).Inc()
}

// ObserveGateway records a gateway call duration.
func (m *OrderMetrics) ObserveGateway(operation string, took time.Duration, err error) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation), outcome(err)).Observe(took.Seconds())
}

// IncCeilingRejected counts a session refused by the amount ceiling.
func (m *OrderMetrics) IncCeilingRejected() {
	if m == nil || m.ceilingRejected == nil {
		return
	}
	m.ceilingRejected.Inc()
}
