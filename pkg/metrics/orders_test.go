package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestOrderMetricsCountsTransitionsAndSteps(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	m.IncTransition("pending", "confirmed", "webhook")
	m.IncTransition("pending", "confirmed", "webhook")
	m.IncNoop("poll")
	m.ObserveFulfillmentStep("invoice", nil)
	m.ObserveFulfillmentStep("vendor_email", errors.New("smtp down"))
	m.ObserveGateway("create_order", 120*time.Millisecond, nil)
	m.IncCeilingRejected()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	transitions := findMetricFamily(mfs, "aharraa_orders_transitions_total")
	require.NotNil(t, transitions)
	var found bool
	for _, metric := range transitions.GetMetric() {
		if matchesLabels(metric.GetLabel(), map[string]string{"from": "pending", "to": "confirmed", "source": "webhook"}) {
			require.Equal(t, float64(2), metric.GetCounter().GetValue())
			found = true
		}
	}
	require.True(t, found, "transition series missing")

	got, err := fetchCounterValue(mfs, "aharraa_orders_transition_noop_total", "source", "poll")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "aharraa_orders_fulfillment_steps_total", "outcome", OutcomeFailure)
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	sum, err := fetchHistogramSum(mfs, "aharraa_payments_gateway_request_duration_seconds", "operation", "create_order")
	require.NoError(t, err)
	require.Greater(t, sum, 0.0)

	ceiling := findMetricFamily(mfs, "aharraa_payments_ceiling_rejected_total")
	require.NotNil(t, ceiling)
	require.Equal(t, float64(1), ceiling.GetMetric()[0].GetCounter().GetValue())
}

func TestNilOrderMetricsIsNoop(t *testing.T) {
	var m *OrderMetrics
	m.IncTransition("pending", "failed", "poll")
	m.IncNoop("webhook")
	m.ObserveFulfillmentStep("cart_clear", nil)
	m.ObserveGateway("fetch_order", time.Second, errors.New("x"))
	m.IncCeilingRejected()

	NewOrderMetrics(nil).IncTransition("a", "b", "c")
}
