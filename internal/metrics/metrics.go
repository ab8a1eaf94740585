// Package metrics defines the Metricer interface implemented by a
// prometheus-backed Metrics struct, constructed against its own
// registry and exposed over HTTP by the service when enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "rollupwatch"

// Metricer is implemented by every component that records observability
// data: chain client reconnects, per-rollup watchers, sequencer pollers,
// and the hub's subscriber lifecycle.
type Metricer interface {
	RecordInfo(version string)
	RecordUp()

	RecordEventProcessed(rollupID string, eventType string)
	RecordDecodeError(rollupID string)
	RecordReconnect(reason string)
	RecordStaleFilter()

	RecordSequencerPoll(rollupID string, ok bool)
	RecordSequencerProducing(rollupID string, producing bool)

	RecordSubscriberConnected()
	RecordSubscriberDisconnected()
	RecordSubscriberLagged(subscriberID string)
	RecordRingDepth(depth int)
}

type Metrics struct {
	registry *prometheus.Registry

	info prometheus.GaugeVec
	up   prometheus.Gauge

	eventsProcessed prometheus.CounterVec
	decodeErrors    prometheus.CounterVec
	reconnects      prometheus.CounterVec
	staleFilters    prometheus.Counter

	sequencerPolls     prometheus.CounterVec
	sequencerProducing prometheus.GaugeVec

	subscribersConnected prometheus.Gauge
	subscribersLagged    prometheus.CounterVec
	ringDepth            prometheus.Gauge
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		info: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "info", Help: "Information about the rollupwatch build",
		}, []string{"version"}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "up", Help: "1 if rollupwatch has finished starting up",
		}),
		eventsProcessed: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "events_processed_total", Help: "Number of decoded L1 events recorded by the hub",
		}, []string{"rollup", "event_type"}),
		decodeErrors: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "decode_errors_total", Help: "Number of raw logs that failed decoding",
		}, []string{"rollup"}),
		reconnects: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "chain_client_reconnects_total", Help: "Number of chain client reconnects",
		}, []string{"reason"}),
		staleFilters: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "stale_filter_total", Help: "Number of stale-filter forced reconnects",
		}),
		sequencerPolls: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "sequencer_polls_total", Help: "Number of L2 sequencer polls",
		}, []string{"rollup", "result"}),
		sequencerProducing: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "sequencer_producing", Help: "1 if the rollup's sequencer is producing blocks",
		}, []string{"rollup"}),
		subscribersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "subscribers_connected", Help: "Number of live stream subscribers currently connected",
		}),
		subscribersLagged: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "subscribers_lagged_total", Help: "Number of times a subscriber fell behind the broadcast ring",
		}, []string{"subscriber"}),
		ringDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "broadcast_ring_depth", Help: "Number of events currently written into the broadcast ring",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordInfo(version string) { m.info.WithLabelValues(version).Set(1) }
func (m *Metrics) RecordUp()                 { m.up.Set(1) }

func (m *Metrics) RecordEventProcessed(rollupID string, eventType string) {
	m.eventsProcessed.WithLabelValues(rollupID, eventType).Inc()
}

func (m *Metrics) RecordDecodeError(rollupID string) {
	m.decodeErrors.WithLabelValues(rollupID).Inc()
}

func (m *Metrics) RecordReconnect(reason string) {
	m.reconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordStaleFilter() {
	m.staleFilters.Inc()
}

func (m *Metrics) RecordSequencerPoll(rollupID string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.sequencerPolls.WithLabelValues(rollupID, result).Inc()
}

func (m *Metrics) RecordSequencerProducing(rollupID string, producing bool) {
	v := 0.0
	if producing {
		v = 1.0
	}
	m.sequencerProducing.WithLabelValues(rollupID).Set(v)
}

func (m *Metrics) RecordSubscriberConnected() {
	m.subscribersConnected.Inc()
}

func (m *Metrics) RecordSubscriberDisconnected() {
	m.subscribersConnected.Dec()
}

func (m *Metrics) RecordSubscriberLagged(subscriberID string) {
	m.subscribersLagged.WithLabelValues(subscriberID).Inc()
}

func (m *Metrics) RecordRingDepth(depth int) {
	m.ringDepth.Set(float64(depth))
}
