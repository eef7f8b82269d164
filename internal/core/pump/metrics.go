package pump

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	messagepkg "github.com/flowmesh/dispatchflow/internal/core/message"
)

// PoisonMetrics tracks poison-message (UNACCEPTABLE / classified-as-poison)
// statistics per routing key, adapted from the teacher's DLQMetrics: same
// counter/gauge/histogram shape, renamed to the pump's own poison-message
// vocabulary (spec §4.3's "poison messages surface via operator metrics").
type PoisonMetrics struct {
	mu sync.RWMutex

	routingKeyCounts map[string]*RoutingKeyPoisonMetrics

	poisonTotal    *prometheus.CounterVec
	poisonCurrent  *prometheus.GaugeVec
	requeuedTotal  *prometheus.CounterVec
	handledCounts  *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// RoutingKeyPoisonMetrics holds the running tally for one routing key.
type RoutingKeyPoisonMetrics struct {
	MessagesPoisoned uint64    `json:"messages_poisoned"`
	MessagesCurrent  uint64    `json:"messages_current"`
	MessagesRequeued uint64    `json:"messages_requeued"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

func newPumpCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchflow",
			Subsystem: "pump",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newPumpGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dispatchflow",
			Subsystem: "pump",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newPumpHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatchflow",
			Subsystem: "pump",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewPoisonMetrics builds a collector registered against registerer (falls
// back to prometheus.DefaultRegisterer when nil).
func NewPoisonMetrics(registerer prometheus.Registerer) *PoisonMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PoisonMetrics{
		routingKeyCounts: make(map[string]*RoutingKeyPoisonMetrics),
		registerer:       registerer,
		poisonTotal:      newPumpCounterVec("poison_messages_total", "Total number of messages classified as poison (unacceptable or mapping-failed)", []string{"routing_key"}),
		poisonCurrent:    newPumpGaugeVec("poison_messages_current", "Running poison-message count for the owning pump's UnacceptableLimit check", []string{"routing_key"}),
		requeuedTotal:    newPumpCounterVec("requeued_messages_total", "Total number of messages requeued rather than dropped", []string{"routing_key"}),
		handledCounts:    newPumpHistogramVec("handled_count", "Distribution of handled_count at the time a message was requeued", []float64{0, 1, 2, 3, 5, 10}, []string{"routing_key"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *PoisonMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}
	collectors := []prometheus.Collector{m.poisonTotal, m.poisonCurrent, m.requeuedTotal, m.handledCounts}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

// RecordPoison increments the poison counters for routingKey.
func (m *PoisonMetrics) RecordPoison(routingKey string) {
	m.poisonTotal.WithLabelValues(routingKey).Inc()
	m.poisonCurrent.WithLabelValues(routingKey).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.routingKeyCounts[routingKey]
	if entry == nil {
		entry = &RoutingKeyPoisonMetrics{}
		m.routingKeyCounts[routingKey] = entry
	}
	entry.MessagesPoisoned++
	entry.MessagesCurrent++
	entry.LastUpdatedAt = time.Now().UTC()
}

// RecordRequeue records a requeue-rather-than-drop outcome and the
// message's handled_count at that point.
func (m *PoisonMetrics) RecordRequeue(routingKey string, handledCount int) {
	m.requeuedTotal.WithLabelValues(routingKey).Inc()
	m.handledCounts.WithLabelValues(routingKey).Observe(float64(handledCount))

	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.routingKeyCounts[routingKey]
	if entry == nil {
		entry = &RoutingKeyPoisonMetrics{}
		m.routingKeyCounts[routingKey] = entry
	}
	entry.MessagesRequeued++
	entry.LastUpdatedAt = time.Now().UTC()
}

// Snapshot returns a point-in-time copy of the per-routing-key tallies.
func (m *PoisonMetrics) Snapshot() map[string]RoutingKeyPoisonMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]RoutingKeyPoisonMetrics, len(m.routingKeyCounts))
	for k, v := range m.routingKeyCounts {
		out[k] = *v
	}
	return out
}

func (m *PoisonMetrics) recordPoisonIfConfigured(msg messagepkg.Message) {
	if m == nil {
		return
	}
	m.RecordPoison(msg.Header.RoutingKey)
}

func (m *PoisonMetrics) recordRequeueIfConfigured(msg messagepkg.Message) {
	if m == nil {
		return
	}
	m.RecordRequeue(msg.Header.RoutingKey, msg.Header.HandledCount)
}
