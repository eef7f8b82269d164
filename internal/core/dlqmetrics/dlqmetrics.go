// Package dlqmetrics tracks dead-letter bookkeeping for transports that
// have no native DLQ support of their own, adapted from the teacher's
// internal/runtime/dlq_metrics.go (DLQMetrics/DLQTopicMetrics/
// DLQMetricsSnapshot) and renamed into the dispatchflow Prometheus
// namespace the rest of internal/core uses (see pump.PoisonMetrics).
package dlqmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TopicMetrics holds the running tally for one topic's dead-letter traffic.
type TopicMetrics struct {
	MessagesReceived uint64    `json:"messages_received"`
	MessagesCurrent  uint64    `json:"messages_current"`
	MessagesReplayed uint64    `json:"messages_replayed"`
	MessagesPurged   uint64    `json:"messages_purged"`
	OldestMessageAt  time.Time `json:"oldest_message_at,omitempty"`
	NewestMessageAt  time.Time `json:"newest_message_at,omitempty"`
	AvgRetryCount    float64   `json:"avg_retry_count"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

// Snapshot is a point-in-time view of every topic's dead-letter metrics.
type Snapshot struct {
	TotalMessages uint64                   `json:"total_messages"`
	TotalReplayed uint64                   `json:"total_replayed"`
	TotalPurged   uint64                   `json:"total_purged"`
	TopicMetrics  map[string]*TopicMetrics `json:"topic_metrics"`
	CollectedAt   time.Time                `json:"collected_at"`
}

// Metrics tracks dead-letter-queue statistics per topic, for transports
// whose Capabilities.SupportsNativeDLQ is false (spec §4.6's "broker has no
// native requeue support" fallback to Reject).
type Metrics struct {
	mu sync.RWMutex

	topics map[string]*TopicMetrics

	messagesTotal   *prometheus.CounterVec
	messagesCurrent *prometheus.GaugeVec
	replayedTotal   *prometheus.CounterVec
	purgedTotal     *prometheus.CounterVec
	ageSecondsHist  *prometheus.HistogramVec
	retryCountHist  *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatchflow", Subsystem: "dlq", Name: name, Help: help,
	}, labels)
}

func newGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dispatchflow", Subsystem: "dlq", Name: name, Help: help,
	}, labels)
}

func newHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dispatchflow", Subsystem: "dlq", Name: name, Help: help, Buckets: buckets,
	}, labels)
}

// New builds a dead-letter metrics collector registered against registerer
// (falls back to prometheus.DefaultRegisterer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		topics:          make(map[string]*TopicMetrics),
		registerer:      registerer,
		messagesTotal:   newCounterVec("messages_total", "Total number of messages moved to the dead letter queue", []string{"topic", "routing_key"}),
		messagesCurrent: newGaugeVec("messages_current", "Current number of messages in the dead letter queue", []string{"topic"}),
		replayedTotal:   newCounterVec("replayed_total", "Total number of messages replayed from the dead letter queue", []string{"topic"}),
		purgedTotal:     newCounterVec("purged_total", "Total number of messages purged from the dead letter queue", []string{"topic"}),
		ageSecondsHist:  newHistogramVec("message_age_seconds", "Age of a message when it was moved to the dead letter queue", []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600}, []string{"topic"}),
		retryCountHist:  newHistogramVec("retry_count", "Number of retries before a message was moved to the dead letter queue", []float64{1, 2, 3, 5, 10, 20}, []string{"topic"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}
	collectors := []prometheus.Collector{m.messagesTotal, m.messagesCurrent, m.replayedTotal, m.purgedTotal, m.ageSecondsHist, m.retryCountHist}
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

// RecordMessageToDLQ records a message being moved to the dead letter queue
// for topic, emulated by routingKey since the emulating transport has no
// notion of a registered handler name.
func (m *Metrics) RecordMessageToDLQ(topic, routingKey string, retryCount int, messageAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(topic)
	metrics.MessagesReceived++
	metrics.MessagesCurrent++
	now := time.Now()
	metrics.LastUpdatedAt = now
	if metrics.OldestMessageAt.IsZero() {
		metrics.OldestMessageAt = now
	}
	metrics.NewestMessageAt = now

	total := metrics.MessagesReceived
	metrics.AvgRetryCount = ((metrics.AvgRetryCount * float64(total-1)) + float64(retryCount)) / float64(total)

	m.messagesTotal.WithLabelValues(topic, routingKey).Inc()
	m.messagesCurrent.WithLabelValues(topic).Set(float64(metrics.MessagesCurrent))
	m.ageSecondsHist.WithLabelValues(topic).Observe(messageAge.Seconds())
	m.retryCountHist.WithLabelValues(topic).Observe(float64(retryCount))
}

// RecordReplayed records a message being replayed out of the dead letter
// queue back onto topic.
func (m *Metrics) RecordReplayed(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(topic)
	metrics.MessagesReplayed++
	if metrics.MessagesCurrent > 0 {
		metrics.MessagesCurrent--
	}
	metrics.LastUpdatedAt = time.Now()

	m.replayedTotal.WithLabelValues(topic).Inc()
	m.messagesCurrent.WithLabelValues(topic).Set(float64(metrics.MessagesCurrent))
}

// RecordPurged records count messages being purged from topic's dead letter
// queue without replay.
func (m *Metrics) RecordPurged(topic string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(topic)
	metrics.MessagesPurged += uint64(count)
	if metrics.MessagesCurrent >= uint64(count) {
		metrics.MessagesCurrent -= uint64(count)
	} else {
		metrics.MessagesCurrent = 0
	}
	metrics.LastUpdatedAt = time.Now()

	m.purgedTotal.WithLabelValues(topic).Add(float64(count))
	m.messagesCurrent.WithLabelValues(topic).Set(float64(metrics.MessagesCurrent))
}

// Snapshot returns a point-in-time copy of every topic's tallies.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{TopicMetrics: make(map[string]*TopicMetrics, len(m.topics)), CollectedAt: time.Now()}
	for topic, metrics := range m.topics {
		copied := *metrics
		snap.TopicMetrics[topic] = &copied
		snap.TotalMessages += metrics.MessagesCurrent
		snap.TotalReplayed += metrics.MessagesReplayed
		snap.TotalPurged += metrics.MessagesPurged
	}
	return snap
}

func (m *Metrics) getOrCreate(topic string) *TopicMetrics {
	if metrics, ok := m.topics[topic]; ok {
		return metrics
	}
	metrics := &TopicMetrics{}
	m.topics[topic] = metrics
	return metrics
}
