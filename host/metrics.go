package host

import (
	"strconv"
	"sync"
	"time"

	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	linkChars = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softcxp",
			Subsystem: "link",
			Name:      "chars_transmitted_total",
			Help:      "Characters accepted by the PHY.",
		},
		[]string{"link"},
	)
	linkWords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softcxp",
			Subsystem: "link",
			Name:      "words_received_total",
			Help:      "Words received from the PHY.",
		},
		[]string{"link"},
	)
	linkTransmitErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softcxp",
			Subsystem: "link",
			Name:      "transmit_errors_total",
			Help:      "Characters the HAL refused.",
		},
		[]string{"link"},
	)
	linkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softcxp",
			Subsystem: "link",
			Name:      "errors_total",
			Help:      "Receive pipeline errors by kind.",
		},
		[]string{"link", "kind"},
	)
	linkPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softcxp",
			Subsystem: "link",
			Name:      "packets_total",
			Help:      "Packets by direction and kind.",
		},
		[]string{"link", "direction", "kind"},
	)
	linkTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softcxp",
			Subsystem: "link",
			Name:      "triggers_total",
			Help:      "Trigger sequences by direction.",
		},
		[]string{"link", "direction"},
	)
	linkTriggerAcks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softcxp",
			Subsystem: "link",
			Name:      "trigger_acks_total",
			Help:      "Trigger acknowledgments by direction.",
		},
		[]string{"link", "direction"},
	)
	linkBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "softcxp",
			Subsystem: "link",
			Name:      "batch_duration_seconds",
			Help:      "Time spent running one batch of ticks.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
		[]string{"link"},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softcxp",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Control API requests by route and status.",
		},
		[]string{"link", "method", "route", "status"},
	)
	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "softcxp",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Control API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"link", "method", "route"},
	)
)

// Metric label values.
const (
	directionTX = "tx"
	directionRX = "rx"
)

// RegisterMetrics registers the link collectors with the default registry.
// It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(linkChars, linkWords, linkTransmitErrors, linkErrors,
			linkPackets, linkTriggers, linkTriggerAcks, linkBatchDuration,
			apiRequests, apiDuration)
	})
}

// RecordLinkError counts one receive pipeline error.
func RecordLinkError(name string, kind pkg.ErrorKind) {
	RegisterMetrics()
	linkErrors.WithLabelValues(name, kind.String()).Inc()
}

// RecordBatch observes the duration of one batch of ticks.
func RecordBatch(name string, d time.Duration) {
	RegisterMetrics()
	linkBatchDuration.WithLabelValues(name).Observe(d.Seconds())
}

// RecordRequest counts one control API request against the link it
// addressed and observes its latency.
func RecordRequest(name, method, route string, status int, d time.Duration) {
	RegisterMetrics()
	apiRequests.WithLabelValues(name, method, route, strconv.Itoa(status)).Inc()
	apiDuration.WithLabelValues(name, method, route).Observe(d.Seconds())
}

// linkMetrics mirrors the pipeline counters into prometheus. Counters are
// advanced by the difference between successive snapshots.
type linkMetrics struct {
	name string

	chars    prometheus.Counter
	words    prometheus.Counter
	txErrors prometheus.Counter

	lastTX link.TXStats
	lastRX link.RXStats
}

func newLinkMetrics(name string) *linkMetrics {
	RegisterMetrics()
	return &linkMetrics{
		name:     name,
		chars:    linkChars.WithLabelValues(name),
		words:    linkWords.WithLabelValues(name),
		txErrors: linkTransmitErrors.WithLabelValues(name),
	}
}

// observe adds the counter growth since the previous call.
func (m *linkMetrics) observe(tx link.TXStats, rx link.RXStats) {
	add := func(c *prometheus.CounterVec, now, last uint64, labels ...string) {
		if now > last {
			c.WithLabelValues(append([]string{m.name}, labels...)...).Add(float64(now - last))
		}
	}

	add(linkPackets, tx.Packets, m.lastTX.Packets, directionTX, link.KindCommand.String())
	add(linkPackets, tx.TestPackets, m.lastTX.TestPackets, directionTX, link.KindTest.String())
	add(linkTriggers, tx.Triggers, m.lastTX.Triggers, directionTX)
	add(linkTriggerAcks, tx.TriggerAcks, m.lastTX.TriggerAcks, directionTX)

	add(linkPackets, rx.StreamPackets, m.lastRX.StreamPackets, directionRX, link.KindStream.String())
	add(linkPackets, rx.TestPackets, m.lastRX.TestPackets, directionRX, link.KindTest.String())
	add(linkPackets, rx.Heartbeats, m.lastRX.Heartbeats, directionRX, link.KindHeartbeat.String())
	add(linkPackets, rx.CommandPackets, m.lastRX.CommandPackets, directionRX, link.KindCommand.String())
	add(linkTriggers, rx.Triggers, m.lastRX.Triggers, directionRX)
	add(linkTriggerAcks, rx.TriggerAcks, m.lastRX.TriggerAcks, directionRX)

	m.lastTX, m.lastRX = tx, rx
}
