package feed

import (
	"time"

	"github.com/arbcore/detector/internal/ringbuf"
)

// Health is the snapshot returned by getHealth() (spec §4.1).
type Health struct {
	State            State
	LastMessageAt    time.Time
	MessagesReceived int64
	PendingTxCount   int64
	ErrorCount       int64
	ReconnectCount   int64
	AverageLatencyMs float64
	ConnectedSince   time.Time
	Uptime           time.Duration
}

// healthTracker accumulates the counters behind Health.
type healthTracker struct {
	lastMessageAt    time.Time
	messagesReceived int64
	pendingTxCount   int64
	errorCount       int64
	reconnectCount   int64
	connectedSince   time.Time
	latency          *ringbuf.RollingAverage
}

func newHealthTracker() *healthTracker {
	return &healthTracker{latency: ringbuf.NewRollingAverage(100)}
}

func (h *healthTracker) snapshot(state State) Health {
	var uptime time.Duration
	if !h.connectedSince.IsZero() {
		uptime = time.Since(h.connectedSince)
	}
	return Health{
		State:            state,
		LastMessageAt:    h.lastMessageAt,
		MessagesReceived: h.messagesReceived,
		PendingTxCount:   h.pendingTxCount,
		ErrorCount:       h.errorCount,
		ReconnectCount:   h.reconnectCount,
		AverageLatencyMs: h.latency.Value(),
		ConnectedSince:   h.connectedSince,
		Uptime:           uptime,
	}
}
