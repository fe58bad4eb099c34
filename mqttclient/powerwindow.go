package mqttclient

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// PowerWindow keeps the last N power samples received over MQTT. It is a
// live signal: the producing subscription is its only writer, consumers read
// the latest window and never block. Until the window is full both IsAbove
// and IsBelow report false, so a freshly started process makes no claims.
type PowerWindow struct {
	mu      sync.Mutex
	size    int
	samples []float64
}

func NewPowerWindow(size int) *PowerWindow {
	return &PowerWindow{size: size}
}

// Observe appends a sample, evicting the oldest when the window is full.
func (w *PowerWindow) Observe(value float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, value)
	if len(w.samples) > w.size {
		w.samples = w.samples[1:]
	}
}

// IsAbove reports whether every sample in a full window exceeds threshold.
func (w *PowerWindow) IsAbove(threshold float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) < w.size {
		return false
	}
	for _, s := range w.samples {
		if s <= threshold {
			return false
		}
	}
	return true
}

// IsBelow reports whether every sample in a full window is under threshold.
func (w *PowerWindow) IsBelow(threshold float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) < w.size {
		return false
	}
	for _, s := range w.samples {
		if s >= threshold {
			return false
		}
	}
	return true
}

// Handler parses numeric MQTT payloads into the window. Malformed payloads
// are logged and dropped.
func (w *PowerWindow) Handler() func(topic string, payload []byte) {
	return func(topic string, payload []byte) {
		value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			slog.Warn("unparsable power sample", "topic", topic, "payload", string(payload))
			return
		}
		w.Observe(value)
	}
}
