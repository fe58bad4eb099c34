// Package cyclemon watches an electric consumer (e.g. the washing machine)
// for the end of its cycle. The device side publishes "start" and "stop"
// over MQTT; a completion message is only worth sending when the cycle ran
// long enough to have been a real one.
package cyclemon

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// minCycleDuration below which a start/stop pair counts as noise (someone
// toggling the machine) rather than a completed cycle.
const minCycleDuration = 10 * time.Minute

// Notifier sends and retracts chat messages.
type Notifier interface {
	Send(text string) (int, error)
	Delete(messageID int) error
}

// Monitor tracks one consumer's cycle state.
type Monitor struct {
	mu        sync.Mutex
	startedID *int // message id of the "started" announcement
	startedAt time.Time

	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
	StartedText string
	DoneText    string
}

func New(device string, notifier Notifier) *Monitor {
	return &Monitor{
		notifier:    notifier,
		logger:      slog.Default().With("task", "cyclemon", "device", device),
		now:         time.Now,
		StartedText: device + " started",
		DoneText:    device + " is done",
	}
}

// HandleMessage consumes one MQTT cycle-state payload. Made to be registered
// as a subscription handler.
func (m *Monitor) HandleMessage(_ string, payload []byte) {
	switch strings.TrimSpace(string(payload)) {
	case "start":
		m.onStart()
	case "stop":
		m.onStop()
	}
}

func (m *Monitor) onStart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startedAt = m.now()
	m.logger.Info(m.StartedText)

	id, err := m.notifier.Send(m.StartedText)
	if err != nil {
		m.logger.Error("failed to announce cycle start", "error", err)
		return
	}
	m.startedID = &id
}

func (m *Monitor) onStop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// retract the start announcement, it is stale now
	if m.startedID != nil {
		if err := m.notifier.Delete(*m.startedID); err != nil {
			m.logger.Error("failed to retract start message", "error", err)
		}
		m.startedID = nil
	}

	if m.startedAt.IsZero() {
		return
	}
	duration := m.now().Sub(m.startedAt)
	m.startedAt = time.Time{}

	if duration < minCycleDuration {
		m.logger.Warn("cycle shorter than 10 minutes, not announcing", "duration", duration)
		return
	}

	m.logger.Info(m.DoneText)
	if _, err := m.notifier.Send(m.DoneText); err != nil {
		m.logger.Error("failed to announce cycle end", "error", err)
	}
}
