// Package cover derives the target position of an exterior cover from the
// weather schedule and the live radar flag, and dispatches idempotent
// commands to the configured device backends.
package cover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hausctl/homecontroller/schedule"
)

// State is the engine's view of the cover position.
type State string

const (
	StateUnknown State = "unknown"
	StateOpen    State = "open"
	StateClosed  State = "closed"
)

// DeviceStatus is the position reported by a backend that can be queried.
type DeviceStatus string

const (
	DeviceOpen    DeviceStatus = "open"
	DeviceClosed  DeviceStatus = "closed"
	DeviceMoving  DeviceStatus = "moving"
	DeviceUnknown DeviceStatus = "unknown"
)

// Backend moves the physical cover. Implementations are independent and
// best-effort: a failing backend must not prevent commands to the others.
type Backend interface {
	Name() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

// StatusReporter is implemented by backends whose position can be read back.
// A device that is currently moving is not commanded.
type StatusReporter interface {
	Status(ctx context.Context) (DeviceStatus, error)
}

// Notifier announces state transitions to a human. Delivery is best-effort.
type Notifier interface {
	Send(text string) (int, error)
}

// WindowCloser receives the one-directional cover-to-window coupling.
type WindowCloser interface {
	RequestClose(now time.Time) bool
}

// ErrScheduleExhausted is returned when no schedule entry covers "now or
// later"; the engine refuses to act on an unknown forecast.
var ErrScheduleExhausted = errors.New("no schedule entry for now or later")

// Reason tags recorded by the engine itself, in addition to the forecast
// reasons carried by the schedule.
const (
	ReasonShortLived schedule.Reason = "short-lived"
	ReasonRadarRain  schedule.Reason = "unexpected precipitation"
)

// Config for the cover engine.
type Config struct {
	// CloseOn selects the polarity: the classification during which the
	// cover should be closed. A sunscreen closes on good weather, a
	// protective shutter on bad weather. Deliberately not defaulted.
	CloseOn schedule.Classification

	Backends []Backend
	Notifier Notifier
	Window   WindowCloser // optional

	Schedule *schedule.Holder
	Raining  func() bool

	ClosedText string // notification when the cover closes
	OpenedText string // notification when the cover opens
}

// Engine owns the cover's actuator state. All decisions run in Apply, which
// is invoked once per minute; no other code mutates the state.
type Engine struct {
	mu     sync.Mutex
	state  State
	reason schedule.Reason

	config Config
	logger *slog.Logger
}

func New(config Config) *Engine {
	return &Engine{
		state:  StateUnknown,
		config: config,
		logger: slog.Default().With("engine", "cover"),
	}
}

// Run invokes Apply once per minute until the context is cancelled. Errors
// are logged here and never escape to the scheduler.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if err := e.Apply(ctx, t); err != nil {
				e.logger.Error("apply cycle failed", "error", err)
			}
		}
	}
}

// Apply evaluates the decision rules for the given instant and, on an actual
// transition, commands the backends and sends a notification. Any error
// aborts the cycle without mutating the actuator state, so the next minute
// retries from a consistent state.
func (e *Engine) Apply(ctx context.Context, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, following, ok := schedule.At(e.config.Schedule.Snapshot(), now)
	if !ok {
		return ErrScheduleExhausted
	}

	target := StateOpen
	reason := current.Reason
	if current.Classification == e.config.CloseOn {
		target = StateClosed
	}

	// Anti-flutter: a fresh request to close is only honoured when both of
	// the next two slots sustain it, otherwise the movement would reverse
	// again shortly.
	if target == StateClosed && e.state != StateClosed && !sustained(following, e.config.CloseOn) {
		target = StateOpen
		reason = ReasonShortLived
	}

	// The forecast might be wrong or outdated. Radar rain always wins.
	if e.config.Raining != nil && e.config.Raining() {
		target = StateOpen
		reason = ReasonRadarRain
	}

	if target == e.state {
		return nil
	}

	issued := e.dispatch(ctx, target)
	if issued == 0 {
		e.logger.Warn("no backend accepted the command, keeping state", "target", target)
		return nil
	}

	previous := e.state
	e.state = target
	e.reason = reason
	e.logger.Info("cover moved", "from", previous, "to", target, "reason", reason)

	// The very first transition out of unknown is applied silently: there is
	// no prior state to announce a change against.
	if previous != StateUnknown && e.config.Notifier != nil {
		text := e.config.OpenedText
		if target == StateClosed {
			text = e.config.ClosedText
		}
		if _, err := e.config.Notifier.Send(fmt.Sprintf("%s (%s)", text, reason)); err != nil {
			e.logger.Error("notification failed", "error", err)
		}
	}

	if e.config.Window != nil && current.Classification == schedule.Bad && current.CloseWindow {
		if e.config.Window.RequestClose(now) {
			e.logger.Info("requested window close", "reason", reason)
		}
	}

	return nil
}

// dispatch commands every backend towards the target state. Each call is
// isolated: failures are logged and do not block the remaining backends.
// Returns the number of backends that accepted the command.
func (e *Engine) dispatch(ctx context.Context, target State) int {
	issued := 0
	for _, backend := range e.config.Backends {
		if reporter, ok := backend.(StatusReporter); ok {
			status, err := reporter.Status(ctx)
			if err != nil {
				e.logger.Error("backend status query failed", "backend", backend.Name(), "error", err)
				continue
			}
			if status == DeviceMoving {
				e.logger.Info("backend is moving, skipping", "backend", backend.Name())
				continue
			}
		}

		var err error
		if target == StateClosed {
			err = backend.Close(ctx)
		} else {
			err = backend.Open(ctx)
		}
		if err != nil {
			e.logger.Error("backend command failed", "backend", backend.Name(), "error", err)
			continue
		}
		issued++
	}
	return issued
}

// sustained reports whether the next two slots keep the closing target.
func sustained(following []schedule.Entry, closeOn schedule.Classification) bool {
	if len(following) < 2 {
		return false
	}
	return following[0].Classification == closeOn && following[1].Classification == closeOn
}

// State returns the current actuator state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Reason returns the reason tag recorded with the last applied decision.
func (e *Engine) Reason() schedule.Reason {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}
