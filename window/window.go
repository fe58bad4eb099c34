// Package window controls a motorised window with a deferred auto-close:
// it can be opened manually for a number of minutes and falls shut on its
// own afterwards. The cover engine may additionally request a close when
// the weather turns, but never while a manual grace period is active.
package window

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
)

// State of the window actuator.
type State string

const (
	StateUnknown State = "unknown"
	StateOpen    State = "open"
	StateClosed  State = "closed"
)

const (
	triggerOpen  = "open"
	triggerClose = "close"
)

// minOpenDuration clamps manual "open for N" requests.
const minOpenDuration = time.Minute

// Backend moves the physical window.
type Backend interface {
	Name() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

// Notifier announces automatic closes. Delivery is best-effort.
type Notifier interface {
	Send(text string) (int, error)
}

// DeferredAction is a close scheduled for a later instant. At most one is
// outstanding; a new one replaces the previous.
type DeferredAction struct {
	DueAt time.Time
	Run   func(ctx context.Context) error
}

// Controller owns the window state machine. The per-minute Tick and the bot
// command handlers are its only entry points.
type Controller struct {
	mu         sync.Mutex
	sm         *stateless.StateMachine
	deferred   *DeferredAction
	indefinite bool // manually opened without a timer

	backend  Backend
	notifier Notifier
	logger   *slog.Logger

	ClosedText string
}

func New(backend Backend, notifier Notifier) *Controller {
	sm := stateless.NewStateMachine(StateUnknown)
	sm.Configure(StateUnknown).
		Permit(triggerOpen, StateOpen).
		Permit(triggerClose, StateClosed)
	sm.Configure(StateOpen).
		Permit(triggerClose, StateClosed).
		PermitReentry(triggerOpen)
	sm.Configure(StateClosed).
		Permit(triggerOpen, StateOpen).
		PermitReentry(triggerClose)

	return &Controller{
		sm:         sm,
		backend:    backend,
		notifier:   notifier,
		logger:     slog.Default().With("engine", "window"),
		ClosedText: "window closed automatically",
	}
}

// OpenFor opens the window and schedules an automatic close after d,
// replacing any outstanding deferred close. Durations below one minute are
// clamped up.
func (c *Controller) OpenFor(ctx context.Context, now time.Time, d time.Duration) error {
	if d < minOpenDuration {
		d = minOpenDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.open(ctx); err != nil {
		return err
	}
	c.indefinite = false
	c.deferred = &DeferredAction{
		DueAt: now.Add(d),
		Run:   c.close,
	}
	c.logger.Info("window opened with timer", "close_at", c.deferred.DueAt)
	return nil
}

// Open opens the window indefinitely, clearing any deferred close.
func (c *Controller) Open(ctx context.Context, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.open(ctx); err != nil {
		return err
	}
	c.deferred = nil
	c.indefinite = true
	c.logger.Info("window opened indefinitely")
	return nil
}

// Close closes the window immediately, clearing any deferred close.
func (c *Controller) Close(ctx context.Context, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.close(ctx); err != nil {
		return err
	}
	c.deferred = nil
	c.indefinite = false
	c.logger.Info("window closed manually")
	return nil
}

// Tick executes an overdue deferred close. Invoked once per minute.
func (c *Controller) Tick(ctx context.Context, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deferred == nil || now.Before(c.deferred.DueAt) {
		return nil
	}

	// the action stays armed until it succeeds, so an unreachable backend is
	// retried on the next tick instead of leaving the window open forever
	if err := c.deferred.Run(ctx); err != nil {
		return fmt.Errorf("deferred close: %w", err)
	}
	c.deferred = nil

	if c.notifier != nil {
		if _, err := c.notifier.Send(c.ClosedText); err != nil {
			c.logger.Error("notification failed", "error", err)
		}
	}
	return nil
}

// RequestClose is the cover-to-window coupling: the cover engine asks for a
// close when the weather turns. It is refused while a manual keep-open grace
// period (a pending timer or an indefinite open) is active, and is a no-op
// when the window is not known to be open. Returns true when a close was
// performed.
func (c *Controller) RequestClose(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indefinite || (c.deferred != nil && now.Before(c.deferred.DueAt)) {
		c.logger.Info("window close refused, manual grace period active")
		return false
	}
	if c.state() != StateOpen {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.close(ctx); err != nil {
		c.logger.Error("requested close failed", "error", err)
		return false
	}
	c.deferred = nil
	return true
}

// open commands the backend and advances the state machine. Callers hold the
// lock.
func (c *Controller) open(ctx context.Context) error {
	if err := c.backend.Open(ctx); err != nil {
		return fmt.Errorf("open window via %s: %w", c.backend.Name(), err)
	}
	return c.sm.Fire(triggerOpen)
}

// close commands the backend and advances the state machine. Callers hold
// the lock.
func (c *Controller) close(ctx context.Context) error {
	if err := c.backend.Close(ctx); err != nil {
		return fmt.Errorf("close window via %s: %w", c.backend.Name(), err)
	}
	return c.sm.Fire(triggerClose)
}

func (c *Controller) state() State {
	return c.sm.MustState().(State)
}

// State returns the current window state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

// Deferred returns the outstanding deferred close, if any.
func (c *Controller) Deferred() *DeferredAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deferred
}

// Run executes Tick once per minute until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if err := c.Tick(ctx, t); err != nil {
				c.logger.Error("tick failed", "error", err)
			}
		}
	}
}
