// ABOUTME: Power-up state machine that toggles the modem's power, reset and power-key lines
// ABOUTME: Runs once with fixed delays and reports the failing step on any GPIO error

package modem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/modemctl/internal/gpio"
)

// ErrAlreadyStarted is returned by a second BringUp on the same sequencer.
var ErrAlreadyStarted = errors.New("power sequence already run")

// State is a point in the power-up sequence. States only move forward.
type State int

const (
	Unpowered State = iota
	PowerApplied
	ResetAsserted
	ResetReleased
	KeyPulsing
	KeyReleased
	Ready
)

func (s State) String() string {
	switch s {
	case Unpowered:
		return "unpowered"
	case PowerApplied:
		return "power_applied"
	case ResetAsserted:
		return "reset_asserted"
	case ResetReleased:
		return "reset_released"
	case KeyPulsing:
		return "key_pulsing"
	case KeyReleased:
		return "key_released"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Pins names the three control lines wired to the modem.
type Pins struct {
	Power    int
	Reset    int
	PowerKey int
}

// StepError reports which line operation failed and where the sequence
// stopped. There is no recovery: the board must be re-powered.
type StepError struct {
	State State
	Op    string
	Pin   int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("power sequence stopped at %s: %s pin %d: %v", e.State, e.Op, e.Pin, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Sleeper waits for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PowerSequencer drives the modem from unpowered to ready.
type PowerSequencer struct {
	ctrl    gpio.Controller
	pins    Pins
	sleeper Sleeper
	state   State
	logger  *slog.Logger
}

// NewPowerSequencer creates a sequencer. A nil sleeper uses real time.
func NewPowerSequencer(ctrl gpio.Controller, pins Pins, sleeper Sleeper, logger *slog.Logger) *PowerSequencer {
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PowerSequencer{
		ctrl:    ctrl,
		pins:    pins,
		sleeper: sleeper,
		state:   Unpowered,
		logger:  logger.With("component", "modem"),
	}
}

// State returns how far the sequence got.
func (p *PowerSequencer) State() State {
	return p.state
}

// BringUp configures the three lines as outputs and runs the datasheet
// power-on sequence:
//
//	power=1 reset=0 key=1, wait ResetHold
//	reset=1 key=0, wait KeyPress
//	key=1, wait KeyRelease
//
// GPIO failures are returned as *StepError. Cancelling ctx abandons the
// sequence during a wait.
func (p *PowerSequencer) BringUp(ctx context.Context) error {
	if p.state != Unpowered {
		return ErrAlreadyStarted
	}

	for _, pin := range []int{p.pins.Power, p.pins.Reset, p.pins.PowerKey} {
		if err := p.ctrl.ConfigureOutput(pin); err != nil {
			return &StepError{State: p.state, Op: "configure", Pin: pin, Err: err}
		}
	}

	p.logger.Info("chip init")
	if err := p.set(p.pins.Power, gpio.High, PowerApplied); err != nil {
		return err
	}
	if err := p.set(p.pins.Reset, gpio.Low, ResetAsserted); err != nil {
		return err
	}
	if err := p.set(p.pins.PowerKey, gpio.High, ResetAsserted); err != nil {
		return err
	}
	if err := p.sleeper.Sleep(ctx, ResetHold); err != nil {
		return err
	}

	if err := p.set(p.pins.Reset, gpio.High, ResetReleased); err != nil {
		return err
	}
	if err := p.set(p.pins.PowerKey, gpio.Low, KeyPulsing); err != nil {
		return err
	}
	if err := p.sleeper.Sleep(ctx, KeyPress); err != nil {
		return err
	}

	if err := p.set(p.pins.PowerKey, gpio.High, KeyReleased); err != nil {
		return err
	}
	if err := p.sleeper.Sleep(ctx, KeyRelease); err != nil {
		return err
	}

	p.state = Ready
	p.logger.Info("modem powered", "state", p.state.String())
	return nil
}

// set drives pin and advances to next on success.
func (p *PowerSequencer) set(pin int, level gpio.Level, next State) error {
	if err := p.ctrl.Set(pin, level); err != nil {
		return &StepError{State: p.state, Op: "set " + level.String(), Pin: pin, Err: err}
	}
	p.logger.Debug("line set", "pin", pin, "level", int(level), "state", next.String())
	p.state = next
	return nil
}
