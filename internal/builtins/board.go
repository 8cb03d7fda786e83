// ABOUTME: Board pack with pin commands: pinout, pinin and pinoff
// ABOUTME: Malformed numbers fail with INVALID_ARG before any GPIO call

package builtins

import (
	"context"
	"io"

	"github.com/2389/modemctl/internal/gpio"
)

// BoardPack creates the pin control commands.
func BoardPack(ctrl gpio.Controller) *Pack {
	b := &boardHandlers{ctrl: ctrl}
	return &Pack{
		ID: "builtin:board",
		Commands: []Command{
			{Name: "pinout", Description: "Configure pin as output: pinout <pin> <0|1>", Handler: b.PinOut},
			{Name: "pinin", Description: "Configure pin as input and print its level: pinin <pin>", Handler: b.PinIn},
			{Name: "pinoff", Description: "Deconfigure pin: pinoff <pin>", Handler: b.PinOff},
		},
	}
}

type boardHandlers struct {
	ctrl gpio.Controller
}

// PinOut drives a pin. Any nonzero value means high.
func (b *boardHandlers) PinOut(_ context.Context, w io.Writer, args []string) error {
	if err := argCount(args, 3); err != nil {
		return err
	}
	pin, err := parseInt("pin", args[1])
	if err != nil {
		return err
	}
	value, err := parseInt("value", args[2])
	if err != nil {
		return err
	}

	if err := b.ctrl.ConfigureOutput(pin); err != nil {
		return gpioFailure(err)
	}
	level := gpio.LevelOf(value)
	if err := b.ctrl.Set(pin, level); err != nil {
		return gpioFailure(err)
	}
	printf(w, "GPIO #%d = %s\n", pin, level)
	return nil
}

// PinIn reads a pin after switching it to input.
func (b *boardHandlers) PinIn(_ context.Context, w io.Writer, args []string) error {
	if err := argCount(args, 2); err != nil {
		return err
	}
	pin, err := parseInt("pin", args[1])
	if err != nil {
		return err
	}

	if err := b.ctrl.ConfigureInput(pin); err != nil {
		return gpioFailure(err)
	}
	level, err := b.ctrl.Get(pin)
	if err != nil {
		return gpioFailure(err)
	}
	printf(w, "GPIO #%d = %s\n", pin, level)
	return nil
}

func (b *boardHandlers) PinOff(_ context.Context, _ io.Writer, args []string) error {
	if err := argCount(args, 2); err != nil {
		return err
	}
	pin, err := parseInt("pin", args[1])
	if err != nil {
		return err
	}
	if err := b.ctrl.Disable(pin); err != nil {
		return gpioFailure(err)
	}
	return nil
}
