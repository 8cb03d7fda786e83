// ABOUTME: The serve subcommand: modem bring-up, line receiver and console
// ABOUTME: Hardware failures park the process until a signal arrives, then exit non-zero

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/2389/modemctl/internal/builtins"
	"github.com/2389/modemctl/internal/config"
	"github.com/2389/modemctl/internal/console"
	"github.com/2389/modemctl/internal/gpio"
	"github.com/2389/modemctl/internal/modem"
	"github.com/2389/modemctl/internal/nvs"
	"github.com/2389/modemctl/internal/storage"
)

// errConsoleClosed ends serve when the operator leaves an interactive console.
var errConsoleClosed = errors.New("console closed")

func runServe(parent context.Context) error {
	configPath := getConfigPath()

	ctx, stop := context.WithCancelCause(parent)
	defer stop(nil)

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	out := &switchWriter{w: os.Stdout}
	logger := setupLogger(cfg.Logging, out)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Serial:    %s @ %d\n", cfg.Serial.Device, modem.BaudRate)
	green.Print("    ▶ ")
	fmt.Printf("GPIO:      power=%d reset=%d key=%d ", cfg.GPIO.Power, cfg.GPIO.Reset, cfg.GPIO.PowerKey)
	switch cfg.GPIO.Driver {
	case "fake":
		yellow.Print("[fake]")
	case "sysfs":
		gray.Printf("(%s)", cfg.GPIO.SysfsRoot)
	default:
		gray.Printf("(%s)", cfg.GPIO.Chip)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s [%s]\n", cfg.Storage.Path, cfg.Storage.Namespace)
	fmt.Println()

	logger.Info("starting modemctl",
		"config", configPath,
		"device", cfg.Serial.Device,
		"gpio_driver", cfg.GPIO.Driver,
	)

	ctrl := newController(cfg.GPIO, logger)

	sub := nvs.NewSubsystem(cfg.Storage.Path, logger)
	store := storage.Open(sub, cfg.Storage.Namespace, logger)
	if !store.Valid() {
		logger.Warn("settings unavailable, continuing with defaults", "path", cfg.Storage.Path)
	}
	recordBoot(ctx, store, logger)

	registry := console.NewRegistry(logger)
	m := modem.New(modem.Config{
		Device: cfg.Serial.Device,
		Pins: modem.Pins{
			Power:    cfg.GPIO.Power,
			Reset:    cfg.GPIO.Reset,
			PowerKey: cfg.GPIO.PowerKey,
		},
		BufferSize:   cfg.Receiver.BufferSize,
		PollInterval: cfg.Receiver.PollInterval,
	}, ctrl, modem.PrintHandler{W: out}, logger)

	var restoreTerm func() error
	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			if restoreTerm != nil {
				if err := restoreTerm(); err != nil {
					logger.Warn("restoring terminal", "error", err)
				}
			}
			if err := m.Close(); err != nil {
				logger.Warn("closing modem line", "error", err)
			}
			if c, ok := ctrl.(io.Closer); ok {
				if err := c.Close(); err != nil {
					logger.Warn("releasing gpio lines", "error", err)
				}
			}
			if err := store.Close(); err != nil {
				logger.Warn("closing settings", "error", err)
			}
			if err := sub.Close(); err != nil {
				logger.Warn("closing storage", "error", err)
			}
		})
	}
	defer shutdown()

	if err := registry.Register("AT", "Send an AT command to the modem", m.ATHandler()); err != nil {
		return fmt.Errorf("registering AT command: %w", err)
	}
	if err := builtins.Register(registry,
		builtins.BoardPack(ctrl),
		builtins.SystemPack(exitOnRebootFailure(builtins.ExecSelf(shutdown), stop, logger)),
		builtins.StoragePack(store),
	); err != nil {
		return fmt.Errorf("registering builtins: %w", err)
	}

	if err := m.Start(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info("shutdown during bring-up")
			return nil
		}
		return halt(ctx, logger, err)
	}
	logger.Info("modem ready", "state", m.State())

	var consoleRun func(context.Context) error
	if cfg.Console.Enabled {
		loop, interactive, err := newConsole(cfg.Console, registry, logger)
		if err != nil {
			return err
		}
		if interactive != nil {
			restoreTerm = interactive
			out.Set(loop.Output())
		}
		consoleRun = func(ctx context.Context) error {
			if err := loop.Run(ctx); err != nil {
				return err
			}
			if interactive != nil {
				return errConsoleClosed
			}
			// Input ended on a pipe; keep receiving.
			return nil
		}
	}

	err = supervise(ctx, m.Run, consoleRun)
	out.Set(os.Stdout)
	if err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// supervise runs the receiver and the optional console until one of them
// ends the session. A failed reboot outranks whatever the tasks returned
// once their resources were torn down under them.
func supervise(ctx context.Context, receive, consoleRun func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return receive(gctx)
	})
	if consoleRun != nil {
		g.Go(func() error {
			return consoleRun(gctx)
		})
	}

	err := g.Wait()
	if cause := context.Cause(ctx); errors.Is(cause, builtins.ErrRebootFailed) {
		return cause
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errConsoleClosed) {
		return nil
	}
	return err
}

// exitOnRebootFailure cancels the session with the reboot error when the
// process was shut down but not replaced.
func exitOnRebootFailure(reboot builtins.Rebooter, stop context.CancelCauseFunc, logger *slog.Logger) builtins.Rebooter {
	return func() error {
		err := reboot()
		if errors.Is(err, builtins.ErrRebootFailed) {
			logger.Error("reboot failed, exiting", "error", err)
			stop(err)
		}
		return err
	}
}

// newController returns the pin driver named in the config.
func newController(cfg config.GPIOConfig, logger *slog.Logger) gpio.Controller {
	switch cfg.Driver {
	case "fake":
		return gpio.NewFake(cfg.MaxPin, logger)
	case "sysfs":
		return gpio.NewSysfs(cfg.SysfsRoot, cfg.MaxPin, logger)
	default:
		return gpio.NewCdev(cfg.Chip, cfg.MaxPin, logger)
	}
}

// newConsole builds a line-editing console when stdin is a terminal and a
// plain one otherwise. The restore function is nil for the plain console.
func newConsole(cfg config.ConsoleConfig, registry *console.Registry, logger *slog.Logger) (*console.Loop, func() error, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return console.NewLoop(registry, os.Stdin, os.Stdout, cfg.Prompt, logger), nil, nil
	}
	rw := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	loop, restore, err := console.NewTerminalLoop(registry, fd, rw, cfg.Prompt, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("starting console: %w", err)
	}
	return loop, restore, nil
}

// recordBoot bumps the persisted boot counter and stores a fresh boot id.
func recordBoot(ctx context.Context, store *storage.Store, logger *slog.Logger) {
	count := store.GetUint32(ctx, "boot-count", 0) + 1
	if err := store.SetUint32(ctx, "boot-count", count); err != nil {
		logger.Warn("recording boot count", "error", err)
	}
	id := uuid.NewString()
	if err := store.SetString(ctx, "boot-id", id); err != nil {
		logger.Warn("recording boot id", "error", err)
	}
	logger.Info("boot", "count", count, "id", id)
}

// halt reports a hardware failure and waits for a signal. The modem is
// left as the failed step found it; only a power cycle retries bring-up.
func halt(ctx context.Context, logger *slog.Logger, cause error) error {
	var step *modem.StepError
	if errors.As(cause, &step) {
		logger.Error("modem bring-up failed", "state", step.State, "op", step.Op, "pin", step.Pin, "error", step.Err)
	} else {
		logger.Error("modem bring-up failed", "error", cause)
	}

	red := color.New(color.FgRed, color.Bold)
	red.Println("    ✖ halted: power cycle the board to retry")

	<-ctx.Done()
	return fmt.Errorf("halted: %w", cause)
}
