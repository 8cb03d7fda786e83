// ABOUTME: Process-wide storage subsystem with lazy one-time engine initialization
// ABOUTME: Hands out scoped Handles; teardown asserts that every holder has released

package nvs

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrNotInitialized is returned by Acquire when the engine is unavailable.
var ErrNotInitialized = errors.New("storage subsystem not initialized")

// Subsystem owns the engine for the lifetime of the process.
//
// It is constructed once at startup and passed to every component that
// needs storage. The engine is opened on the first Acquire; a failed
// initialization is sticky, matching hardware that must be re-powered
// to retry.
type Subsystem struct {
	path   string
	logger *slog.Logger
	refs   RefCount

	initOnce sync.Once
	initErr  error
	engine   *Engine
}

// NewSubsystem prepares a subsystem for the engine file at path.
// Nothing is opened until the first Acquire.
func NewSubsystem(path string, logger *slog.Logger) *Subsystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subsystem{
		path:   path,
		logger: logger.With("component", "nvs"),
	}
}

func (s *Subsystem) init() {
	engine, err := Open(s.path)
	if errors.Is(err, ErrCorrupt) {
		s.logger.Error("storage corrupt, erasing", "path", s.path, "error", err)
		if eraseErr := Erase(s.path); eraseErr != nil {
			s.logger.Error("erase failed", "path", s.path, "error", eraseErr)
			s.initErr = fmt.Errorf("%w: %w", ErrNotInitialized, eraseErr)
			return
		}
		engine, err = Open(s.path)
	}
	if err != nil {
		s.logger.Error("storage init failed", "path", s.path, "error", err)
		s.initErr = fmt.Errorf("%w: %w", ErrNotInitialized, err)
		return
	}

	s.engine = engine
	s.refs.Init()
	s.logger.Info("storage initialized", "path", s.path)
}

// Acquire returns a Handle on the engine, initializing it on first use.
func (s *Subsystem) Acquire() (*Handle, error) {
	s.initOnce.Do(s.init)
	if s.initErr != nil {
		return nil, s.initErr
	}
	if !s.refs.Acquire() {
		s.logger.Error("acquire on uninitialized storage")
		return nil, ErrNotInitialized
	}
	return &Handle{sub: s}, nil
}

// Refs returns the raw reference counter value.
func (s *Subsystem) Refs() uint64 {
	return s.refs.Load()
}

// Close tears the engine down. Every Handle must have been released:
// outstanding holders at this point are a programming error and panic.
func (s *Subsystem) Close() error {
	count := s.refs.Load()
	if count == 0 {
		return nil
	}
	if count > 1 || !s.refs.Retire() {
		s.logger.Error("storage closed with outstanding holders", "holders", s.refs.Holders())
		panic(fmt.Sprintf("nvs: close with %d outstanding holders", s.refs.Holders()))
	}

	if err := s.engine.Close(); err != nil {
		s.logger.Error("storage deinit failed", "error", err)
		return fmt.Errorf("closing engine: %w", err)
	}
	s.logger.Info("storage closed")
	return nil
}

// Handle is one holder's claim on the subsystem.
// Release it exactly once when done; extra calls are ignored.
type Handle struct {
	sub      *Subsystem
	released atomic.Bool
}

// Engine returns the engine the handle keeps alive.
func (h *Handle) Engine() *Engine {
	return h.sub.engine
}

// Release drops the claim.
func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.sub.refs.Release()
	}
}
