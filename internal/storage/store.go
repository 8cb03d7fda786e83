// ABOUTME: Typed configuration store over the nvs subsystem with default-value fallback
// ABOUTME: Never fails boot: an unavailable store returns defaults and rejects writes

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/2389/modemctl/internal/nvs"
)

// DefaultNamespace is the namespace used for device configuration.
const DefaultNamespace = "STORAGE"

// floatSuffix is appended to float keys; floats live in a u32 slot.
const floatSuffix = "-float"

// firstReadSize is the first buffer size tried by GetString.
const firstReadSize = 64

// ErrUnavailable is returned by setters when the store could not be opened.
var ErrUnavailable = errors.New("storage unavailable")

// backend is the slice of nvs.Namespace the store depends on.
type backend interface {
	GetInt32(ctx context.Context, key string) (int32, error)
	SetInt32(ctx context.Context, key string, v int32) error
	GetUint32(ctx context.Context, key string) (uint32, error)
	SetUint32(ctx context.Context, key string, v uint32) error
	GetString(ctx context.Context, key string, buf []byte) (int, error)
	SetString(ctx context.Context, key, v string) error
	EraseKey(ctx context.Context, key string) error
	EraseAll(ctx context.Context) error
	Close() error
}

// Store provides typed get/set over one namespace.
type Store struct {
	valid  bool
	handle *nvs.Handle
	ns     backend
	logger *slog.Logger
}

// Open acquires the subsystem and opens namespace. It never fails: if either
// step goes wrong the store is returned in an invalid state and every
// accessor falls back to defaults.
func Open(sub *nvs.Subsystem, namespace string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		logger: logger.With("component", "storage", "namespace", namespace),
	}

	h, err := sub.Acquire()
	if err != nil {
		s.logger.Error("storage acquire failed", "error", err)
		return s
	}

	ns, err := h.Engine().OpenNamespace(namespace)
	if err != nil {
		h.Release()
		s.logger.Error("namespace open failed", "error", err)
		return s
	}

	s.valid = true
	s.handle = h
	s.ns = ns
	return s
}

// newWithBackend builds a valid store directly on a backend.
func newWithBackend(b backend, logger *slog.Logger) *Store {
	return &Store{
		valid:  true,
		ns:     b,
		logger: logger.With("component", "storage"),
	}
}

// Valid reports whether the store is backed by an open namespace.
func (s *Store) Valid() bool {
	return s.valid
}

// Close closes the namespace and releases the subsystem handle.
func (s *Store) Close() error {
	if !s.valid {
		return nil
	}
	s.valid = false
	err := s.ns.Close()
	if s.handle != nil {
		s.handle.Release()
	}
	return err
}

// fallback decides how a failed read is reported. Missing keys are expected.
func (s *Store) fallback(name string, err error) {
	if errors.Is(err, nvs.ErrNotFound) {
		s.logger.Debug("storage key not set, using default", "key", name)
		return
	}
	s.logger.Warn("storage read failed, using default", "key", name, "error", err)
}

func (s *Store) unavailable(name string) {
	s.logger.Warn("storage not initialized, using default", "key", name)
}

func (s *Store) writeFailed(name string, err error) error {
	s.logger.Warn("storage write failed", "key", name, "error", err)
	return fmt.Errorf("storing %q: %w", name, err)
}

// GetInt32 returns the signed value stored under name, or def.
func (s *Store) GetInt32(ctx context.Context, name string, def int32) int32 {
	if !s.valid {
		s.unavailable(name)
		return def
	}
	v, err := s.ns.GetInt32(ctx, name)
	if err != nil {
		s.fallback(name, err)
		return def
	}
	return v
}

// SetInt32 stores a signed value under name.
func (s *Store) SetInt32(ctx context.Context, name string, v int32) error {
	if !s.valid {
		s.unavailable(name)
		return ErrUnavailable
	}
	s.logger.Debug("save int", "key", name)
	if err := s.ns.SetInt32(ctx, name, v); err != nil {
		return s.writeFailed(name, err)
	}
	return nil
}

// GetUint32 returns the unsigned value stored under name, or def.
func (s *Store) GetUint32(ctx context.Context, name string, def uint32) uint32 {
	if !s.valid {
		s.unavailable(name)
		return def
	}
	v, err := s.ns.GetUint32(ctx, name)
	if err != nil {
		s.fallback(name, err)
		return def
	}
	return v
}

// SetUint32 stores an unsigned value under name.
func (s *Store) SetUint32(ctx context.Context, name string, v uint32) error {
	if !s.valid {
		s.unavailable(name)
		return ErrUnavailable
	}
	s.logger.Debug("save uint", "key", name)
	if err := s.ns.SetUint32(ctx, name, v); err != nil {
		return s.writeFailed(name, err)
	}
	return nil
}

// FloatKey returns the engine key holding the float stored under name.
func FloatKey(name string) string {
	return name + floatSuffix
}

// GetFloat32 returns the float stored under name, or def.
// The value is read bit-exact from the u32 slot FloatKey(name).
func (s *Store) GetFloat32(ctx context.Context, name string, def float32) float32 {
	if !s.valid {
		s.unavailable(name)
		return def
	}
	bits, err := s.ns.GetUint32(ctx, FloatKey(name))
	if err != nil {
		s.fallback(FloatKey(name), err)
		return def
	}
	return math.Float32frombits(bits)
}

// SetFloat32 stores v's IEEE-754 bit pattern under FloatKey(name).
func (s *Store) SetFloat32(ctx context.Context, name string, v float32) error {
	if !s.valid {
		s.unavailable(name)
		return ErrUnavailable
	}
	s.logger.Debug("save float", "key", FloatKey(name))
	if err := s.ns.SetUint32(ctx, FloatKey(name), math.Float32bits(v)); err != nil {
		return s.writeFailed(FloatKey(name), err)
	}
	return nil
}

// GetString returns the string stored under name, or def.
//
// The first read uses a 64-byte buffer; if the engine reports it too small,
// the buffer is resized to the reported length and read once more.
func (s *Store) GetString(ctx context.Context, name string, def string) string {
	if !s.valid {
		s.unavailable(name)
		return def
	}

	buf := make([]byte, firstReadSize)
	for attempt := 0; attempt < 2; attempt++ {
		n, err := s.ns.GetString(ctx, name, buf)
		switch {
		case err == nil:
			return string(buf[:n-1])
		case errors.Is(err, nvs.ErrInvalidLength) && attempt == 0:
			buf = make([]byte, n)
		default:
			s.fallback(name, err)
			return def
		}
	}
	return def
}

// SetString stores a string under name.
func (s *Store) SetString(ctx context.Context, name, v string) error {
	if !s.valid {
		s.unavailable(name)
		return ErrUnavailable
	}
	s.logger.Debug("save string", "key", name)
	if err := s.ns.SetString(ctx, name, v); err != nil {
		return s.writeFailed(name, err)
	}
	return nil
}

// Erase removes name and the float slot derived from it. It returns
// nvs.ErrNotFound only when neither was stored.
func (s *Store) Erase(ctx context.Context, name string) error {
	if !s.valid {
		s.unavailable(name)
		return ErrUnavailable
	}
	found := false
	for _, key := range []string{name, FloatKey(name)} {
		err := s.ns.EraseKey(ctx, key)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, nvs.ErrNotFound):
		default:
			return s.writeFailed(key, err)
		}
	}
	if !found {
		return fmt.Errorf("erasing %q: %w", name, nvs.ErrNotFound)
	}
	s.logger.Debug("erase", "key", name)
	return nil
}

// EraseAll removes every value in the namespace.
func (s *Store) EraseAll(ctx context.Context) error {
	if !s.valid {
		s.unavailable("*")
		return ErrUnavailable
	}
	if err := s.ns.EraseAll(ctx); err != nil {
		return s.writeFailed("*", err)
	}
	s.logger.Info("namespace erased")
	return nil
}
