// Package storage provides typed configuration values on top of the nvs
// subsystem.
//
// A Store is opened once per namespace and always returned, even when the
// subsystem is unavailable: configuration absence must never block boot.
// Reads on an unavailable store return the caller's default; writes return
// ErrUnavailable.
//
// Floats have no native engine type. They are stored as their IEEE-754 bit
// pattern in a u32 entry under "<name>-float".
package storage
