// Package nvs provides the non-volatile storage subsystem: a typed
// key/value engine and the reference-counted guard around it.
//
// # Engine
//
// The engine stands in for a flash partition. It is a single SQLite file
// (modernc.org/sqlite, WAL mode) holding namespaced entries, each tagged
// with its type:
//
//   - i32: signed 32-bit integer
//   - u32: unsigned 32-bit integer
//   - str: string, at most 4000 bytes
//
// Keys and namespace names are 1 to 15 bytes. Reading a key under the
// wrong type returns ErrTypeMismatch; missing keys return ErrNotFound.
//
// GetString follows a sizing protocol: the caller passes a buffer and
// receives the required length (value plus one terminator byte). If the
// buffer is too small the call returns ErrInvalidLength together with the
// exact length needed, so a second call always succeeds.
//
// # Subsystem
//
// Subsystem opens the engine lazily on first Acquire and counts holders
// with RefCount:
//
//	0   uninitialized
//	1   initialized, idle
//	n>1 initialized, n-1 holders
//
// The counter is only changed by compare-and-swap loops. Acquire returns a
// Handle; Handle.Release gives the claim back. Close at shutdown panics if
// any holder is still outstanding.
//
// If the file exists but is not a database, the subsystem erases it and
// starts over with an empty engine.
//
// # Usage
//
//	sub := nvs.NewSubsystem("/var/lib/modemctl/nvs.db", logger)
//	defer sub.Close()
//
//	h, err := sub.Acquire()
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
//
//	ns, err := h.Engine().OpenNamespace("STORAGE")
package nvs
