// ABOUTME: Tests for the SQLite-backed key/value engine
// ABOUTME: Covers typed entries, type tags, string probing, limits, and persistence

package nvs

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := Open(filepath.Join(t.TempDir(), "nvs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		engine.Close()
	})
	return engine
}

func newTestNamespace(t *testing.T) *Namespace {
	t.Helper()
	ns, err := newTestEngine(t).OpenNamespace("STORAGE")
	require.NoError(t, err)
	return ns
}

func TestEngine_Int32RoundTrip(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	require.NoError(t, ns.SetInt32(ctx, "offset", -42))

	got, err := ns.GetInt32(ctx, "offset")
	require.NoError(t, err)
	assert.Equal(t, int32(-42), got)
}

func TestEngine_Uint32RoundTrip(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	require.NoError(t, ns.SetUint32(ctx, "count", 0xFFFFFFFF))

	got, err := ns.GetUint32(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), got)
}

func TestEngine_NotFound(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	_, err := ns.GetInt32(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ns.GetString(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_TypeMismatch(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	require.NoError(t, ns.SetInt32(ctx, "mode", 3))

	_, err := ns.GetUint32(ctx, "mode")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = ns.GetString(ctx, "mode", make([]byte, 8))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEngine_OverwriteChangesType(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	require.NoError(t, ns.SetInt32(ctx, "apn", 1))
	require.NoError(t, ns.SetString(ctx, "apn", "internet"))

	buf := make([]byte, 16)
	n, err := ns.GetString(ctx, "apn", buf)
	require.NoError(t, err)
	assert.Equal(t, "internet", string(buf[:n-1]))

	_, err = ns.GetInt32(ctx, "apn")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEngine_GetStringReportsLength(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	value := strings.Repeat("x", 100)
	require.NoError(t, ns.SetString(ctx, "long", value))

	// nil buffer reports the length only
	n, err := ns.GetString(ctx, "long", nil)
	require.NoError(t, err)
	assert.Equal(t, 101, n)

	// short buffer reports the exact length needed
	n, err = ns.GetString(ctx, "long", make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidLength)
	assert.Equal(t, 101, n)

	buf := make([]byte, n)
	n, err = ns.GetString(ctx, "long", buf)
	require.NoError(t, err)
	assert.Equal(t, value, string(buf[:n-1]))
	assert.Equal(t, byte(0), buf[n-1])
}

func TestEngine_NameLimits(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.OpenNamespace("")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = engine.OpenNamespace("a-namespace-too-long")
	assert.ErrorIs(t, err, ErrInvalidName)

	ns, err := engine.OpenNamespace("STORAGE")
	require.NoError(t, err)

	assert.ErrorIs(t, ns.SetUint32(ctx, "sixteen-chars-xx", 1), ErrInvalidName)
	assert.NoError(t, ns.SetUint32(ctx, "fifteen-chars-x", 1))
}

func TestEngine_StringLimit(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	assert.NoError(t, ns.SetString(ctx, "max", strings.Repeat("a", MaxStringLength)))
	assert.ErrorIs(t, ns.SetString(ctx, "over", strings.Repeat("a", MaxStringLength+1)), ErrValueTooLong)
}

func TestEngine_NamespacesAreIsolated(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	a, err := engine.OpenNamespace("a")
	require.NoError(t, err)
	b, err := engine.OpenNamespace("b")
	require.NoError(t, err)

	require.NoError(t, a.SetUint32(ctx, "k", 1))

	_, err = b.GetUint32(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_EraseKeyAndAll(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	require.NoError(t, ns.SetUint32(ctx, "a", 1))
	require.NoError(t, ns.SetUint32(ctx, "b", 2))

	require.NoError(t, ns.EraseKey(ctx, "a"))
	assert.ErrorIs(t, ns.EraseKey(ctx, "a"), ErrNotFound)

	require.NoError(t, ns.EraseAll(ctx))
	_, err := ns.GetUint32(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_ClosedNamespace(t *testing.T) {
	ns := newTestNamespace(t)
	ctx := context.Background()

	require.NoError(t, ns.Close())
	assert.ErrorIs(t, ns.SetUint32(ctx, "k", 1), ErrClosed)
	_, err := ns.GetUint32(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngine_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "nvs.db")
	ctx := context.Background()

	engine, err := Open(path)
	require.NoError(t, err)
	ns, err := engine.OpenNamespace("STORAGE")
	require.NoError(t, err)
	require.NoError(t, ns.SetString(ctx, "apn", "internet"))
	require.NoError(t, engine.Close())

	engine, err = Open(path)
	require.NoError(t, err)
	defer engine.Close()
	ns, err = engine.OpenNamespace("STORAGE")
	require.NoError(t, err)

	n, err := ns.GetString(ctx, "apn", nil)
	require.NoError(t, err)
	assert.Equal(t, len("internet")+1, n)
}
