// ABOUTME: Tests for the serial port over a fake device and a pseudo-terminal pair
// ABOUTME: The pty master plays the modem side of the line

//go:build linux

package serial

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// ptyMaster is the controlling side of a pseudo-terminal pair.
type ptyMaster int

func (m ptyMaster) write(t *testing.T, data string) {
	t.Helper()
	_, err := unix.Write(int(m), []byte(data))
	require.NoError(t, err)
}

// read waits up to timeout for output written to the slave side.
func (m ptyMaster) read(t *testing.T, timeout time.Duration) string {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(m), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	require.NoError(t, err)
	if n == 0 {
		return ""
	}
	buf := make([]byte, 256)
	got, err := unix.Read(int(m), buf)
	require.NoError(t, err)
	return string(buf[:got])
}

// openPTY returns the master side and the slave device path. Tests skip
// when the environment has no /dev/ptmx.
func openPTY(t *testing.T) (ptyMaster, string) {
	t.Helper()
	fd, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("no pseudo-terminal support: %v", err)
	}
	t.Cleanup(func() { unix.Close(fd) })

	require.NoError(t, unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0))
	n, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	require.NoError(t, err)
	return ptyMaster(fd), fmt.Sprintf("/dev/pts/%d", n)
}

func setupPort(t *testing.T) (*TTY, ptyMaster) {
	t.Helper()
	master, path := openPTY(t)
	port, err := Open(path, WithBaudRate(57600))
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	return port, master
}

func TestOpen_UnsupportedBaudRate(t *testing.T) {
	_, err := Open("/dev/null", WithBaudRate(12345))
	assert.ErrorIs(t, err, ErrUnsupportedBaudRate)
}

func TestOpen_MissingDevice(t *testing.T) {
	_, err := Open("/nonexistent/ttyS9")
	assert.Error(t, err)
}

// fakeDevice answers ReadContext from a script of chunks and errors.
// An empty script blocks until the context ends.
type fakeDevice struct {
	reads   []fakeRead
	written []byte
	closed  bool
}

type fakeRead struct {
	data string
	err  error
}

func (d *fakeDevice) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(d.reads) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	r := d.reads[0]
	d.reads = d.reads[1:]
	return copy(p, r.data), r.err
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.written = append(d.written, p...)
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func TestTTY_ReadDeadlineIsNotAnError(t *testing.T) {
	port := newTTY("/dev/fake", &fakeDevice{}, nil)

	start := time.Now()
	n, err := port.Read(make([]byte, 8), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestTTY_ReadPassesDataAndErrors(t *testing.T) {
	dev := &fakeDevice{reads: []fakeRead{
		{data: "OK\r\n"},
		{err: errors.New("framing error")},
		{err: ErrPortClosed},
	}}
	port := newTTY("/dev/fake", dev, nil)
	buf := make([]byte, 16)

	n, err := port.Read(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "OK\r\n", string(buf[:n]))

	_, err = port.Read(buf, time.Second)
	assert.ErrorContains(t, err, "framing error")
	assert.NotErrorIs(t, err, ErrPortClosed)

	_, err = port.Read(buf, time.Second)
	assert.ErrorIs(t, err, ErrPortClosed)
}

func TestTTY_WriteAndClose(t *testing.T) {
	dev := &fakeDevice{}
	port := newTTY("/dev/fake", dev, nil)

	n, err := port.Write([]byte("AT\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "AT\r\n", string(dev.written))

	require.NoError(t, port.Close())
	assert.True(t, dev.closed)
	assert.ErrorIs(t, port.Close(), ErrPortClosed)

	_, err = port.Read(make([]byte, 1), time.Millisecond)
	assert.ErrorIs(t, err, ErrPortClosed)
	_, err = port.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.ErrorIs(t, port.FlushInput(), ErrPortClosed)
}

func TestTTY_ReadsRawBytes(t *testing.T) {
	port, master := setupPort(t)

	master.write(t, "+CSQ: 18,0\r\n")

	buf := make([]byte, 64)
	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 12 && time.Now().Before(deadline) {
		n, err := port.Read(buf, 100*time.Millisecond)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, "+CSQ: 18,0\r\n", string(got), "CR must not be translated")
}

func TestTTY_ReadTimesOut(t *testing.T) {
	port, _ := setupPort(t)

	start := time.Now()
	n, err := port.Read(make([]byte, 16), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestTTY_Write(t *testing.T) {
	port, master := setupPort(t)

	n, err := port.Write([]byte("AT+CSQ\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	assert.Equal(t, "AT+CSQ\r\n", master.read(t, 2*time.Second))
}

func TestTTY_FlushInput(t *testing.T) {
	port, master := setupPort(t)

	master.write(t, "stale garbage")
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, port.FlushInput())

	n, err := port.Read(make([]byte, 32), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTTY_Closed(t *testing.T) {
	_, path := openPTY(t)
	port, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, port.Close())
	assert.ErrorIs(t, port.Close(), ErrPortClosed)

	_, err = port.Read(make([]byte, 1), time.Millisecond)
	assert.ErrorIs(t, err, ErrPortClosed)
	_, err = port.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrPortClosed)
	assert.ErrorIs(t, port.FlushInput(), ErrPortClosed)
}
