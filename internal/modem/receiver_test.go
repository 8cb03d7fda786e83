// ABOUTME: Tests for line framing and receiver resynchronization
// ABOUTME: A scripted port feeds chunks and errors; running out of script closes the port

package modem

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/modemctl/internal/serial"
)

type readStep struct {
	data string
	err  error
}

// scriptPort replays reads in order and reports ErrPortClosed when the
// script is exhausted.
type scriptPort struct {
	mu      sync.Mutex
	steps   []readStep
	flushes int
	reads   []int
}

func newScriptPort(steps ...readStep) *scriptPort {
	return &scriptPort{steps: steps}
}

func (p *scriptPort) Read(buf []byte, _ time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads = append(p.reads, len(buf))
	if len(p.steps) == 0 {
		return 0, serial.ErrPortClosed
	}
	step := p.steps[0]
	if step.err != nil {
		p.steps = p.steps[1:]
		return 0, step.err
	}
	n := copy(buf, step.data)
	if n < len(step.data) {
		p.steps[0].data = step.data[n:]
	} else {
		p.steps = p.steps[1:]
	}
	return n, nil
}

func (p *scriptPort) FlushInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushes++
	return nil
}

// collector records lines and optionally rejects some.
type collector struct {
	mu     sync.Mutex
	lines  []string
	reject map[string]bool
}

func (c *collector) HandleLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	if c.reject[line] {
		return errors.New("unparseable line")
	}
	return nil
}

func (c *collector) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func runScript(t *testing.T, capacity int, h LineHandler, steps ...readStep) (*Receiver, *scriptPort) {
	t.Helper()
	port := newScriptPort(steps...)
	r := NewReceiver(port, h, capacity, time.Millisecond, nil)
	err := r.Run(context.Background())
	require.ErrorIs(t, err, serial.ErrPortClosed)
	return r, port
}

func TestReceiver_SplitAcrossReads(t *testing.T) {
	c := &collector{}
	runScript(t, DefaultBufferSize, c,
		readStep{data: "AT+CSQ\r"},
		readStep{data: "\nOK\r\n"},
	)
	assert.Equal(t, []string{"AT+CSQ", "OK"}, c.got())
}

func TestReceiver_EverySplitPointGivesSameLines(t *testing.T) {
	const stream = "+CSQ: 18,0\r\n\r\nOK\rRING\n+CLIP: \"123\",129\r\n"
	want := []string{"+CSQ: 18,0", "OK", "RING", "+CLIP: \"123\",129"}

	for k := 0; k <= len(stream); k++ {
		c := &collector{}
		runScript(t, DefaultBufferSize, c,
			readStep{data: stream[:k]},
			readStep{data: stream[k:]},
		)
		assert.Equal(t, want, c.got(), "split at %d", k)
	}
}

func TestReceiver_ByteAtATime(t *testing.T) {
	const stream = "AT\r\nOK\r\n"
	steps := make([]readStep, 0, len(stream))
	for i := range len(stream) {
		steps = append(steps, readStep{data: stream[i : i+1]})
	}

	c := &collector{}
	runScript(t, DefaultBufferSize, c, steps...)
	assert.Equal(t, []string{"AT", "OK"}, c.got())
}

func TestReceiver_RandomSplitsGiveSameLines(t *testing.T) {
	const stream = "AT+CSQ\r\r\n+CSQ: 18,0\r\n\r\nOK\r\nRING\n\n+CLIP: \"+15551234\",145,,,\"\",0\r\n" +
		"+CMTI: \"SM\",3\rOK\r\n"
	want := []string{"AT+CSQ", "+CSQ: 18,0", "OK", "RING", "+CLIP: \"+15551234\",145,,,\"\",0", "+CMTI: \"SM\",3", "OK"}

	rng := rand.New(rand.NewPCG(6841, 57600))
	for round := range 200 {
		var steps []readStep
		var cuts []int
		for rest := stream; rest != ""; {
			k := 1 + rng.IntN(min(len(rest), 12))
			steps = append(steps, readStep{data: rest[:k]})
			cuts = append(cuts, k)
			rest = rest[k:]
		}

		c := &collector{}
		runScript(t, DefaultBufferSize, c, steps...)
		require.Equal(t, want, c.got(), "round %d, chunk sizes %v", round, cuts)
	}
}

func TestReceiver_EmptyLinesSkipped(t *testing.T) {
	c := &collector{}
	r, _ := runScript(t, DefaultBufferSize, c, readStep{data: "\r\n\n\r\r\n"})
	assert.Empty(t, c.got())
	assert.Zero(t, r.Stats().Lines)
}

func TestReceiver_ReadErrorDropsPartialLine(t *testing.T) {
	c := &collector{}
	r, port := runScript(t, DefaultBufferSize, c,
		readStep{data: "+CS"},
		readStep{err: errors.New("framing error")},
		readStep{data: "Q: 5\r\nOK\r\n"},
	)

	assert.Equal(t, []string{"Q: 5", "OK"}, c.got())
	assert.Equal(t, 2, port.flushes, "start flush plus error flush")
	assert.Equal(t, uint64(2), r.Stats().Flushes)
}

func TestReceiver_RejectedLineFlushesRest(t *testing.T) {
	c := &collector{reject: map[string]bool{"GARBAGE": true}}
	_, port := runScript(t, DefaultBufferSize, c,
		readStep{data: "GARBAGE\r\nLOST\r\npart"},
		readStep{data: "NEXT\r\n"},
	)

	assert.Equal(t, []string{"GARBAGE", "NEXT"}, c.got())
	assert.Equal(t, 2, port.flushes)
}

func TestReceiver_OverflowDropsWholeLine(t *testing.T) {
	c := &collector{}
	r, port := runScript(t, 8, c,
		readStep{data: "ABCDEFGHIJ\r\n"},
		readStep{data: "OK\r\n"},
	)

	// The first 8 bytes fill the buffer; the rest of that line is dropped
	// up to its terminator and framing resumes on the next line.
	assert.Equal(t, []string{"OK"}, c.got())
	assert.Equal(t, uint64(1), r.Stats().Overflows)
	assert.Equal(t, 2, port.flushes)
}

func TestReceiver_OverflowTailNeverForwarded(t *testing.T) {
	c := &collector{}
	runScript(t, 16, c,
		readStep{data: "+CMT: \"+1555\",,\"2"},
		readStep{data: "4/01\"\r\nOK\r\n"},
	)

	assert.Equal(t, []string{"OK"}, c.got())
}

func TestReceiver_OverflowSpanningSeveralReads(t *testing.T) {
	c := &collector{}
	r, _ := runScript(t, 4, c,
		readStep{data: "RING"},
		readStep{data: "RING"},
		readStep{data: "RI"},
		readStep{data: "NG\nNO CARRIER\r\n"},
	)

	// "NO CARRIER" overflows the 4-byte buffer as well.
	assert.Empty(t, c.got())
	assert.Equal(t, uint64(2), r.Stats().Overflows)
}

func TestReceiver_ReadsNeverExceedRemaining(t *testing.T) {
	c := &collector{}
	_, port := runScript(t, 16, c,
		readStep{data: "abcde"},
		readStep{data: "fgh\r\n"},
	)

	assert.Equal(t, []string{"abcdefgh"}, c.got())
	require.GreaterOrEqual(t, len(port.reads), 2)
	assert.Equal(t, 16, port.reads[0])
	assert.Equal(t, 11, port.reads[1], "carry-over reduces the next read")
}

func TestReceiver_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	idle := &idlePort{}
	r := NewReceiver(idle, &collector{}, 0, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not stop")
	}
}

// idlePort never has data.
type idlePort struct{}

func (idlePort) Read(_ []byte, timeout time.Duration) (int, error) {
	time.Sleep(timeout)
	return 0, nil
}

func (idlePort) FlushInput() error { return nil }

func TestPrintHandler(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, PrintHandler{W: &sb}.HandleLine("RDY"))
	assert.Equal(t, "sim >> RDY\n", sb.String())
}

func TestLineBuffer_Invariant(t *testing.T) {
	b := NewLineBuffer(10)
	assert.Equal(t, 10, b.Remaining())

	n := copy(b.Free(), "ab\ncd")
	require.NoError(t, b.Commit(n, func(string) error { return nil }))
	assert.Equal(t, "cd", string(b.Pending()))
	assert.Equal(t, b.Cap(), b.Len()+b.Remaining())

	b.Reset()
	assert.Zero(t, b.Len())
	assert.False(t, b.Full())
}
