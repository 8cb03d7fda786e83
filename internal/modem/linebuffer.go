// ABOUTME: Fixed-capacity buffer that splits a byte stream into CR/LF-terminated lines
// ABOUTME: Keeps the unterminated tail at the front of the buffer for the next read

package modem

// LineBuffer holds bytes read from the modem. The first Len bytes are
// carry-over from previous reads and never contain a terminator.
// Len() + Remaining() == Cap() at all times.
type LineBuffer struct {
	buf    []byte
	cursor int

	// discarding drops input up to and including the next terminator.
	discarding bool
}

// NewLineBuffer allocates a buffer of the given capacity.
func NewLineBuffer(capacity int) *LineBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &LineBuffer{buf: make([]byte, capacity)}
}

func (b *LineBuffer) Cap() int       { return len(b.buf) }
func (b *LineBuffer) Len() int       { return b.cursor }
func (b *LineBuffer) Remaining() int { return len(b.buf) - b.cursor }

// Full reports whether a read has no room left.
func (b *LineBuffer) Full() bool { return b.cursor == len(b.buf) }

// Free returns the writable tail. Read into it, then call Commit.
func (b *LineBuffer) Free() []byte {
	return b.buf[b.cursor:]
}

// Pending returns the carry-over bytes.
func (b *LineBuffer) Pending() []byte {
	return b.buf[:b.cursor]
}

// Reset drops all buffered bytes.
func (b *LineBuffer) Reset() {
	b.cursor = 0
	b.discarding = false
}

// SkipLine drops all buffered bytes and the rest of the current line:
// input is ignored up to and including the next terminator.
func (b *LineBuffer) SkipLine() {
	b.cursor = 0
	b.discarding = true
}

// Commit accounts for n bytes written into Free and passes each complete,
// non-empty line to emit in arrival order. Either CR or LF ends a line.
// The unterminated tail moves to the front of the buffer. After SkipLine
// everything up to the first terminator is dropped instead.
//
// If emit returns an error Commit stops and returns it; the buffer
// contents are then unspecified and the caller should Reset.
func (b *LineBuffer) Commit(n int, emit func(line string) error) error {
	end := b.cursor + n
	start := 0
	for i := b.cursor; i < end; i++ {
		if c := b.buf[i]; c != '\r' && c != '\n' {
			continue
		}
		if b.discarding {
			b.discarding = false
			start = i + 1
			continue
		}
		if i > start {
			if err := emit(string(b.buf[start:i])); err != nil {
				return err
			}
		}
		start = i + 1
	}
	if b.discarding {
		b.cursor = 0
		return nil
	}
	b.cursor = copy(b.buf, b.buf[start:end])
	return nil
}
