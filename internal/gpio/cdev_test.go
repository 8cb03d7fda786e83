// ABOUTME: Tests for the character device controller
// ABOUTME: Lines are scripted in memory; a real chip is only touched when one exists

//go:build linux

package gpio

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"
)

// scriptedLine records what the controller does with a line.
type scriptedLine struct {
	value    int
	reconfig int
	closed   bool
	setErr   error
}

func (l *scriptedLine) Value() (int, error) { return l.value, nil }

func (l *scriptedLine) SetValue(v int) error {
	if l.setErr != nil {
		return l.setErr
	}
	l.value = v
	return nil
}

func (l *scriptedLine) Reconfigure(...gpiocdev.LineConfigOption) error {
	l.reconfig++
	return nil
}

func (l *scriptedLine) Close() error {
	l.closed = true
	return nil
}

type lineBank struct {
	lines    map[int]*scriptedLine
	requests []int
	fail     error
}

func (b *lineBank) request(_ string, offset int, _ ...gpiocdev.LineReqOption) (cdevLine, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	b.requests = append(b.requests, offset)
	l, ok := b.lines[offset]
	if !ok {
		l = &scriptedLine{}
		b.lines[offset] = l
	}
	return l, nil
}

func setupCdev(t *testing.T) (*Cdev, *lineBank) {
	t.Helper()
	bank := &lineBank{lines: make(map[int]*scriptedLine)}
	return newCdev("", 39, bank.request, nil), bank
}

func TestCdev_OutputSetGet(t *testing.T) {
	c, bank := setupCdev(t)
	assert.Equal(t, DefaultChip, c.chip)

	require.NoError(t, c.ConfigureOutput(23))
	require.NoError(t, c.Set(23, High))

	level, err := c.Get(23)
	require.NoError(t, err)
	assert.Equal(t, High, level)
	assert.Equal(t, []int{23}, bank.requests)
}

func TestCdev_ReconfigureKeepsLineAndLevel(t *testing.T) {
	c, bank := setupCdev(t)
	bank.lines[4] = &scriptedLine{value: 1}

	require.NoError(t, c.ConfigureOutput(4))
	require.NoError(t, c.ConfigureOutput(4))

	assert.Equal(t, []int{4}, bank.requests, "a held line is not requested twice")
	assert.Equal(t, 2, bank.lines[4].reconfig)
	assert.Equal(t, 1, bank.lines[4].value)
}

func TestCdev_SetNeedsOutput(t *testing.T) {
	c, _ := setupCdev(t)

	assert.ErrorIs(t, c.Set(5, High), ErrNotConfigured)
	_, err := c.Get(5)
	assert.ErrorIs(t, err, ErrNotConfigured)

	require.NoError(t, c.ConfigureInput(5))
	assert.ErrorIs(t, c.Set(5, High), ErrNotConfigured)

	require.NoError(t, c.ConfigureOutput(5))
	assert.NoError(t, c.Set(5, High))
}

func TestCdev_InvalidPinTouchesNothing(t *testing.T) {
	c, bank := setupCdev(t)

	for _, pin := range []int{-1, 40} {
		assert.ErrorIs(t, c.ConfigureOutput(pin), ErrInvalidPin)
		assert.ErrorIs(t, c.ConfigureInput(pin), ErrInvalidPin)
		assert.ErrorIs(t, c.Set(pin, High), ErrInvalidPin)
		assert.ErrorIs(t, c.Disable(pin), ErrInvalidPin)
	}
	assert.Empty(t, bank.requests)
}

func TestCdev_RequestFailure(t *testing.T) {
	c, bank := setupCdev(t)
	bank.fail = errors.New("device or resource busy")

	err := c.ConfigureOutput(12)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
	assert.ErrorIs(t, c.Set(12, High), ErrNotConfigured)
}

func TestCdev_SetFailureWrapped(t *testing.T) {
	c, bank := setupCdev(t)
	boom := errors.New("EIO")
	bank.lines[2] = &scriptedLine{setErr: boom}

	require.NoError(t, c.ConfigureOutput(2))
	assert.ErrorIs(t, c.Set(2, Low), boom)
}

func TestCdev_DisableAndClose(t *testing.T) {
	c, bank := setupCdev(t)

	require.NoError(t, c.Disable(7), "releasing an unheld pin is a no-op")

	require.NoError(t, c.ConfigureOutput(7))
	require.NoError(t, c.ConfigureInput(8))
	require.NoError(t, c.Disable(7))
	assert.True(t, bank.lines[7].closed)
	assert.ErrorIs(t, c.Set(7, High), ErrNotConfigured)

	require.NoError(t, c.Close())
	assert.True(t, bank.lines[8].closed)
}

func TestCdev_RealChipRejectsOutOfRange(t *testing.T) {
	if _, err := os.Stat("/dev/" + DefaultChip); err != nil {
		t.Skip("no gpio chip on this machine")
	}
	c := NewCdev(DefaultChip, 39, nil)
	defer c.Close()

	assert.ErrorIs(t, c.ConfigureOutput(40), ErrInvalidPin)
}
