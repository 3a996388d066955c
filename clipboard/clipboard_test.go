package clipboard

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBoard struct {
	mu      sync.Mutex
	text    string
	writes  int
	readErr error
}

func (m *memBoard) WriteAll(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.writes++
	return nil
}

func (m *memBoard) ReadAll() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, m.readErr
}

func (m *memBoard) get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

type manualTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type manualClock struct {
	timers []*manualTimer
	delays []time.Duration
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

// fire runs timer i regardless of Stop, like a timer that already started.
func (c *manualClock) fire(i int) {
	t := c.timers[i]
	t.fired = true
	t.f()
}

func TestExposeAndAutoClear(t *testing.T) {
	board := &memBoard{}
	clock := &manualClock{}
	e := NewExposer(20*time.Second, WithBoard(board), WithClock(clock))

	require.NoError(t, e.Expose([]byte("hunter2")))
	assert.Equal(t, "hunter2", board.get())
	assert.True(t, e.Pending())
	require.Len(t, clock.timers, 1)
	assert.Equal(t, 20*time.Second, clock.delays[0])

	done := e.Done()
	clock.fire(0)
	<-done

	assert.Equal(t, "", board.get())
	assert.False(t, e.Pending())
}

func TestNewExposureReplacesPendingClear(t *testing.T) {
	board := &memBoard{}
	clock := &manualClock{}
	e := NewExposer(time.Second, WithBoard(board), WithClock(clock))

	require.NoError(t, e.Expose([]byte("first")))
	require.NoError(t, e.Expose([]byte("second")))

	require.Len(t, clock.timers, 2)
	assert.True(t, clock.timers[0].stopped, "previous clear is cancelled")

	// the old timer racing past Stop must not clear the new secret early
	clock.fire(0)
	assert.Equal(t, "second", board.get())
	assert.True(t, e.Pending())

	clock.fire(1)
	assert.Equal(t, "", board.get())
}

func TestClearLeavesForeignContentAlone(t *testing.T) {
	board := &memBoard{}
	clock := &manualClock{}
	e := NewExposer(time.Second, WithBoard(board), WithClock(clock))

	require.NoError(t, e.Expose([]byte("hunter2")))
	require.NoError(t, board.WriteAll("user copied this"))

	clock.fire(0)
	assert.Equal(t, "user copied this", board.get())
}

func TestCancelKeepsClipboard(t *testing.T) {
	board := &memBoard{}
	clock := &manualClock{}
	e := NewExposer(time.Second, WithBoard(board), WithClock(clock))

	require.NoError(t, e.Expose([]byte("hunter2")))
	e.Cancel()
	assert.False(t, e.Pending())
	assert.Nil(t, e.Done())

	clock.fire(0)
	assert.Equal(t, "hunter2", board.get())
}

func TestClearNow(t *testing.T) {
	board := &memBoard{}
	e := NewExposer(0, WithBoard(board), WithClock(&manualClock{}))

	require.NoError(t, e.Expose([]byte("hunter2")))
	assert.False(t, e.Pending(), "zero delay schedules nothing")

	require.NoError(t, e.ClearNow())
	assert.Equal(t, "", board.get())
	require.NoError(t, e.ClearNow(), "clearing twice is harmless")
}

type warnRecorder struct{ warns int }

func (w *warnRecorder) Warnf(string, ...any) { w.warns++ }

func TestClearFailureIsReported(t *testing.T) {
	board := &memBoard{}
	clock := &manualClock{}
	warns := &warnRecorder{}
	e := NewExposer(time.Second, WithBoard(board), WithClock(clock), WithReporter(warns))

	require.NoError(t, e.Expose([]byte("hunter2")))
	board.readErr = errors.New("no display")
	clock.fire(0)

	assert.Equal(t, 1, warns.warns)
}

func TestRealClockClears(t *testing.T) {
	board := &memBoard{}
	e := NewExposer(10*time.Millisecond, WithBoard(board))

	require.NoError(t, e.Expose([]byte("hunter2")))
	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("clear never ran")
	}
	assert.Equal(t, "", board.get())
}
