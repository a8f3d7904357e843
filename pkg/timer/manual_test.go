package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManual_FiresInDueOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(20*time.Millisecond, func() { got = append(got, "c") })

	m.Advance(15 * time.Millisecond)
	require.Equal(t, []string{"a"}, got)

	m.Advance(5 * time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, got)
	require.Equal(t, 20*time.Millisecond, m.Elapsed())
	require.Equal(t, 0, m.Pending())
}

func TestManual_StopPreventsFire(t *testing.T) {
	m := NewManual()
	fired := false
	task := m.AfterFunc(time.Second, func() { fired = true })
	require.Equal(t, 1, m.Pending())
	require.True(t, task.Stop())
	require.False(t, task.Stop())

	m.Advance(2 * time.Second)
	require.False(t, fired)
}

func TestManual_ChainedTasksRunWithinOneAdvance(t *testing.T) {
	m := NewManual()
	var at []time.Duration
	var schedule func(n int)
	schedule = func(n int) {
		if n == 0 {
			return
		}
		m.AfterFunc(time.Second, func() {
			at = append(at, m.Elapsed())
			schedule(n - 1)
		})
	}
	schedule(3)

	m.Advance(3 * time.Second)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, at)
}

func TestStopTask_Nil(t *testing.T) {
	StopTask(nil)
}
