package election

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLocker struct {
	held bool
}

func (f *fakeLocker) TryAcquire(name string) bool {
	return f.held
}

func (f *fakeLocker) Release(name string) {
	f.held = false
}

func TestControllerTracksActiveStandbyTransitions(t *testing.T) {
	locker := &fakeLocker{held: false}
	c := New(locker, "ovn_northd")

	c.Poll()
	assert.False(t, c.IsActive())
	assert.False(t, c.CanWrite())

	locker.held = true
	c.Poll()
	assert.True(t, c.IsActive())
	assert.True(t, c.CanWrite())

	locker.held = false
	c.Poll()
	assert.False(t, c.IsActive())
}

func TestPauseBlocksWritesWithoutClearingActive(t *testing.T) {
	locker := &fakeLocker{held: true}
	c := New(locker, "ovn_northd")
	c.Poll()
	require := assert.New(t)
	require.True(c.IsActive())

	c.Pause()
	require.True(c.IsPaused())
	require.False(c.CanWrite())
	require.True(c.IsActive())

	c.Resume()
	require.False(c.IsPaused())
	require.True(c.CanWrite())
}
