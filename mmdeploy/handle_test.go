package mmdeploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardDestroy(t *testing.T) {
	g := newGuard(0x40, kindContext, false)
	freed := 0
	free := func(r Raw) {
		assert.Equal(t, Raw(0x40), r)
		freed++
	}

	g.outstanding.Add(1)
	err := g.destroy("test destroy", free)
	assert.ErrorIs(t, err, ErrPrecondition)
	g.outstanding.Add(-1)

	g.children.Add(2)
	err = g.destroy("test destroy", free)
	assert.ErrorIs(t, err, ErrPrecondition)
	g.children.Add(-2)

	g.refs.Add(1)
	err = g.destroy("test destroy", free)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "referenced by 1 live handles")
	g.refs.Add(-1)

	assert.Equal(t, Live, g.lifecycle())
	assert.Equal(t, 0, freed)

	require.NoError(t, g.destroy("test destroy", free))
	assert.Equal(t, Destroyed, g.lifecycle())
	assert.ErrorIs(t, g.destroy("test destroy", free), ErrPrecondition)
	assert.Equal(t, 1, freed)

	_, err = g.acquire("test apply", false)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestGuardSharedAcquire(t *testing.T) {
	g := newGuard(0x40, kindContext, true)

	unlock1, err := g.acquire("a", false)
	require.NoError(t, err)
	unlock2, err := g.acquire("b", false)
	require.NoError(t, err)

	// Writers wait for readers.
	assert.False(t, g.mu.TryLock())
	unlock1()
	unlock2()
	assert.True(t, g.mu.TryLock())
	g.mu.Unlock()
}

func TestLifecycleString(t *testing.T) {
	assert.Equal(t, "live", Live.String())
	assert.Equal(t, "destroyed", Destroyed.String())
	assert.Equal(t, "lifecycle(9)", Lifecycle(9).String())
	assert.Equal(t, "engine context", kindEngineContext.String())
	assert.Equal(t, "scheduler", kindScheduler.String())
}
