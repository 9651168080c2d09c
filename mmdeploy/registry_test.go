package mmdeploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDrainOrder(t *testing.T) {
	r := newRegistry()
	nop := func() error { return nil }

	ctxA, err := r.add(tierContext, "a", 0x100, nop)
	require.NoError(t, err)
	stA, err := r.add(tierState, "a state", 0x110, nop)
	require.NoError(t, err)
	res1, err := r.add(tierResult, "a apply", 0x120, nop)
	require.NoError(t, err)
	model, err := r.add(tierResource, "model", 0x20, nop)
	require.NoError(t, err)
	ec, err := r.add(tierEngineContext, "engine context", 0x30, nop)
	require.NoError(t, err)
	ctxB, err := r.add(tierContext, "b", 0x200, nop)
	require.NoError(t, err)
	res2, err := r.add(tierResult, "b apply", 0x210, nop)
	require.NoError(t, err)

	assert.Equal(t, 2, r.count(tierContext))
	assert.Equal(t, 2, r.count(tierResult))

	var ids []uint64
	for _, e := range r.drain() {
		ids = append(ids, e.id)
	}
	assert.Equal(t, []uint64{res2, res1, stA, ctxB, ctxA, ec, model}, ids)
	assert.True(t, r.isClosed())

	_, err = r.add(tierContext, "c", 0x300, nop)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRegistryRejectsDuplicateHandles(t *testing.T) {
	r := newRegistry()
	nop := func() error { return nil }

	id, err := r.add(tierContext, "a", 0x100, nop)
	require.NoError(t, err)

	_, err = r.add(tierContext, "a", 0x100, nop)
	assert.ErrorIs(t, err, ErrCreate)

	// A state may share an address with a context; tiers are separate.
	_, err = r.add(tierState, "a state", 0x100, nop)
	assert.NoError(t, err)

	// Once removed the identity may be handed out again.
	r.remove(id)
	r.remove(id)
	_, err = r.add(tierContext, "a", 0x100, nop)
	assert.NoError(t, err)
}
