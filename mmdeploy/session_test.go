package mmdeploy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy/fakeengine"
)

func TestSessionCloseTearsDownEverything(t *testing.T) {
	eng, sess := newSession(t, nil)
	ctx := context.Background()

	cls, err := sess.NewClassifier("resnet", mmdeploy.CPU)
	require.NoError(t, err)
	_, err = cls.Apply(ctx, mats(t, 1))
	require.NoError(t, err)
	_, err = cls.Apply(ctx, mats(t, 2, 3))
	require.NoError(t, err)

	tr, states := newTracker(t, sess, 2)
	_, err = tr.Apply(ctx, states, mats(t, 1, 2), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, sess.OutstandingResults())
	assert.Equal(t, 4, sess.LiveHandles())

	// Results go first, then states, then contexts; anything else would
	// be refused by the handle guards or flagged by the engine.
	require.NoError(t, sess.Close())
	assert.Equal(t, 0, eng.LiveHandles())
	assert.Equal(t, 0, eng.LiveBuffers())
	assert.Equal(t, mmdeploy.Destroyed, cls.State())
	assert.Equal(t, mmdeploy.Destroyed, tr.State())

	assert.ErrorIs(t, sess.Close(), mmdeploy.ErrClosed)
	_, err = sess.NewClassifier("resnet", mmdeploy.CPU)
	assert.ErrorIs(t, err, mmdeploy.ErrClosed)
}

func TestSessionCloseSkipsHandledResources(t *testing.T) {
	eng, sess := newSession(t, nil)

	cls, err := sess.NewClassifier("resnet", mmdeploy.CPU)
	require.NoError(t, err)
	res, err := cls.Apply(context.Background(), mats(t, 1))
	require.NoError(t, err)
	require.NoError(t, res.Release())
	require.NoError(t, cls.Destroy())

	require.NoError(t, sess.Close())
	assert.Equal(t, 0, eng.LiveHandles())
}

func TestApplySerializedPerHandle(t *testing.T) {
	cases := []struct {
		name     string
		fakeOpts []fakeengine.Option
		opts     []mmdeploy.Option
	}{
		{"non-reentrant engine", nil, nil},
		{"serialized session", []fakeengine.Option{fakeengine.WithReentrant()}, []mmdeploy.Option{mmdeploy.WithSerializedApply()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fakeOpts := append([]fakeengine.Option{fakeengine.WithApplyDelay(time.Millisecond)}, tc.fakeOpts...)
			eng, sess := newSession(t, fakeOpts, tc.opts...)

			cls, err := sess.NewClassifier("resnet", mmdeploy.CPU)
			require.NoError(t, err)

			batch := mats(t, 1, 2)
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := cls.ApplyFunc(context.Background(), batch, func([][]mmdeploy.Label) error { return nil })
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, eng.MaxInFlight())
			require.NoError(t, cls.Destroy())
		})
	}
}

func TestDestroyWaitsForInFlightApply(t *testing.T) {
	eng, sess := newSession(t, []fakeengine.Option{
		fakeengine.WithReentrant(),
		fakeengine.WithApplyDelay(20 * time.Millisecond),
	})

	cls, err := sess.NewClassifier("resnet", mmdeploy.CPU)
	require.NoError(t, err)

	batch := mats(t, 1)
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		close(started)
		done <- cls.ApplyFunc(context.Background(), batch, func([][]mmdeploy.Label) error { return nil })
	}()
	<-started

	// Destroy either runs before the apply takes the handle, in which case
	// the apply fails cleanly, or after the apply has released its result.
	for {
		err := cls.Destroy()
		if err == nil {
			break
		}
		require.ErrorIs(t, err, mmdeploy.ErrPrecondition)
		time.Sleep(time.Millisecond)
	}
	if err := <-done; err != nil {
		assert.ErrorIs(t, err, mmdeploy.ErrPrecondition)
	}
	assert.Equal(t, 0, eng.LiveHandles())
	assert.Equal(t, 0, eng.LiveBuffers())
}
