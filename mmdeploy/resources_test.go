package mmdeploy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy/fakeengine"
)

type pipelineParts struct {
	det, pose *mmdeploy.Model
	pool      *mmdeploy.Scheduler
	ec        *mmdeploy.EngineContext
}

// newParts loads both models, creates a four-thread pool and an engine
// context holding the pool and the detection model.
func newParts(t *testing.T, sess *mmdeploy.Session) pipelineParts {
	t.Helper()
	var p pipelineParts
	var err error
	p.det, err = sess.NewModel("rtmdet")
	require.NoError(t, err)
	p.pose, err = sess.NewModel("rtmpose")
	require.NoError(t, err)
	p.pool, err = sess.NewThreadPool(4)
	require.NoError(t, err)
	p.ec, err = sess.NewEngineContext(mmdeploy.CPU)
	require.NoError(t, err)
	require.NoError(t, p.ec.AddScheduler("", p.pool))
	require.NoError(t, p.ec.AddModel("detector", p.det))
	return p
}

func TestPoseTrackerFromModels(t *testing.T) {
	eng, sess := newSession(t, nil)
	p := newParts(t, sess)

	threads, ok := eng.SchedulerThreads(mmdeploy.Raw(p.pool.ID()))
	require.True(t, ok)
	assert.Equal(t, 4, threads)
	assert.Equal(t, 4, p.pool.Threads())
	assert.Equal(t, mmdeploy.CPU, p.ec.Device())
	assert.Equal(t, []mmdeploy.Raw{mmdeploy.Raw(p.pool.ID()), mmdeploy.Raw(p.det.ID())},
		eng.References(mmdeploy.Raw(p.ec.ID())))

	tr, err := sess.NewPoseTrackerFromModels(p.det, p.pose, p.ec)
	require.NoError(t, err)
	assert.Equal(t, []mmdeploy.Raw{mmdeploy.Raw(p.det.ID()), mmdeploy.Raw(p.pose.ID()), mmdeploy.Raw(p.ec.ID())},
		eng.References(mmdeploy.Raw(tr.ID())))

	st, err := tr.NewState(tr.DefaultParams())
	require.NoError(t, err)
	err = tr.ApplyFunc(context.Background(), []*mmdeploy.PoseState{st}, mats(t, 7), nil,
		func(targets [][]mmdeploy.PoseTarget) error {
			assert.Equal(t, float32(7), targets[0][0].Keypoints[0].X)
			return nil
		})
	require.NoError(t, err)

	// Nothing the tracker was built on can go while it is live.
	for name, destroy := range map[string]func() error{
		"det":  p.det.Destroy,
		"pose": p.pose.Destroy,
		"ctx":  p.ec.Destroy,
		"pool": p.pool.Destroy,
	} {
		assert.ErrorIs(t, destroy(), mmdeploy.ErrPrecondition, name)
	}
	assert.Equal(t, mmdeploy.Live, p.det.State())
	assert.Equal(t, mmdeploy.Live, p.ec.State())

	require.NoError(t, st.Destroy())
	require.NoError(t, tr.Destroy())

	// The pose model is free now; the detection model and the pool are
	// still held by the engine context.
	require.NoError(t, p.pose.Destroy())
	assert.ErrorIs(t, p.det.Destroy(), mmdeploy.ErrPrecondition)
	assert.ErrorIs(t, p.pool.Destroy(), mmdeploy.ErrPrecondition)

	require.NoError(t, p.ec.Destroy())
	require.NoError(t, p.det.Destroy())
	require.NoError(t, p.pool.Destroy())
	assert.Equal(t, 0, eng.LiveHandles())
	assert.Equal(t, 0, sess.LiveHandles())
}

func TestPoseTrackerFromOneModel(t *testing.T) {
	eng, sess := newSession(t, nil)

	m, err := sess.NewModel("rtmo")
	require.NoError(t, err)
	ec, err := sess.NewEngineContext(mmdeploy.CUDA(0))
	require.NoError(t, err)
	th, err := sess.NewThread()
	require.NoError(t, err)
	require.NoError(t, ec.AddScheduler("preprocess", th))

	tr, err := sess.NewPoseTrackerFromModels(m, m, ec)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Destroy(), mmdeploy.ErrPrecondition)
	require.NoError(t, tr.Destroy())
	require.NoError(t, m.Destroy())

	require.NoError(t, ec.Destroy())
	require.NoError(t, th.Destroy())
	assert.Equal(t, 0, eng.LiveHandles())
}

func TestSessionCloseTearsDownResourcesLast(t *testing.T) {
	eng, sess := newSession(t, nil)
	p := newParts(t, sess)

	tr, err := sess.NewPoseTrackerFromModels(p.det, p.pose, p.ec)
	require.NoError(t, err)
	st, err := tr.NewState(tr.DefaultParams())
	require.NoError(t, err)
	_, err = tr.Apply(context.Background(), []*mmdeploy.PoseState{st}, mats(t, 1), nil)
	require.NoError(t, err)

	assert.Equal(t, 6, sess.LiveHandles())
	require.NoError(t, sess.Close())
	assert.Equal(t, 0, eng.LiveHandles())
	assert.Equal(t, 0, eng.LiveBuffers())
	for _, l := range []mmdeploy.Lifecycle{tr.State(), p.ec.State(), p.det.State(), p.pose.State(), p.pool.State()} {
		assert.Equal(t, mmdeploy.Destroyed, l)
	}

	_, err = sess.NewModel("rtmdet")
	assert.ErrorIs(t, err, mmdeploy.ErrClosed)
}

func TestResourcePreconditions(t *testing.T) {
	eng, sess := newSession(t, []fakeengine.Option{fakeengine.WithModels("rtmdet", "rtmpose")})
	p := newParts(t, sess)

	_, err := sess.NewThreadPool(0)
	assert.ErrorIs(t, err, mmdeploy.ErrPrecondition)
	_, err = sess.NewEngineContext(mmdeploy.Device{})
	assert.ErrorIs(t, err, mmdeploy.ErrPrecondition)

	m, err := sess.NewModel("missing")
	assert.Nil(t, m)
	require.ErrorIs(t, err, mmdeploy.ErrCreate)
	var merr *mmdeploy.Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, mmdeploy.StatusFileNotExist, merr.Status)

	_, err = sess.NewPoseTrackerFromModels(nil, p.pose, p.ec)
	assert.ErrorIs(t, err, mmdeploy.ErrPrecondition)
	assert.ErrorIs(t, p.ec.AddModel("x", nil), mmdeploy.ErrPrecondition)
	assert.ErrorIs(t, p.ec.AddScheduler("x", nil), mmdeploy.ErrPrecondition)

	// Handles from another session are refused.
	_, other := newSession(t, nil)
	foreign, err := other.NewModel("rtmpose")
	require.NoError(t, err)
	_, err = sess.NewPoseTrackerFromModels(p.det, foreign, p.ec)
	assert.ErrorIs(t, err, mmdeploy.ErrPrecondition)
	assert.ErrorIs(t, p.ec.AddModel("pose", foreign), mmdeploy.ErrPrecondition)
	require.NoError(t, other.Close())

	// Destroyed handles are refused without reaching the engine.
	require.NoError(t, p.pose.Destroy())
	_, err = sess.NewPoseTrackerFromModels(p.det, p.pose, p.ec)
	assert.ErrorIs(t, err, mmdeploy.ErrPrecondition)
	assert.ErrorIs(t, p.ec.AddModel("pose", p.pose), mmdeploy.ErrPrecondition)

	require.NoError(t, sess.Close())
	assert.Equal(t, 0, eng.LiveHandles())
}

func TestResourcesUnsupported(t *testing.T) {
	sess := mmdeploy.NewSession(bareEngine{})

	_, err := sess.NewModel("m")
	assert.ErrorIs(t, err, mmdeploy.ErrUnsupported)
	_, err = sess.NewThreadPool(2)
	assert.ErrorIs(t, err, mmdeploy.ErrUnsupported)
	_, err = sess.NewEngineContext(mmdeploy.CPU)
	assert.ErrorIs(t, err, mmdeploy.ErrUnsupported)
	assert.NoError(t, sess.Close())
}

func TestModelDestroyRacesTrackerCreate(t *testing.T) {
	eng, sess := newSession(t, nil)

	for i := 0; i < 50; i++ {
		p := newParts(t, sess)
		var (
			wg      sync.WaitGroup
			tr      *mmdeploy.PoseTracker
			trErr   error
			poseErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr, trErr = sess.NewPoseTrackerFromModels(p.det, p.pose, p.ec)
		}()
		go func() {
			defer wg.Done()
			poseErr = p.pose.Destroy()
		}()
		wg.Wait()

		// Exactly one side wins.
		if trErr == nil {
			assert.ErrorIs(t, poseErr, mmdeploy.ErrPrecondition)
			require.NoError(t, tr.Destroy())
			require.NoError(t, p.pose.Destroy())
		} else {
			assert.ErrorIs(t, trErr, mmdeploy.ErrPrecondition)
			assert.NoError(t, poseErr)
		}
		require.NoError(t, p.ec.Destroy())
		require.NoError(t, p.det.Destroy())
		require.NoError(t, p.pool.Destroy())
	}
	assert.Equal(t, 0, eng.LiveHandles())
	assert.Empty(t, eng.Violations())
}
