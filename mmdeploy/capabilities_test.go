package mmdeploy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

func TestDetectorApply(t *testing.T) {
	eng, sess := newSession(t, nil)

	det, err := sess.NewDetector("yolo", mmdeploy.CUDA(0))
	require.NoError(t, err)
	defer det.Destroy()

	seeds := []uint8{2, 4}
	err = det.ApplyFunc(context.Background(), mats(t, seeds...), func(dets [][]mmdeploy.Detection) error {
		require.Len(t, dets, len(seeds))
		for i, s := range seeds {
			require.Len(t, dets[i], recordCount(s))
			for k, d := range dets[i] {
				assert.Equal(t, int32(s), d.LabelID)
				assert.Equal(t, mmdeploy.Rect{Right: 2, Bottom: 2}, d.BBox)
				if k%2 == 1 {
					require.NotNil(t, d.Mask, "detection %d of input %d", k, i)
					assert.Equal(t, []byte{1}, d.Mask.Data)
				} else {
					assert.Nil(t, d.Mask)
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, eng.LiveBuffers())
}

func TestTextDetectorApply(t *testing.T) {
	_, sess := newSession(t, nil)

	td, err := sess.NewTextDetector("dbnet", mmdeploy.CPU)
	require.NoError(t, err)
	defer td.Destroy()

	res, err := td.Apply(context.Background(), mats(t, 9, 1))
	require.NoError(t, err)
	defer res.Release()

	items, err := res.Items()
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Len(t, items[0], recordCount(9))
	require.Len(t, items[1], recordCount(1))
	assert.Equal(t, float32(9), items[0][0].Score)
	assert.Equal(t, mmdeploy.Point{X: 2, Y: 2}, items[1][0].BBox[2])
}

func TestSegmentorApply(t *testing.T) {
	_, sess := newSession(t, nil)

	seg, err := sess.NewSegmentor("deeplab", mmdeploy.CPU)
	require.NoError(t, err)
	defer seg.Destroy()

	err = seg.ApplyFunc(context.Background(), mats(t, 3, 6, 0), func(maps []mmdeploy.Segmentation) error {
		require.Len(t, maps, 3)
		for i, want := range []int32{3, 6, 0} {
			assert.Equal(t, int32(2), maps[i].Height)
			assert.Equal(t, int32(2), maps[i].Width)
			assert.Equal(t, []int32{want, want, want, want}, maps[i].Mask)
		}
		return nil
	})
	require.NoError(t, err)
}
