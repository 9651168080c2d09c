package mmdeploy_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy/fakeengine"
)

// newSession returns a session over a fresh fake engine and fails the test
// if the engine saw any protocol violation by the end of it.
func newSession(t *testing.T, fakeOpts []fakeengine.Option, opts ...mmdeploy.Option) (*fakeengine.Engine, *mmdeploy.Session) {
	t.Helper()
	eng := fakeengine.New(fakeOpts...)
	opts = append([]mmdeploy.Option{mmdeploy.WithLogger(zaptest.NewLogger(t))}, opts...)
	sess := mmdeploy.NewSession(eng, opts...)
	t.Cleanup(func() {
		require.Empty(t, eng.Violations(), "engine protocol violations")
	})
	return eng, sess
}

// mats builds one 2x2 BGR mat per seed; the fake derives its records from
// the first byte.
func mats(t *testing.T, seeds ...uint8) []mmdeploy.Mat {
	t.Helper()
	out := make([]mmdeploy.Mat, len(seeds))
	for i, s := range seeds {
		pix := make([]uint8, 2*2*3)
		pix[0] = s
		m, err := mmdeploy.NewMat(2, 2, mmdeploy.PixelBGR, pix)
		require.NoError(t, err)
		out[i] = m
	}
	return out
}

// recordCount mirrors the fake: 1 + seed%3 records per image.
func recordCount(seed uint8) int {
	return 1 + int(seed)%3
}
