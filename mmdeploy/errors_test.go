package mmdeploy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormat(t *testing.T) {
	err := statusError("classifier create", KindCreate, InvalidRaw, StatusFileNotExist)
	assert.Equal(t, "mmdeploy: classifier create: create (code 5, file not exist)", err.Error())

	err = precondition("detector apply", 0x1f0, "empty batch")
	assert.Equal(t, "mmdeploy: detector apply: precondition handle=0x1f0: empty batch", err.Error())

	err = &Error{Op: "segmentor apply", Kind: KindCanceled, Cause: context.Canceled}
	assert.Equal(t, "mmdeploy: segmentor apply: canceled (caused by: context canceled)", err.Error())
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", statusError("op", KindApply, 0x10, StatusFail))

	assert.ErrorIs(t, err, ErrApply)
	assert.NotErrorIs(t, err, ErrCreate)

	var merr *Error
	assert.True(t, errors.As(err, &merr))
	assert.Equal(t, StatusFail, merr.Status)
}

func TestStatusString(t *testing.T) {
	assert.True(t, StatusSuccess.OK())
	assert.False(t, StatusFail.OK())
	assert.Equal(t, "out of range", StatusOutOfRange.String())
	assert.Equal(t, "status(42)", Status(42).String())
}
