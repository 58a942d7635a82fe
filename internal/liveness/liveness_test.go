package liveness

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, shift int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(0)
			if ((x+shift)/8+y/8)%2 == 0 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFrameDifference(t *testing.T) {
	c := NewChecker(-1)
	assert.Equal(t, DefaultMotionThreshold, c.Threshold())

	still, err := c.FrameDifference(frame(t, 0), frame(t, 0))
	require.NoError(t, err)
	assert.False(t, still.LivenessOK)
	assert.Equal(t, 0.0, still.LivenessScore)

	moved, err := c.FrameDifference(frame(t, 0), frame(t, 4))
	require.NoError(t, err)
	assert.True(t, moved.LivenessOK)
	assert.Greater(t, moved.LivenessScore, 0.2)
	assert.LessOrEqual(t, moved.LivenessScore, 1.0)
}

func TestFrameDifference_CustomThreshold(t *testing.T) {
	c := NewChecker(0.99)
	res, err := c.FrameDifference(frame(t, 0), frame(t, 4))
	require.NoError(t, err)
	assert.False(t, res.LivenessOK)
}

func TestFrameDifference_ZeroThreshold(t *testing.T) {
	c := NewChecker(0)
	assert.Equal(t, 0.0, c.Threshold())

	still, err := c.FrameDifference(frame(t, 0), frame(t, 0))
	require.NoError(t, err)
	assert.True(t, still.LivenessOK)
	assert.Equal(t, 0.0, still.LivenessScore)
}

func TestFrameDifference_InvalidFrames(t *testing.T) {
	c := NewChecker(DefaultMotionThreshold)

	_, err := c.FrameDifference([]byte("junk"), frame(t, 0))
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Contains(t, err.Error(), "frame_a")

	_, err = c.FrameDifference(frame(t, 0), nil)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Contains(t, err.Error(), "frame_b")
}
