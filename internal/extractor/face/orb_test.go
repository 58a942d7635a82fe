package face

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"github.com/dmitrijs2005/biokeeper/internal/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, fill func(x, y int) uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// squares paints bright squares (x0, y0, side) on a dark background.
func squares(rects ...[3]int) func(x, y int) uint8 {
	return func(x, y int) uint8 {
		for _, r := range rects {
			if x >= r[0] && x < r[0]+r[2] && y >= r[1] && y < r[1]+r[2] {
				return 230
			}
		}
		return 20
	}
}

var (
	sceneA = squares([3]int{30, 30, 30}, [3]int{90, 40, 40}, [3]int{40, 95, 25}, [3]int{100, 100, 20})
	sceneB = squares([3]int{25, 70, 50}, [3]int{95, 25, 30})
)

func grayFrom(fill func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, orbSize, orbSize))
	for y := 0; y < orbSize; y++ {
		for x := 0; x < orbSize; x++ {
			img.Pix[y*img.Stride+x] = fill(x, y)
		}
	}
	return img
}

func TestDetectFAST_FindsSquareCorners(t *testing.T) {
	img := grayFrom(squares([3]int{50, 50, 60}))

	kps, err := detectFAST(context.Background(), img)
	require.NoError(t, err)
	require.NotEmpty(t, kps)

	near := func(x, y int) bool {
		for _, kp := range kps {
			if abs(kp.x-x) <= 2 && abs(kp.y-y) <= 2 {
				return true
			}
		}
		return false
	}
	assert.True(t, near(50, 50))
	assert.True(t, near(109, 50))
	assert.True(t, near(50, 109))
	assert.True(t, near(109, 109))

	for i := 1; i < len(kps); i++ {
		assert.GreaterOrEqual(t, kps[i-1].score, kps[i].score)
	}
}

func TestDetectFAST_FlatImageHasNoKeypoints(t *testing.T) {
	kps, err := detectFAST(context.Background(), grayFrom(func(int, int) uint8 { return 128 }))
	require.NoError(t, err)
	assert.Empty(t, kps)
}

func TestDetectFAST_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := detectFAST(ctx, grayFrom(sceneA))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDescribe_RotatesWithKeypoint(t *testing.T) {
	smooth := boxBlur(grayFrom(sceneA), blurRadius)
	kp := keypoint{x: 60, y: 60}

	a := describe(smooth, kp, 0)
	b := describe(smooth, kp, 0)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, describe(smooth, kp, 1.2))
}

func TestORBBackend_Extract(t *testing.T) {
	o := NewORBBackend(1e-8)
	data := encodePNG(t, orbSize, orbSize, sceneA)

	v, err := o.Extract(context.Background(), extractor.Media{Data: data})
	require.NoError(t, err)
	require.Len(t, v, ORBLength)

	var sum float64
	for _, x := range v {
		sum += x * x
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestORBBackend_SameImageMatches(t *testing.T) {
	o := NewORBBackend(1e-8)
	data := encodePNG(t, orbSize, orbSize, sceneA)

	a, err := o.Extract(context.Background(), extractor.Media{Data: data})
	require.NoError(t, err)
	b, err := o.Extract(context.Background(), extractor.Media{Data: data})
	require.NoError(t, err)

	d := matcher.FacePolicy().Decide(a, b)
	assert.True(t, d.Match)
	assert.Equal(t, matcher.MetricCosine, d.Metric)
	assert.InDelta(t, 1.0, d.Score, 1e-6)
}

func TestORBBackend_DifferentImagesDiffer(t *testing.T) {
	o := NewORBBackend(1e-8)

	a, err := o.Extract(context.Background(), extractor.Media{Data: encodePNG(t, orbSize, orbSize, sceneA)})
	require.NoError(t, err)
	b, err := o.Extract(context.Background(), extractor.Media{Data: encodePNG(t, orbSize, orbSize, sceneB)})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestORBBackend_Errors(t *testing.T) {
	o := NewORBBackend(1e-8)

	_, err := o.Extract(context.Background(), extractor.Media{Data: []byte("not an image")})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = o.Extract(context.Background(), extractor.Media{})
	assert.True(t, errors.Is(err, common.ErrValidation))

	flat := encodePNG(t, 50, 50, func(int, int) uint8 { return 128 })
	_, err = o.Extract(context.Background(), extractor.Media{Data: flat})
	assert.True(t, errors.Is(err, common.ErrExtractionFailed))
}

func TestDecodeGray_CropsCenterSquare(t *testing.T) {
	// Left and right thirds are black, the center square is white.
	data := encodePNG(t, 90, 30, func(x, _ int) uint8 {
		if x >= 30 && x < 60 {
			return 255
		}
		return 0
	})

	img, err := DecodeGray(data, 16)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	assert.InDelta(t, 255, int(img.GrayAt(8, 8).Y), 2)
	assert.InDelta(t, 255, int(img.GrayAt(3, 12).Y), 2)
}
