package face

import (
	"cmp"
	"context"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"gonum.org/v1/gonum/floats"
)

const (
	// ORBBackendName is the registry name of the local face backend.
	ORBBackendName = "face-orb"
	// ORBLength is the descriptor length produced by the local backend.
	ORBLength = 512

	orbSize         = 160
	fastThreshold   = 20
	fastArc         = 9
	patchRadius     = 15
	orbBorder       = patchRadius + 1
	briefBytes      = 32
	briefSampleSpan = 13
	blurRadius      = 2
)

// ORBBackend detects FAST corners on the centered crop, orients each by its
// intensity centroid and describes it with a rotated BRIEF bit string. The
// strongest keypoints' descriptor bytes are flattened and fitted to
// ORBLength values. It needs no model files and is always available.
type ORBBackend struct {
	normEps float64
}

var _ extractor.Backend = (*ORBBackend)(nil)

// NewORBBackend returns the local backend. normEps guards the final L2
// normalization.
func NewORBBackend(normEps float64) *ORBBackend {
	return &ORBBackend{normEps: normEps}
}

func (o *ORBBackend) Name() string { return ORBBackendName }

func (o *ORBBackend) Extract(ctx context.Context, m extractor.Media) (biometric.Vector, error) {
	img, err := DecodeGray(m.Data, orbSize)
	if err != nil {
		return nil, err
	}

	kps, err := detectFAST(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(kps) == 0 {
		return nil, fmt.Errorf("%w: no keypoints", common.ErrExtractionFailed)
	}

	// Only the keypoints that survive truncation are described.
	keep := min(len(kps), (ORBLength+briefBytes-1)/briefBytes)
	smooth := boxBlur(img, blurRadius)

	v := make(biometric.Vector, 0, keep*briefBytes)
	for _, kp := range kps[:keep] {
		for _, b := range describe(smooth, kp, orientation(img, kp)) {
			v = append(v, float64(b))
		}
	}

	v = v.Fit(ORBLength)
	if floats.Norm(v, 2) <= o.normEps {
		return nil, fmt.Errorf("%w: empty descriptor", common.ErrExtractionFailed)
	}
	return v.Normalize(o.normEps), nil
}

type keypoint struct {
	x, y  int
	score int
}

// fastCircle is the radius-3 Bresenham circle, clockwise from the top.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// detectFAST runs FAST-9 with 3×3 non-maximum suppression and returns the
// keypoints strongest first. Ties break by raster order.
func detectFAST(ctx context.Context, img *image.Gray) ([]keypoint, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	scores := make([]int, w*h)

	for y := orbBorder; y < h-orbBorder; y++ {
		if y%16 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := orbBorder; x < w-orbBorder; x++ {
			scores[y*w+x] = fastScore(img, x, y)
		}
	}

	var kps []keypoint
	for y := orbBorder; y < h-orbBorder; y++ {
		for x := orbBorder; x < w-orbBorder; x++ {
			s := scores[y*w+x]
			if s == 0 || !localMax(scores, w, x, y) {
				continue
			}
			kps = append(kps, keypoint{x: x, y: y, score: s})
		}
	}

	slices.SortStableFunc(kps, func(a, b keypoint) int { return cmp.Compare(b.score, a.score) })
	return kps, nil
}

// fastScore is zero unless fastArc contiguous circle pixels are all brighter
// or all darker than the center by more than fastThreshold; otherwise it is
// the summed excess contrast over the circle.
func fastScore(img *image.Gray, x, y int) int {
	c := int(img.Pix[y*img.Stride+x])
	var diff [16]int
	for i, o := range fastCircle {
		diff[i] = int(img.Pix[(y+o[1])*img.Stride+x+o[0]]) - c
	}
	if !hasArc(diff, 1) && !hasArc(diff, -1) {
		return 0
	}
	var s int
	for _, d := range diff {
		if a := abs(d) - fastThreshold; a > 0 {
			s += a
		}
	}
	return s
}

func hasArc(diff [16]int, sign int) bool {
	run := 0
	for i := 0; i < 16+fastArc; i++ {
		if sign*diff[i%16] > fastThreshold {
			run++
			if run >= fastArc {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// localMax keeps a pixel that beats every neighbour, or ties only with
// neighbours that come later in raster order.
func localMax(scores []int, w, x, y int) bool {
	s := scores[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := scores[(y+dy)*w+x+dx]
			if n > s || (n == s && (dy < 0 || (dy == 0 && dx < 0))) {
				return false
			}
		}
	}
	return true
}

// orientation is the angle of the intensity centroid of the circular patch.
func orientation(img *image.Gray, kp keypoint) float64 {
	var m01, m10 float64
	for dy := -patchRadius; dy <= patchRadius; dy++ {
		for dx := -patchRadius; dx <= patchRadius; dx++ {
			if dx*dx+dy*dy > patchRadius*patchRadius {
				continue
			}
			p := float64(img.Pix[(kp.y+dy)*img.Stride+kp.x+dx])
			m10 += float64(dx) * p
			m01 += float64(dy) * p
		}
	}
	return math.Atan2(m01, m10)
}

// briefPattern holds 8*briefBytes point pairs (x1, y1, x2, y2) drawn once
// from a fixed seed, each within briefSampleSpan of the center so that any
// rotation stays inside the patch.
var briefPattern = func() [8 * briefBytes][4]float64 {
	r := rand.New(rand.NewPCG(0x0b1e, 0xfa57))
	sigma := float64(2*patchRadius+1) / 5
	sample := func() (float64, float64) {
		for {
			x, y := r.NormFloat64()*sigma, r.NormFloat64()*sigma
			if x*x+y*y <= briefSampleSpan*briefSampleSpan {
				return x, y
			}
		}
	}
	var out [8 * briefBytes][4]float64
	for i := range out {
		x1, y1 := sample()
		x2, y2 := sample()
		out[i] = [4]float64{x1, y1, x2, y2}
	}
	return out
}()

// describe packs the rotated BRIEF comparisons into briefBytes bytes.
func describe(smooth *image.Gray, kp keypoint, angle float64) [briefBytes]byte {
	sin, cos := math.Sincos(angle)
	at := func(px, py float64) uint8 {
		x := kp.x + int(math.Round(px*cos-py*sin))
		y := kp.y + int(math.Round(px*sin+py*cos))
		return smooth.Pix[y*smooth.Stride+x]
	}

	var d [briefBytes]byte
	for i, p := range briefPattern {
		if at(p[0], p[1]) < at(p[2], p[3]) {
			d[i/8] |= 1 << (i % 8)
		}
	}
	return d
}

// boxBlur smooths img with a (2r+1)² mean filter, clamping at the edges.
func boxBlur(img *image.Gray, r int) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	n := (2*r + 1) * (2*r + 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s int
			for dy := -r; dy <= r; dy++ {
				yy := max(0, min(h-1, y+dy))
				for dx := -r; dx <= r; dx++ {
					xx := max(0, min(w-1, x+dx))
					s += int(img.Pix[yy*img.Stride+xx])
				}
			}
			out.Pix[y*out.Stride+x] = uint8(s / n)
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
