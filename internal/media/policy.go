package media

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Decision is the output of the resolution policy for one entry.
type Decision struct {
	Skip         bool
	TargetWidth  int
	TargetHeight int
}

// ResolutionPolicy decides between skipping and converting, and computes the
// target size. It never touches the filesystem.
type ResolutionPolicy struct {
	// ShortSide is the ceiling for min(width, height).
	ShortSide int
	// DisableSkip forces conversion of already compliant entries.
	DisableSkip bool
}

// NewResolutionPolicy returns a policy for the given ceiling.
func NewResolutionPolicy(shortSide int, disableSkip bool) ResolutionPolicy {
	return ResolutionPolicy{ShortSide: shortSide, DisableSkip: disableSkip}
}

// Decide applies the policy. For animations width and height must be the
// frame-wise minimum, see MinFrameBox.
func (p ResolutionPolicy) Decide(kind MediaKind, width, height int, sourceExt string) (Decision, error) {
	if kind == Unsupported {
		return Decision{}, fmt.Errorf("%w: unsupported media kind", ErrProbeFailed)
	}
	if width <= 0 || height <= 0 {
		return Decision{}, fmt.Errorf("%w: invalid dimensions %dx%d", ErrProbeFailed, width, height)
	}

	ceiling := p.ShortSide
	if ceiling <= 0 {
		ceiling = 720
	}

	shortSide := min(width, height)
	if !p.DisableSkip && shortSide <= ceiling && strings.EqualFold(sourceExt, kind.TargetExt()) {
		return Decision{
			Skip:         true,
			TargetWidth:  forceEven(width),
			TargetHeight: forceEven(height),
		}, nil
	}

	scale := min(1.0, float64(ceiling)/float64(shortSide))
	return Decision{
		TargetWidth:  forceEven(int(math.Round(float64(width) * scale))),
		TargetHeight: forceEven(int(math.Round(float64(height) * scale))),
	}, nil
}

// forceEven truncates an odd dimension down by one. Dimensions never drop below 2.
func forceEven(n int) int {
	if n%2 != 0 {
		n--
	}
	return max(n, 2)
}

// MinFrameBox returns the smallest width and the smallest height across frames.
func MinFrameBox(sizes []image.Point) (int, int) {
	if len(sizes) == 0 {
		return 0, 0
	}
	w, h := sizes[0].X, sizes[0].Y
	for _, s := range sizes[1:] {
		w = min(w, s.X)
		h = min(h, s.Y)
	}
	return w, h
}
