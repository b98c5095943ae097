package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// ErrMalformedFrame is returned for frames that cannot be used for tracking.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// MaxFrameSize bounds a single encoded frame.
const MaxFrameSize = 1 << 20

// ValidateFrame rejects frames with a non-positive image size, a subject
// without landmarks or a NaN/infinite coordinate. A frame with zero
// subjects is always valid.
func ValidateFrame(f *landmark.Frame) error {
	if len(f.Sets) == 0 {
		return nil
	}
	if f.ImageWidth <= 0 || f.ImageHeight <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrMalformedFrame, f.ImageWidth, f.ImageHeight)
	}
	for i, s := range f.Sets {
		if len(s) == 0 {
			return fmt.Errorf("%w: subject %d has no landmarks", ErrMalformedFrame, i)
		}
		for j, p := range s {
			if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
				return fmt.Errorf("%w: subject %d landmark %d is not finite", ErrMalformedFrame, i, j)
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// EncodeFrame marshals a frame to msgpack.
func EncodeFrame(f *landmark.Frame) ([]byte, error) {
	b, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal msgpack frame: %w", err)
	}
	return b, nil
}

// DecodeFrame unmarshals and validates a msgpack frame.
func DecodeFrame(data []byte) (*landmark.Frame, error) {
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(data))
	}
	var f landmark.Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal msgpack frame: %w", err)
	}
	if err := ValidateFrame(&f); err != nil {
		return nil, err
	}
	return &f, nil
}
