package detection

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-follow/internal/log"
	"github.com/teslashibe/go-follow/pkg/landmark"
)

// YuNet output layout: bbox, five landmark pairs, score.
const (
	yunetCols          = 15
	yunetLandmarkStart = 4
	yunetScoreCol      = 14
)

// ErrClosed is returned by Detect after Close.
var ErrClosed = errors.New("detection: detector closed")

// YuNetDetector runs OpenCV's FaceDetectorYN. Detect calls are serialized.
type YuNetDetector struct {
	mu       sync.Mutex
	detector gocv.FaceDetectorYN
	config   Config
	closed   bool
}

// NewYuNet loads the YuNet ONNX model named by cfg.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh >= 1 {
		return nil, fmt.Errorf("confidence threshold must be in (0, 1), got %v", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		return nil, fmt.Errorf("invalid input size %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}

	// Input size is updated per image
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in a BGR image. Coordinates are normalized to the
// image size.
func (d *YuNetDetector) Detect(img gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())
	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(img, &faces)

	if faces.Cols() < yunetCols {
		return nil, nil
	}

	detections := make([]Detection, 0, faces.Rows())
	row := make([]float32, yunetCols)
	for r := 0; r < faces.Rows(); r++ {
		for c := range row {
			row[c] = faces.GetFloatAt(r, c)
		}
		detections = append(detections, parseFace(row, imgW, imgH))
	}

	if len(detections) > 0 {
		log.Debug("yunet detections", "component", "detection", "faces", len(detections))
	}
	return detections, nil
}

// Close releases the model. It is safe to call more than once.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.detector.Close()
	return nil
}

// parseFace converts one YuNet output row (pixels) to a normalized Detection.
func parseFace(row []float32, imgW, imgH float64) Detection {
	det := Detection{
		X:          float64(row[0]) / imgW,
		Y:          float64(row[1]) / imgH,
		W:          float64(row[2]) / imgW,
		H:          float64(row[3]) / imgH,
		Confidence: float64(row[yunetScoreCol]),
		Landmarks:  make(landmark.Set, landmark.YuNetPoints),
	}
	for i := 0; i < landmark.YuNetPoints; i++ {
		det.Landmarks[i] = landmark.Point{
			X: float64(row[yunetLandmarkStart+2*i]) / imgW,
			Y: float64(row[yunetLandmarkStart+2*i+1]) / imgH,
		}
	}
	return det
}
