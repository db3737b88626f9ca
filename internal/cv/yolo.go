package cv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// YOLOConfig configures the ONNX detector.
type YOLOConfig struct {
	ModelPath    string
	InputSize    int     // square network input, default 640
	MinScore     float64 // candidates below this never reach the filter, default 0.25
	NMSThreshold float64 // default 0.45
	UseCUDA      bool
}

// YOLO runs a YOLOv8 ONNX export through OpenCV's dnn module. Boxes are
// reported in network input coordinates; see CoordinateSpace.
type YOLO struct {
	mu  sync.Mutex
	net gocv.Net
	cfg YOLOConfig
}

// NewYOLO loads the model.
func NewYOLO(cfg YOLOConfig) (*YOLO, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.25
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.45
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}
	if cfg.UseCUDA {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}
	logf("loaded %s (input %d, cuda=%v)", cfg.ModelPath, cfg.InputSize, cfg.UseCUDA)
	return &YOLO{net: net, cfg: cfg}, nil
}

// CoordinateSpace implements detect.CoordinateSpacer.
func (y *YOLO) CoordinateSpace() (int, int) { return y.cfg.InputSize, y.cfg.InputSize }

// Detect implements detect.Detector.
func (y *YOLO) Detect(ctx context.Context, frame *video.Frame) ([]detect.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := ToMat(frame)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	size := y.cfg.InputSize
	blob := gocv.BlobFromImage(m, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.mu.Lock()
	defer y.mu.Unlock()
	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected yolo output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read yolo output: %w", err)
	}
	dets, err := detect.DecodeYOLOv8(data, dims[1], dims[2], y.cfg.MinScore)
	if err != nil {
		return nil, err
	}
	return detect.NMS(dets, y.cfg.NMSThreshold), nil
}

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}
