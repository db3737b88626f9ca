package cv

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// Capture reads frames from a camera or a video file. It implements
// video.FrameSource.
type Capture struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	geom   video.Geometry
	seq    uint64
	closed bool
}

// OpenCapture opens source, which is a camera index ("0") or a file path
// or stream URL. defaultFPS is reported when the device does not know its
// rate.
func OpenCapture(source string, defaultFPS float64) (*Capture, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(source); convErr == nil {
		vc, err = gocv.VideoCaptureDevice(id)
	} else {
		vc, err = gocv.OpenVideoCapture(source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", video.ErrSourceUnavailable, source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", video.ErrSourceUnavailable, source)
	}

	geom := video.Geometry{
		Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FPS:    vc.Get(gocv.VideoCaptureFPS),
	}
	if geom.FPS <= 0 {
		geom.FPS = defaultFPS
	}
	logf("opened %s: %dx%d @ %.2f fps", source, geom.Width, geom.Height, geom.FPS)
	return &Capture{cap: vc, mat: gocv.NewMat(), geom: geom}, nil
}

// Read implements video.FrameSource.
func (c *Capture) Read(ctx context.Context) (*video.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: capture closed", video.ErrFrameReadFailed)
	}
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, fmt.Errorf("%w: no frame", video.ErrFrameReadFailed)
	}
	f, err := FromMat(c.mat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", video.ErrFrameReadFailed, err)
	}
	c.seq++
	f.Seq = c.seq
	f.Timestamp = time.Now()
	return f, nil
}

// Geometry implements video.FrameSource.
func (c *Capture) Geometry() video.Geometry { return c.geom }

// Close releases the device. It is idempotent.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.cap.Close()
}
