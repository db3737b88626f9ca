package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// DefaultClassNames is the label table of the bundled COCO detector, in
// class-id order. Only the first seventeen entries are admitted by default.
var DefaultClassNames = []string{
	"person", "bicycle", "car", "motorbike", "aeroplane", "bus", "train",
	"truck", "boat", "traffic light", "fire hydrant", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag",
	"tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard",
	"tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot",
	"hot dog", "pizza", "donut", "cake", "chair", "sofa", "pottedplant", "bed",
	"diningtable", "toilet", "tvmonitor", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

const defaultAllowedClassCount = 17

// TuningConfig is the root configuration of the tracker. Every field is
// optional; the Get* accessors supply defaults for omitted values so a
// partial file is always safe to load.
type TuningConfig struct {
	// Detection filter
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	AllowedClasses      []string `json:"allowed_classes,omitempty"`
	ClassNames          []string `json:"class_names,omitempty"`

	// Detector
	DetectorInputSize *int     `json:"detector_input_size,omitempty"`
	NMSThreshold      *float64 `json:"nms_threshold,omitempty"`
	Preprocess        *bool    `json:"preprocess,omitempty"`

	// Track lifecycle
	HitsToConfirm       *int     `json:"hits_to_confirm,omitempty"`
	MaxMisses           *int     `json:"max_misses,omitempty"`
	MaxTrajectoryLength *int     `json:"max_trajectory_length,omitempty"`
	IoUThreshold        *float64 `json:"iou_threshold,omitempty"`

	// Cadence and UI
	CycleInterval      *string `json:"cycle_interval,omitempty"`      // duration string like "30ms"
	NotificationWindow *string `json:"notification_window,omitempty"` // duration string like "2s"
	ReadRetries        *int    `json:"read_retries,omitempty"`

	// Recording
	DefaultFPS       *float64 `json:"default_fps,omitempty"`
	VideoContainer   *string  `json:"video_container,omitempty"`
	VideoCodec       *string  `json:"video_codec,omitempty"`
	ScreenshotFormat *string  `json:"screenshot_format,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field populated from the
// built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		ConfidenceThreshold: ptrFloat64(empty.GetConfidenceThreshold()),
		AllowedClasses:      empty.GetAllowedClasses(),
		ClassNames:          empty.GetClassNames(),
		DetectorInputSize:   ptrInt(empty.GetDetectorInputSize()),
		NMSThreshold:        ptrFloat64(empty.GetNMSThreshold()),
		Preprocess:          ptrBool(empty.GetPreprocess()),
		HitsToConfirm:       ptrInt(empty.GetHitsToConfirm()),
		MaxMisses:           ptrInt(empty.GetMaxMisses()),
		MaxTrajectoryLength: ptrInt(empty.GetMaxTrajectoryLength()),
		IoUThreshold:        ptrFloat64(empty.GetIoUThreshold()),
		CycleInterval:       ptrString(empty.GetCycleInterval().String()),
		NotificationWindow:  ptrString(empty.GetNotificationWindow().String()),
		ReadRetries:         ptrInt(empty.GetReadRetries()),
		DefaultFPS:          ptrFloat64(empty.GetDefaultFPS()),
		VideoContainer:      ptrString(empty.GetVideoContainer()),
		VideoCodec:          ptrString(empty.GetVideoCodec()),
		ScreenshotFormat:    ptrString(empty.GetScreenshotFormat()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
		}
	}
	if c.NMSThreshold != nil {
		if *c.NMSThreshold < 0 || *c.NMSThreshold > 1 {
			return fmt.Errorf("nms_threshold must be between 0 and 1, got %f", *c.NMSThreshold)
		}
	}
	if c.IoUThreshold != nil {
		if *c.IoUThreshold < 0 || *c.IoUThreshold > 1 {
			return fmt.Errorf("iou_threshold must be between 0 and 1, got %f", *c.IoUThreshold)
		}
	}

	for name, v := range map[string]*int{
		"hits_to_confirm":       c.HitsToConfirm,
		"max_misses":            c.MaxMisses,
		"max_trajectory_length": c.MaxTrajectoryLength,
		"detector_input_size":   c.DetectorInputSize,
	} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, *v)
		}
	}
	if c.ReadRetries != nil && *c.ReadRetries < 0 {
		return fmt.Errorf("read_retries must be non-negative, got %d", *c.ReadRetries)
	}
	if c.DefaultFPS != nil && *c.DefaultFPS <= 0 {
		return fmt.Errorf("default_fps must be positive, got %f", *c.DefaultFPS)
	}

	for name, v := range map[string]*string{
		"cycle_interval":      c.CycleInterval,
		"notification_window": c.NotificationWindow,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.VideoCodec != nil && len(*c.VideoCodec) != 4 {
		return fmt.Errorf("video_codec must be a four character code, got %q", *c.VideoCodec)
	}

	names := c.GetClassNames()
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	for _, a := range c.AllowedClasses {
		if _, ok := known[a]; !ok {
			return fmt.Errorf("allowed_classes: unknown class %q", a)
		}
	}

	return nil
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.8
	}
	return *c.ConfidenceThreshold
}

// GetClassNames returns the detector label table.
func (c *TuningConfig) GetClassNames() []string {
	if len(c.ClassNames) == 0 {
		return append([]string(nil), DefaultClassNames...)
	}
	return append([]string(nil), c.ClassNames...)
}

// GetAllowedClasses returns the admitted class names. The default is the
// first seventeen COCO classes.
func (c *TuningConfig) GetAllowedClasses() []string {
	if len(c.AllowedClasses) == 0 {
		return append([]string(nil), DefaultClassNames[:defaultAllowedClassCount]...)
	}
	return append([]string(nil), c.AllowedClasses...)
}

// AllowedClassIDs resolves GetAllowedClasses against GetClassNames. Names
// missing from the table are skipped.
func (c *TuningConfig) AllowedClassIDs() []int {
	index := make(map[string]int)
	for i, n := range c.GetClassNames() {
		index[strings.ToLower(n)] = i
	}
	var ids []int
	for _, n := range c.GetAllowedClasses() {
		if id, ok := index[strings.ToLower(n)]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetDetectorInputSize returns the square network input edge in pixels.
func (c *TuningConfig) GetDetectorInputSize() int {
	if c.DetectorInputSize == nil {
		return 640
	}
	return *c.DetectorInputSize
}

// GetNMSThreshold returns the nms_threshold value or the default.
func (c *TuningConfig) GetNMSThreshold() float64 {
	if c.NMSThreshold == nil {
		return 0.45
	}
	return *c.NMSThreshold
}

// GetPreprocess returns the preprocess value or the default.
func (c *TuningConfig) GetPreprocess() bool {
	if c.Preprocess == nil {
		return true
	}
	return *c.Preprocess
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3
	}
	return *c.HitsToConfirm
}

// GetMaxMisses returns the max_misses value or the default.
func (c *TuningConfig) GetMaxMisses() int {
	if c.MaxMisses == nil {
		return 30
	}
	return *c.MaxMisses
}

// GetMaxTrajectoryLength returns the max_trajectory_length value or the default.
func (c *TuningConfig) GetMaxTrajectoryLength() int {
	if c.MaxTrajectoryLength == nil {
		return 128
	}
	return *c.MaxTrajectoryLength
}

// GetIoUThreshold returns the iou_threshold value or the default.
func (c *TuningConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold == nil {
		return 0.3
	}
	return *c.IoUThreshold
}

// GetCycleInterval parses and returns the CycleInterval as a time.Duration.
func (c *TuningConfig) GetCycleInterval() time.Duration {
	return parseDurationOr(c.CycleInterval, 30*time.Millisecond)
}

// GetNotificationWindow parses and returns the NotificationWindow as a time.Duration.
func (c *TuningConfig) GetNotificationWindow() time.Duration {
	return parseDurationOr(c.NotificationWindow, 2*time.Second)
}

// GetReadRetries returns the read_retries value or the default.
func (c *TuningConfig) GetReadRetries() int {
	if c.ReadRetries == nil {
		return 1
	}
	return *c.ReadRetries
}

// GetDefaultFPS returns the frame rate used when the source reports none.
func (c *TuningConfig) GetDefaultFPS() float64 {
	if c.DefaultFPS == nil {
		return 30
	}
	return *c.DefaultFPS
}

// GetVideoContainer returns the recording file extension without a dot.
func (c *TuningConfig) GetVideoContainer() string {
	if c.VideoContainer == nil || *c.VideoContainer == "" {
		return "mp4"
	}
	return strings.TrimPrefix(*c.VideoContainer, ".")
}

// GetVideoCodec returns the recording fourcc.
func (c *TuningConfig) GetVideoCodec() string {
	if c.VideoCodec == nil || *c.VideoCodec == "" {
		return "avc1"
	}
	return *c.VideoCodec
}

// GetScreenshotFormat returns the screenshot file extension without a dot.
func (c *TuningConfig) GetScreenshotFormat() string {
	if c.ScreenshotFormat == nil || *c.ScreenshotFormat == "" {
		return "png"
	}
	return strings.TrimPrefix(*c.ScreenshotFormat, ".")
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
