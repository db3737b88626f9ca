package detect

import (
	"fmt"
	"sort"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// DecodeYOLOv8 parses a YOLOv8 head output laid out as [4+classes, boxes]
// (row-major, batch dimension dropped). Each column holds cx, cy, w, h
// followed by per-class scores. Candidates whose best score is below
// minScore are dropped. Boxes stay in network input coordinates.
func DecodeYOLOv8(data []float32, attrs, boxes int, minScore float64) ([]Detection, error) {
	if attrs < 5 || boxes < 0 {
		return nil, fmt.Errorf("invalid yolo output shape [%d, %d]", attrs, boxes)
	}
	if len(data) < attrs*boxes {
		return nil, fmt.Errorf("yolo output has %d values, want %d", len(data), attrs*boxes)
	}
	var out []Detection
	for i := 0; i < boxes; i++ {
		best, classID := float32(0), -1
		for c := 4; c < attrs; c++ {
			if s := data[c*boxes+i]; s > best {
				best, classID = s, c-4
			}
		}
		if classID < 0 || float64(best) < minScore {
			continue
		}
		cx, cy := float64(data[i]), float64(data[boxes+i])
		w, h := float64(data[2*boxes+i]), float64(data[3*boxes+i])
		out = append(out, Detection{
			Box:        video.Box{X: cx - w/2, Y: cy - h/2, W: w, H: h},
			Confidence: float64(best),
			ClassID:    classID,
		})
	}
	return out, nil
}

// NMS applies per-class non-maximum suppression: within a class, a
// detection is dropped when it overlaps a higher-confidence one by more
// than iouThreshold. The survivors are returned by descending confidence.
func NMS(dets []Detection, iouThreshold float64) []Detection {
	sorted := append([]Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && k.Box.IoU(d.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
