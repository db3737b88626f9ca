package tracks

import (
	"errors"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/detect"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/video"
)

// ErrAssociationFailed wraps errors returned by an Associator. The
// registry keeps its previous state when it sees one.
var ErrAssociationFailed = errors.New("association failed")

// Observation is one identity the associator supports this cycle.
type Observation struct {
	ID      int
	ClassID int
	Box     video.Box
	// Confirmed carries the associator's own confirmation opinion. The
	// registry only honours it when TrustAssociatorConfirmation is set.
	Confirmed bool
}

// Associator matches a cycle's detections to identities. Returning an
// empty slice means no identity is supported this cycle.
type Associator interface {
	Associate(dets []detect.Detection, frame *video.Frame) ([]Observation, error)
}

// AssociatorFunc adapts a function to the Associator interface.
type AssociatorFunc func(dets []detect.Detection, frame *video.Frame) ([]Observation, error)

func (f AssociatorFunc) Associate(dets []detect.Detection, frame *video.Frame) ([]Observation, error) {
	return f(dets, frame)
}
