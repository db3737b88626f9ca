// Package pipeline is the composition root of the tracker: it pulls a
// frame, runs detection, filtering and track association, feeds the
// recording controller, services screenshot requests, renders overlays
// and emits the per-cycle detection log.
//
// The pipeline does not own domain logic. It delegates to detect, tracks,
// recording and hud, and talks to OpenCV only through the stage
// interfaces in stages.go.
package pipeline
