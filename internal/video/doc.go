// Package video holds the frame-level data model shared by every stage of
// the tracker: pixel frames, bounding boxes, source geometry and the
// FrameSource capability that yields frames.
//
// Key types: Frame, Box, Point, Geometry, FrameSource.
//
// Dependency rule: video depends on nothing else in this module. OpenCV
// bindings live in internal/cv and convert to and from these types.
package video
