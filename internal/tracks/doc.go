// Package tracks maintains persistent object identities across frames.
//
// Responsibilities: track lifecycle (birth, confirmation, coasting,
// deletion), bounded per-track trajectories and the built-in IoU
// associator with Hungarian assignment.
// Key types: Registry, Track, Associator, IoUAssociator.
//
// The Associator is authoritative for identity: the Registry never
// invents or renames an id, it only applies the confirmation and
// deletion policy to the ids it is given.
package tracks
