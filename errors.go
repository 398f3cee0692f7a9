package raycast

import "errors"

// Mesh contract violations. These are surfaced per mesh so a scene query can
// log, skip the offending mesh, and keep producing hits for the rest.
var (
	// ErrBadTopology marks a mesh that is not a triangle list.
	ErrBadTopology = errors.New("mesh topology is not triangle-list")

	// ErrMissingPositions marks a mesh without a position stream. The
	// AssetServer also returns it for a normal stream whose length differs
	// from the position count.
	ErrMissingPositions = errors.New("mesh has no vertex positions")

	// ErrMalformedIndices marks an index stream whose length is not a
	// multiple of three, or that references a vertex out of range.
	ErrMalformedIndices = errors.New("mesh index stream is malformed")

	// ErrNoSuchTriangle is returned for a triangle index past the end of the
	// vertex or index stream.
	ErrNoSuchTriangle = errors.New("no such triangle")

	// ErrNoSuchMesh is returned when an asset handle does not resolve.
	ErrNoSuchMesh = errors.New("no such mesh asset")
)
