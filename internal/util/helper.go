// Package util holds small generic helpers shared by go-sdxfer packages.
package util

// CloneSlice returns a copy of src with length cloneSize, or len(src) when cloneSize is 0.
// The copy is never nil, so an empty file round-trips as an empty, non-nil payload.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}
