// Package interfaces defines core interfaces shared across packages
// to avoid circular dependencies.
package interfaces

// Version represents a point-in-time causality marker.
type Version interface {
	// Compare returns -1 if this version is before other, 1 if after, and 0
	// when neither is ordered before the other (equal or concurrent).
	Compare(other Version) int

	// String returns a string representation of the version
	String() string

	// IsZero returns true if this is the zero/initial version
	IsZero() bool
}
