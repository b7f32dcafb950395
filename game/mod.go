// Package game models the hex snake voting game as seen by a participant: grid
// geometry, the raw backend snapshot, and the parsed per-poll view that strategies
// consume.
package game

const (
	// DefaultGridRadius is used when a snapshot omits the grid radius
	DefaultGridRadius = 3
	// DefaultFruitsToWin is used when a snapshot omits the win threshold
	DefaultFruitsToWin = 3
)
