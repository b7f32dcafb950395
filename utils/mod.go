package utils

import "golang.org/x/exp/constraints"

func FindIndex[T comparable](slice []T, item T) int {
	for i, v := range slice {
		if v == item {
			return i
		}
	}
	return -1
}

func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// Max returns the largest of its arguments; at least one is required.
func Max[T constraints.Ordered](first T, rest ...T) T {
	out := first
	for _, v := range rest {
		if v > out {
			out = v
		}
	}
	return out
}

func Min[T constraints.Ordered](first T, rest ...T) T {
	out := first
	for _, v := range rest {
		if v < out {
			out = v
		}
	}
	return out
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
