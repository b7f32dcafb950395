package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumericHelpers(t *testing.T) {
	t.Run("abs of signed and float values", func(t *testing.T) {
		require.Equal(t, 3, Abs(-3))
		require.Equal(t, 3, Abs(3))
		require.Equal(t, 0.5, Abs(-0.5))
	})

	t.Run("max and min over variadic values", func(t *testing.T) {
		require.Equal(t, 7, Max(1, 7, 3), "Should return the largest value")
		require.Equal(t, 1, Min(4, 1, 3), "Should return the smallest value")
		require.Equal(t, 2, Max(2), "Single argument should be returned as is")
	})

	t.Run("clamp bounds values", func(t *testing.T) {
		require.Equal(t, 0.0, Clamp(-1.0, 0, 1))
		require.Equal(t, 1.0, Clamp(2.0, 0, 1))
		require.Equal(t, 0.3, Clamp(0.3, 0, 1))
	})

	t.Run("find index", func(t *testing.T) {
		require.Equal(t, 1, FindIndex([]string{"a", "b"}, "b"))
		require.Equal(t, -1, FindIndex([]string{"a", "b"}, "c"))
	})
}
