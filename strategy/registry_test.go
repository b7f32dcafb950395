package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{Aggressive, Conservative, ExpectedValue, Random, Underdog}, Names())

	for _, name := range Names() {
		desc, ok := Describe(name)
		require.True(t, ok)
		require.NotEmpty(t, desc)

		s, err := New(name, nil)
		require.NoError(t, err)
		require.Equal(t, name, s.Name())
	}

	_, err := New("martingale", nil)
	require.Error(t, err)
}

func TestOptions(t *testing.T) {
	t.Run("overrides profile knobs", func(t *testing.T) {
		s, err := New(ExpectedValue, map[string]any{
			"bidMultiplier":     3.0,
			"maxOutbidFraction": 0.25,
			"simpleBid":         false,
			"safetyWeight":      5,
		})
		require.NoError(t, err)

		p := s.(*RuleStrategy).Profile()
		require.Equal(t, 3.0, p.BidMultiplier)
		require.Equal(t, 0.25, p.MaxOutbidFraction)
		require.Equal(t, BidOutbid, p.BidMode)
		require.Equal(t, 5.0, p.SafetyWeight)
	})

	t.Run("simple bid keeps aggressive on the floor", func(t *testing.T) {
		s, err := New(Aggressive, map[string]any{"simpleBid": true})
		require.NoError(t, err)
		require.Equal(t, BidFloor, s.(*RuleStrategy).Profile().BidMode)
	})

	t.Run("out of range values keep defaults", func(t *testing.T) {
		s, err := New(Aggressive, map[string]any{"bidMultiplier": 0.5, "maxOutbidFraction": 2})
		require.NoError(t, err)
		p := s.(*RuleStrategy).Profile()
		require.Equal(t, 2.0, p.BidMultiplier)
		require.Equal(t, 0.5, p.MaxOutbidFraction)
	})

	t.Run("rejects bad options", func(t *testing.T) {
		_, err := New(ExpectedValue, map[string]any{"bidMultiplier": "lots"})
		require.Error(t, err)
		_, err = New(ExpectedValue, map[string]any{"simpleBid": 1})
		require.Error(t, err)
		_, err = New(ExpectedValue, map[string]any{"yolo": true})
		require.ErrorContains(t, err, "unknown option")
	})

	require.Contains(t, OptionKeys(), "seed")
}
