package strategy

import (
	"fmt"
	"sort"
)

const (
	ExpectedValue = "expected-value"
	Aggressive    = "aggressive"
	Underdog      = "underdog"
	Conservative  = "conservative"
	Random        = "random"
)

// DefaultStrategy is used when settings name none
const DefaultStrategy = ExpectedValue

type Factory func(options ...Option) Strategy

type entry struct {
	description string
	profile     func() Profile
}

var registry = map[string]entry{
	ExpectedValue: {
		description: "joins the score leader, weighs payout share, stays loyal and bids the floor",
		profile: func() Profile {
			p := defaultProfile(ExpectedValue)
			p.Selection = SelectExpectedValue
			p.Counter = CounterHostile
			return p
		},
	},
	Aggressive: {
		description: "always backs the leader, chases fruit hard and outbids up to half the balance",
		profile: func() Profile {
			p := defaultProfile(Aggressive)
			p.Selection = SelectLeader
			p.Loyal = false
			p.BidMode = BidMultiple
			p.Counter = CounterAlways
			p.DistanceWeight = 20
			p.SafetyWeight = 1
			p.CenterWeight = 0.5
			return p
		},
	},
	Underdog: {
		description: "backs the smallest pool with a fruit on the board for a bigger payout share",
		profile: func() Profile {
			p := defaultProfile(Underdog)
			p.Selection = SelectUnderdog
			p.Counter = CounterHostile
			return p
		},
	},
	Conservative: {
		description: "bids the floor, never counters and sits out rounds while behind",
		profile: func() Profile {
			p := defaultProfile(Conservative)
			p.Selection = SelectExpectedValue
			p.Counter = CounterNever
			p.SkipWhenBehind = true
			p.SafetyWeight = 6
			return p
		},
	},
	Random: {
		description: "picks a random valid direction for a random team",
		profile: func() Profile {
			p := defaultProfile(Random)
			p.Selection = SelectRandom
			p.RandomDirection = true
			p.Counter = CounterNever
			return p
		},
	},
}

// Names lists the registered strategies in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Describe(name string) (string, bool) {
	e, ok := registry[name]
	return e.description, ok
}

// Lookup returns the factory for a registered strategy.
func Lookup(name string) (Factory, bool) {
	e, ok := registry[name]
	if !ok {
		return nil, false
	}
	return func(options ...Option) Strategy {
		p := e.profile()
		for _, option := range options {
			option(&p)
		}
		return NewRuleStrategy(p)
	}, true
}

// New builds a strategy by name, applying an option map as stored in settings.
func New(name string, options map[string]any) (Strategy, error) {
	factory, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have %v)", name, Names())
	}
	opts, err := ParseOptions(options)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}
	return factory(opts...), nil
}

// ParseOptions converts a settings option map into Options. Unknown keys and values
// of the wrong kind are errors.
func ParseOptions(options map[string]any) ([]Option, error) {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Option
	for _, key := range keys {
		value := options[key]
		if build, ok := boolOptions[key]; ok {
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("option %s: want bool, got %T", key, value)
			}
			out = append(out, build(b))
			continue
		}
		build, ok := numberOptions[key]
		if !ok {
			return nil, fmt.Errorf("unknown option %q", key)
		}
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("option %s: want number, got %T", key, value)
		}
		out = append(out, build(f))
	}
	return out, nil
}

var boolOptions = map[string]func(bool) Option{
	"simpleBid":      WithSimpleBid,
	"skipWhenBehind": WithSkipWhenBehind,
}

var numberOptions = map[string]func(float64) Option{
	"bidMultiplier":     WithBidMultiplier,
	"maxOutbidFraction": WithMaxOutbidFraction,
	"seed":              func(f float64) Option { return WithSeed(uint64(f)) },
	"fruitBonus":        WithFruitBonus,
	"distanceWeight":    WithDistanceWeight,
	"safetyWeight":      WithSafetyWeight,
	"centerWeight":      WithCenterWeight,
}

// OptionKeys lists the option names settings may carry.
func OptionKeys() []string {
	var keys []string
	for k := range boolOptions {
		keys = append(keys, k)
	}
	for k := range numberOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
