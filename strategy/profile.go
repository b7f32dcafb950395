package strategy

// Selection decides which team a profile backs.
type Selection int

const (
	// SelectExpectedValue joins the score leader and weighs payout share among equals
	SelectExpectedValue Selection = iota
	// SelectLeader always backs the team leading by score
	SelectLeader
	// SelectUnderdog backs the smallest pool with a fruit on the board
	SelectUnderdog
	// SelectRandom backs a random team with a fruit on the board
	SelectRandom
)

// BidMode decides the amount of a vote.
type BidMode int

const (
	// BidFloor always pays the current minimum
	BidFloor BidMode = iota
	// BidMultiple pays BidMultiplier times the minimum
	BidMultiple
	// BidOutbid pays the minimum unless another direction is already claimed
	BidOutbid
)

// CounterMode decides how a profile reacts to a mid-round override.
type CounterMode int

const (
	CounterNever CounterMode = iota
	// CounterHostile counters only overrides that do not serve the backed team
	CounterHostile
	// CounterAlways counters any override
	CounterAlways
)

// Profile is the parameter set a RuleStrategy interprets. Every registered strategy
// is a Profile.
type Profile struct {
	Name      string
	Selection Selection
	BidMode   BidMode
	Counter   CounterMode
	// Loyal keeps backing the current team while it can still win
	Loyal bool
	// SkipWhenBehind skips rounds while the backed team trails the leader
	SkipWhenBehind bool
	// RandomDirection picks uniformly among valid directions
	RandomDirection bool

	FruitBonus     float64
	DistanceWeight float64
	SafetyWeight   float64
	CenterWeight   float64

	BidMultiplier     float64
	MaxOutbidFraction float64
	Seed              uint64
}

func defaultProfile(name string) Profile {
	return Profile{
		Name:              name,
		Loyal:             true,
		FruitBonus:        1e6,
		DistanceWeight:    10,
		SafetyWeight:      3,
		CenterWeight:      1,
		BidMultiplier:     2,
		MaxOutbidFraction: 0.5,
	}
}

type Option func(p *Profile)

func WithBidMultiplier(m float64) Option {
	return func(p *Profile) {
		if m >= 1 {
			p.BidMultiplier = m
		}
	}
}

func WithMaxOutbidFraction(f float64) Option {
	return func(p *Profile) {
		if f > 0 && f <= 1 {
			p.MaxOutbidFraction = f
		}
	}
}

// WithSimpleBid switches between paying the floor and the profile's richer bidding.
func WithSimpleBid(simple bool) Option {
	return func(p *Profile) {
		switch {
		case simple:
			p.BidMode = BidFloor
		case p.BidMode == BidFloor:
			p.BidMode = BidOutbid
		}
	}
}

func WithSkipWhenBehind(skip bool) Option {
	return func(p *Profile) {
		p.SkipWhenBehind = skip
	}
}

func WithSeed(seed uint64) Option {
	return func(p *Profile) {
		p.Seed = seed
	}
}

func WithFruitBonus(w float64) Option {
	return func(p *Profile) {
		if w > 0 {
			p.FruitBonus = w
		}
	}
}

func WithDistanceWeight(w float64) Option {
	return func(p *Profile) {
		if w >= 0 {
			p.DistanceWeight = w
		}
	}
}

func WithSafetyWeight(w float64) Option {
	return func(p *Profile) {
		if w >= 0 {
			p.SafetyWeight = w
		}
	}
}

func WithCenterWeight(w float64) Option {
	return func(p *Profile) {
		if w >= 0 {
			p.CenterWeight = w
		}
	}
}
