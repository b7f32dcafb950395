package strategy

import (
	"fmt"
	"math"
	"rodeo/game"
	"rodeo/utils"
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// Stats is the bookkeeping a strategy keeps through its lifecycle hooks.
type Stats struct {
	GamesStarted int `json:"gamesStarted"`
	GamesEnded   int `json:"gamesEnded"`
	Wins         int `json:"wins"`
	WinStreak    int `json:"winStreak"`
	RoundsSeen   int `json:"roundsSeen"`
	LastRound    int `json:"lastRound"`
}

// RuleStrategy plays a Profile.
type RuleStrategy struct {
	profile Profile
	rng     *rand.Rand

	mu    sync.Mutex
	stats Stats
}

var (
	_ Strategy      = (*RuleStrategy)(nil)
	_ CounterBidder = (*RuleStrategy)(nil)
	_ GameStartHook = (*RuleStrategy)(nil)
	_ GameEndHook   = (*RuleStrategy)(nil)
	_ RoundEndHook  = (*RuleStrategy)(nil)
)

func NewRuleStrategy(profile Profile) *RuleStrategy {
	seed := profile.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RuleStrategy{
		profile: profile,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (s *RuleStrategy) Name() string {
	return s.profile.Name
}

func (s *RuleStrategy) Profile() Profile {
	return s.profile
}

func (s *RuleStrategy) ComputeVote(st *game.ParsedGameState, balance float64, mem Memory) *VoteAction {
	if !ShouldPlay(st, balance) {
		return nil
	}

	team, why, ok := s.selectTeam(st, mem)
	if !ok {
		return Skip(why)
	}
	if s.profile.SkipWhenBehind && s.behind(st, team) {
		return Skip(fmt.Sprintf("team %s trails the leader", team.ID))
	}

	dir := s.chooseDirection(st, team)
	amount := s.bidAmount(st, balance, dir)
	return Vote(dir, team.ID, amount, why)
}

// ShouldCounterBid declines whenever the remaining round budget cannot cover the
// minimum bid, whatever the profile would otherwise do.
func (s *RuleStrategy) ShouldCounterBid(st *game.ParsedGameState, balance float64, mem Memory, previous VoteAction) *VoteAction {
	if s.profile.Counter == CounterNever {
		return nil
	}
	if !ShouldPlay(st, balance) || mem.RoundBudget < st.MinBid {
		return nil
	}

	action := s.ComputeVote(st, balance, mem)
	if !action.IsVote() {
		return nil
	}
	if st.CurrentDirection == action.Direction {
		return nil
	}
	if s.profile.Counter == CounterHostile && s.friendlyOverride(st, action.Team) {
		return nil
	}

	amount := action.Amount
	if s.profile.Counter == CounterAlways {
		amount = utils.Max(amount, s.outbidAmount(st, balance))
	}
	amount = utils.Clamp(amount, st.MinBid, utils.Min(mem.RoundBudget, balance))

	reason := fmt.Sprintf("counter %s over %s", action.Direction, st.CurrentDirection)
	if previous.Direction != "" {
		reason += fmt.Sprintf(" (had %s)", previous.Direction)
	}
	return Vote(action.Direction, action.Team, amount, reason)
}

// friendlyOverride reports whether the direction currently winning still brings the
// snake closer to team's closest fruit on behalf of that same team.
func (s *RuleStrategy) friendlyOverride(st *game.ParsedGameState, teamID string) bool {
	if st.CurrentDirection == "" || st.CurrentTeam != teamID || !st.IsValid(st.CurrentDirection) {
		return false
	}
	team, ok := st.Team(teamID)
	if !ok || !team.HasFruit() {
		return false
	}
	next := st.Head.Neighbor(st.CurrentDirection)
	return game.Distance(next, team.ClosestFruit.Position) < team.ClosestFruit.Distance
}

func (s *RuleStrategy) OnGameStart(st *game.ParsedGameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.GamesStarted++
}

func (s *RuleStrategy) OnGameEnd(st *game.ParsedGameState, didWin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.GamesEnded++
	if didWin {
		s.stats.Wins++
		s.stats.WinStreak++
	} else {
		s.stats.WinStreak = 0
	}
}

func (s *RuleStrategy) OnRoundEnd(round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.RoundsSeen++
	s.stats.LastRound = round
}

func (s *RuleStrategy) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *RuleStrategy) selectTeam(st *game.ParsedGameState, mem Memory) (game.Team, string, bool) {
	if s.profile.Loyal && mem.Aligned() {
		if current, ok := st.Team(mem.CurrentTeam); ok && s.viable(st, current) {
			return current, fmt.Sprintf("stay with %s", current.ID), true
		}
	}

	switch s.profile.Selection {
	case SelectLeader:
		leader, ok := st.LeaderWithFruit()
		if !ok {
			leader, ok = st.Leader()
		}
		if !ok {
			return game.Team{}, "no teams", false
		}
		return leader, fmt.Sprintf("back leader %s", leader.ID), true

	case SelectUnderdog:
		candidates := s.alternatives(st, mem)
		if len(candidates) == 0 {
			return game.Team{}, "no team with a reachable fruit", false
		}
		best := candidates[0]
		for _, t := range candidates[1:] {
			if t.Pool < best.Pool || (t.Pool == best.Pool && t.ClosestFruit.Distance < best.ClosestFruit.Distance) {
				best = t
			}
		}
		return best, fmt.Sprintf("underdog %s (pool %.2f)", best.ID, best.Pool), true

	case SelectRandom:
		candidates := s.alternatives(st, mem)
		if len(candidates) == 0 {
			return game.Team{}, "no team with a reachable fruit", false
		}
		pick := candidates[s.rng.Intn(len(candidates))]
		return pick, fmt.Sprintf("random team %s", pick.ID), true

	default:
		return s.selectByValue(st, mem)
	}
}

// selectByValue joins the score leaders when unaligned, or a trailing team whose win
// probability matches theirs, preferring the best expected value among them. A blocked aligned team is traded for the best alternative.
func (s *RuleStrategy) selectByValue(st *game.ParsedGameState, mem Memory) (game.Team, string, bool) {
	candidates := s.alternatives(st, mem)
	if len(candidates) == 0 {
		return game.Team{}, "no team with a reachable fruit", false
	}

	if !mem.Aligned() {
		top := candidates[0].Score
		for _, t := range candidates[1:] {
			top = utils.Max(top, t.Score)
		}
		bestP := 0.0
		for _, t := range candidates {
			if t.Score == top {
				bestP = utils.Max(bestP, st.TeamWinProbability(t))
			}
		}
		// Trailing teams stay in when they are as likely to win as the leaders
		var contenders []game.Team
		for _, t := range candidates {
			if t.Score == top || st.TeamWinProbability(t) >= bestP {
				contenders = append(contenders, t)
			}
		}
		candidates = contenders
	}

	best := candidates[0]
	bestEV := st.ExpectedValue(best, false)
	for _, t := range candidates[1:] {
		ev := st.ExpectedValue(t, false)
		if ev > bestEV || (ev == bestEV && t.ClosestFruit.Distance < best.ClosestFruit.Distance) {
			best, bestEV = t, ev
		}
	}
	if mem.Aligned() {
		return best, fmt.Sprintf("switch to %s (ev %.2f)", best.ID, bestEV), true
	}
	return best, fmt.Sprintf("join %s (ev %.2f)", best.ID, bestEV), true
}

// alternatives lists teams with a fruit on the board, leaving out a current team
// that can no longer win.
func (s *RuleStrategy) alternatives(st *game.ParsedGameState, mem Memory) []game.Team {
	var out []game.Team
	for _, t := range st.TeamsWithFruit() {
		if mem.Aligned() && t.ID == mem.CurrentTeam && !s.viable(st, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// viable reports whether a team still has a path to victory: a fruit to go for and a
// score below the win threshold.
func (s *RuleStrategy) viable(st *game.ParsedGameState, t game.Team) bool {
	return t.HasFruit() && t.Score < st.FruitsToWin
}

func (s *RuleStrategy) behind(st *game.ParsedGameState, team game.Team) bool {
	leader, ok := st.Leader()
	return ok && team.Score < leader.Score
}

func (s *RuleStrategy) chooseDirection(st *game.ParsedGameState, team game.Team) game.Direction {
	if s.profile.RandomDirection {
		return st.ValidDirections[s.rng.Intn(len(st.ValidDirections))]
	}

	best := st.ValidDirections[0]
	bestScore := math.Inf(-1)
	for _, d := range st.ValidDirections {
		score := s.scoreDirection(st, team, d)
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

// scoreDirection rates moving the head in direction d. Landing on the target fruit
// outweighs every other term.
func (s *RuleStrategy) scoreDirection(st *game.ParsedGameState, team game.Team, d game.Direction) float64 {
	p := s.profile
	next := st.Head.Neighbor(d)

	var score float64
	if team.HasFruit() {
		if next == team.ClosestFruit.Position {
			score += p.FruitBonus
		} else {
			gain := float64(2*st.GridRadius - game.Distance(next, team.ClosestFruit.Position))
			score += p.DistanceWeight * gain * gain
		}
	}
	score += p.SafetyWeight * float64(game.Exits(next, st.GridRadius, st.Body, d))
	score += p.CenterWeight * float64(st.GridRadius-game.Distance(next, game.Origin))
	return score
}

func (s *RuleStrategy) bidAmount(st *game.ParsedGameState, balance float64, dir game.Direction) float64 {
	switch s.profile.BidMode {
	case BidMultiple:
		return s.outbidAmount(st, balance)
	case BidOutbid:
		if st.CurrentDirection != "" && st.CurrentDirection != dir {
			return s.outbidAmount(st, balance)
		}
	}
	return st.MinBid
}

// outbidAmount is the multiplied bid, capped by the profile's share of the balance
// and never below the minimum.
func (s *RuleStrategy) outbidAmount(st *game.ParsedGameState, balance float64) float64 {
	amount := st.MinBid * s.profile.BidMultiplier
	limit := balance * s.profile.MaxOutbidFraction
	return utils.Max(st.MinBid, utils.Min(amount, limit))
}
