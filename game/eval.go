package game

// Win probability estimates keyed by fruits still needed and distance to the closest
// fruit. Rows are fruits needed (1, 2, 3+), columns are distance buckets
// (<=1, <=2, <=3, <=5, farther). Values fall monotonically along both axes.
var winProbabilities = [3][5]float64{
	{0.90, 0.75, 0.60, 0.45, 0.30},
	{0.60, 0.50, 0.40, 0.30, 0.20},
	{0.40, 0.30, 0.25, 0.20, 0.15},
}

// MinWinProbability is the floor for teams that are far away and need many fruits.
const MinWinProbability = 0.10

// WinProbability estimates a team's chance of winning from the number of fruits it
// still needs and the distance from the head to its closest fruit.
func WinProbability(fruitsNeeded, distance int) float64 {
	if fruitsNeeded <= 0 {
		return 1.0
	}

	row := fruitsNeeded - 1
	if row > 2 {
		row = 2
	}
	var col int
	switch {
	case distance <= 1:
		col = 0
	case distance <= 2:
		col = 1
	case distance <= 3:
		col = 2
	case distance <= 5:
		col = 3
	default:
		col = 4
	}

	p := winProbabilities[row][col]
	// Every fruit beyond the third makes things a little worse
	if fruitsNeeded > 3 {
		p -= 0.05 * float64(fruitsNeeded-3)
	}
	if p < MinWinProbability {
		return MinWinProbability
	}
	return p
}

// EstimatedVotes approximates how many votes a team has received from its pool.
// The backend does not report per-team vote counts, so the pool divided by the
// round's base bid stands in for it.
func EstimatedVotes(pool, initialMinBid float64) float64 {
	if initialMinBid <= 0 || pool <= 0 {
		return 0
	}
	return pool / initialMinBid
}

// PayoutShare estimates the agent's share of the prize if the team wins. Payout is
// split by vote count, so joining a team adds one voter to the denominator.
func PayoutShare(teamVotes float64, aligned bool) float64 {
	voters := teamVotes
	if !aligned {
		voters++
	}
	if voters <= 0 {
		return 1.0
	}
	return 1.0 / voters
}

// TeamWinProbability is WinProbability for a team in this state. Teams with no fruit
// on the board get the floor.
func (s *ParsedGameState) TeamWinProbability(t Team) float64 {
	if !t.HasFruit() {
		return MinWinProbability
	}
	return WinProbability(s.FruitsNeeded(t), t.ClosestFruit.Distance)
}

// ExpectedValue estimates the payout of backing t: win probability times the prize
// pool share the agent would hold.
func (s *ParsedGameState) ExpectedValue(t Team, aligned bool) float64 {
	votes := EstimatedVotes(t.Pool, s.InitialMinBid)
	return s.TeamWinProbability(t) * s.PrizePool * PayoutShare(votes, aligned)
}
