package gamemaster

import (
	"context"
	"errors"
	"fmt"
	"rodeo/communication"
	"rodeo/game"
	"rodeo/utils"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrUnknownTeam      = errors.New("unknown team")
	ErrBidTooLow        = errors.New("bid below minimum")
	ErrInsufficient     = errors.New("insufficient balance")
)

type team struct {
	id     string
	score  int
	pool   float64
	fruits []game.Coord
}

// Vote is an accepted vote, kept for inspection.
type Vote struct {
	Agent     string
	Round     int
	Direction game.Direction
	Team      string
	Amount    float64
}

// Game is one running game plus the balances of the agents playing it. All methods
// are safe for concurrent use.
type Game struct {
	mu  sync.Mutex
	cfg Config
	rng *rand.Rand

	id         string
	active     bool
	round      int
	snake      []game.Coord
	heading    game.Direction
	teams      []*team
	prizePool  float64
	minBid     float64
	countdown  float64
	extensions int
	current    game.Direction
	currentBy  string
	winner     string

	balances map[string]float64
	votes    map[string]map[string]int // team -> agent -> accepted votes this game
	history  []Vote
}

// NewGame starts a game. balances seeds the accounts of the agents taking part.
func NewGame(cfg Config, balances map[string]float64) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	g := &Game{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		balances: make(map[string]float64, len(balances)),
	}
	for agent, b := range balances {
		g.balances[agent] = b
	}
	g.start(cfg)
	return g, nil
}

func (g *Game) start(cfg Config) {
	g.cfg = cfg
	g.id = uuid.NewString()
	g.active = true
	g.round = 1
	g.snake = cfg.startingSnake()
	g.heading = game.North
	g.prizePool = cfg.StartingPool
	g.winner = ""
	g.votes = make(map[string]map[string]int)
	g.history = nil

	g.teams = make([]*team, len(cfg.Teams))
	for i, id := range cfg.Teams {
		g.teams[i] = &team{id: id}
	}
	for _, t := range g.teams {
		for i := 0; i < cfg.FruitsPerTeam; i++ {
			if cell, ok := g.freeCell(); ok {
				t.fruits = append(t.fruits, cell)
			}
		}
	}
	g.resetRound()
}

// NextGame starts a new game with cfg, keeping the agents' balances.
func (g *Game) NextGame(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.start(cfg)
	return nil
}

func (g *Game) resetRound() {
	g.countdown = g.cfg.RoundLength
	g.minBid = g.cfg.MinBid
	g.extensions = 0
	g.current = ""
	g.currentBy = ""
}

// Snapshot renders the game the way the backend reports it.
func (g *Game) Snapshot() *game.RawGameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() *game.RawGameState {
	raw := &game.RawGameState{
		GameID:           g.id,
		Active:           g.active,
		Round:            g.round,
		GridRadius:       g.cfg.GridRadius,
		Snake:            game.RawSnake{Body: append([]game.Coord(nil), g.snake...)},
		PrizePool:        g.prizePool,
		MinBid:           g.minBid,
		InitialMinBid:    g.cfg.MinBid,
		Countdown:        g.countdown,
		ExtensionWindow:  g.cfg.ExtensionWindow,
		Extensions:       g.extensions,
		CurrentDirection: g.current,
		CurrentTeam:      g.currentBy,
		FruitsToWin:      g.cfg.FruitsToWin,
		Winner:           g.winner,
	}
	for _, t := range g.teams {
		raw.Teams = append(raw.Teams, game.RawTeam{
			ID:     t.id,
			Name:   t.id,
			Score:  t.score,
			Pool:   t.pool,
			Fruits: append([]game.Coord(nil), t.fruits...),
		})
	}
	return raw
}

// Vote places a paid vote for agent. The cost is taken whatever happens later; the
// vote becomes the round's direction until another one arrives.
func (g *Game) Vote(agent string, dir game.Direction, teamID string, amount float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return communication.ErrNoGame
	}
	if !g.validLocked(dir) {
		return fmt.Errorf("%w: %s", ErrInvalidDirection, dir)
	}
	if g.teamLocked(teamID) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	if dir == g.current && teamID == g.currentBy {
		return communication.ErrAlreadyActive
	}
	if amount < g.minBid {
		return fmt.Errorf("%w: %.2f < %.2f", ErrBidTooLow, amount, g.minBid)
	}
	if g.balances[agent] < amount {
		return ErrInsufficient
	}

	g.balances[agent] -= amount
	t := g.teamLocked(teamID)
	t.pool += amount
	g.prizePool += amount
	if g.votes[teamID] == nil {
		g.votes[teamID] = make(map[string]int)
	}
	g.votes[teamID][agent]++
	g.history = append(g.history, Vote{Agent: agent, Round: g.round, Direction: dir, Team: teamID, Amount: amount})

	g.current = dir
	g.currentBy = teamID
	if g.cfg.ExtensionWindow > 0 && g.countdown <= g.cfg.ExtensionWindow {
		g.countdown = g.cfg.ExtensionWindow
		g.minBid *= 2
		g.extensions++
	}
	return nil
}

// Step advances the countdown by one. When it runs out the snake moves in the
// winning direction and the next round starts, or the game ends.
func (g *Game) Step() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return
	}
	g.countdown--
	if g.countdown > 0 {
		return
	}
	g.resolveLocked()
}

func (g *Game) resolveLocked() {
	dir := g.current
	if dir == "" || !g.validLocked(dir) {
		dir = g.heading
	}
	if !g.validLocked(dir) {
		valid := g.validDirectionsLocked()
		if len(valid) == 0 {
			g.finishLocked(g.leaderLocked())
			return
		}
		dir = valid[0]
	}

	head := g.snake[0].Neighbor(dir)
	g.heading = dir
	g.snake = append([]game.Coord{head}, g.snake...)

	eaten := false
	for _, t := range g.teams {
		for i, f := range t.fruits {
			if f != head {
				continue
			}
			eaten = true
			t.score++
			t.fruits = append(t.fruits[:i], t.fruits[i+1:]...)
			if cell, ok := g.freeCell(); ok {
				t.fruits = append(t.fruits, cell)
			}
			log.Debug().Str("team", t.id).Int("score", t.score).Msg("fruit eaten")
			if t.score >= g.cfg.FruitsToWin {
				g.finishLocked(t.id)
				return
			}
			break
		}
		if eaten {
			break
		}
	}
	if !eaten {
		g.snake = g.snake[:len(g.snake)-1]
	}

	g.round++
	g.resetRound()
}

// Conclude ends a running game early, the score leader winning. Runs that cap the
// number of steps use it to close games that drag on.
func (g *Game) Conclude() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return
	}
	g.finishLocked(g.leaderLocked())
}

// finishLocked ends the game and splits the prize pool among the winning team's
// voters by number of votes.
func (g *Game) finishLocked(winner string) {
	g.active = false
	g.winner = winner

	voters := g.votes[winner]
	total := 0
	for _, n := range voters {
		total += n
	}
	if total == 0 {
		return
	}
	for agent, n := range voters {
		g.balances[agent] += g.prizePool * float64(n) / float64(total)
	}
}

func (g *Game) leaderLocked() string {
	best := g.teams[0]
	for _, t := range g.teams[1:] {
		if t.score > best.score {
			best = t
		}
	}
	return best.id
}

func (g *Game) teamLocked(id string) *team {
	for _, t := range g.teams {
		if t.id == id {
			return t
		}
	}
	return nil
}

func (g *Game) validLocked(dir game.Direction) bool {
	return dir.Valid() && utils.FindIndex(g.validDirectionsLocked(), dir) >= 0
}

func (g *Game) validDirectionsLocked() []game.Direction {
	st := game.Parse(&game.RawGameState{
		Active:     true,
		GridRadius: g.cfg.GridRadius,
		Snake:      game.RawSnake{Body: g.snake},
	})
	if st == nil {
		return nil
	}
	return st.ValidDirections
}

// freeCell picks a random cell not covered by the snake or another fruit.
func (g *Game) freeCell() (game.Coord, bool) {
	var free []game.Coord
	r := g.cfg.GridRadius
	for q := -r; q <= r; q++ {
		for s := -r; s <= r; s++ {
			c := game.Coord{Q: q, R: s}
			if !game.InBounds(c, r) || game.Occupies(g.snake, c) || g.fruitAt(c) {
				continue
			}
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return game.Coord{}, false
	}
	return free[g.rng.Intn(len(free))], true
}

func (g *Game) fruitAt(c game.Coord) bool {
	for _, t := range g.teams {
		if t == nil {
			continue
		}
		if game.Occupies(t.fruits, c) {
			return true
		}
	}
	return false
}

func (g *Game) ID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id
}

func (g *Game) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

func (g *Game) Winner() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner
}

func (g *Game) Round() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

func (g *Game) Balance(agent string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[agent]
}

// Agents lists the agents with an account, sorted.
func (g *Game) Agents() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.balances))
	for a := range g.balances {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// History returns the votes accepted this game.
func (g *Game) History() []Vote {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Vote(nil), g.history...)
}

// Client returns the game server view of one agent.
func (g *Game) Client(agent string) communication.GameServer {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.balances[agent]; !ok {
		g.balances[agent] = 0
	}
	return &agentClient{game: g, agent: agent}
}

type agentClient struct {
	game  *Game
	agent string
}

func (c *agentClient) GetGameState(_ context.Context) (*game.RawGameState, error) {
	return c.game.Snapshot(), nil
}

func (c *agentClient) GetBalance(_ context.Context) (float64, error) {
	return c.game.Balance(c.agent), nil
}

func (c *agentClient) SubmitVote(_ context.Context, dir game.Direction, teamID string, amount float64) error {
	return c.game.Vote(c.agent, dir, teamID, amount)
}
