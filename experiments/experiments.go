// Package experiments plays strategies against each other on the in-process game
// master and writes per-game results as CSV.
package experiments

import (
	"context"
	"fmt"
	"path/filepath"
	"rodeo/config"
	"rodeo/engine"
	"rodeo/gamemaster"
	"rodeo/meta"
	"rodeo/metrics"
	"rodeo/strategy"

	"github.com/rs/zerolog/log"
)

// Setup describes one experiment.
type Setup struct {
	Name   string
	Agents []metrics.AgentConfig
	// Options are strategy option maps keyed by strategy name
	Options   map[string]map[string]any
	Games     int
	MaxTicks  int     // steps before a game is concluded with the score leader
	BudgetPct float64 // round budget as a share of the balance
	Seed      uint64
	// Cycle picks the configuration of the i-th game; gamemaster.Cycle when nil
	Cycle func(i int) gamemaster.Config
	// OutputDir receives the CSV files; nothing is written when empty
	OutputDir string
}

// Result is what an experiment produced.
type Result struct {
	Records  []metrics.GameRecord
	Wins     map[string]int
	Balances map[string]float64
	Dir      string
}

// Matchup pits one agent per strategy against each other, each starting with balance.
func Matchup(name string, strategies []string, balance float64) Setup {
	agents := make([]metrics.AgentConfig, 0, len(strategies))
	for i, s := range strategies {
		agents = append(agents, metrics.AgentConfig{
			ID:       i + 1,
			Name:     fmt.Sprintf("%s-%d", s, i+1),
			Strategy: s,
			Balance:  balance,
		})
	}
	return Setup{Name: name, Agents: agents}
}

type player struct {
	config metrics.AgentConfig
	loop   *engine.Loop
}

// Run plays the experiment's games. Every agent runs its own decision loop against
// the shared game; loops and the game step in lockstep, one tick per step.
func Run(ctx context.Context, setup Setup) (Result, error) {
	if len(setup.Agents) < 2 {
		return Result{}, fmt.Errorf("need at least two agents, got %d", len(setup.Agents))
	}
	if setup.Games <= 0 {
		setup.Games = meta.EXPERIMENT_GAMES
	}
	if setup.MaxTicks <= 0 {
		setup.MaxTicks = meta.MAX_TICKS
	}
	if setup.Cycle == nil {
		setup.Cycle = gamemaster.Cycle
	}
	cfg := config.Defaults()
	if setup.BudgetPct > 0 {
		cfg.MaxRoundBudgetPct = setup.BudgetPct
	}

	balances := make(map[string]float64, len(setup.Agents))
	for _, a := range setup.Agents {
		balances[a.Name] = a.Balance
	}
	g, err := gamemaster.NewGame(gameConfig(setup, 0), balances)
	if err != nil {
		return Result{}, err
	}

	result := Result{Wins: make(map[string]int), Balances: make(map[string]float64)}
	players := make([]player, 0, len(setup.Agents))
	for _, a := range setup.Agents {
		options := map[string]any{"seed": setup.Seed + uint64(a.ID)}
		for k, v := range setup.Options[a.Strategy] {
			options[k] = v
		}
		strat, err := strategy.New(a.Strategy, options)
		if err != nil {
			return Result{}, fmt.Errorf("agent %s: %w", a.Name, err)
		}

		a := a
		onGameEnd := func(m metrics.GameMetric) {
			result.Records = append(result.Records, metrics.GameRecord{
				ID:         len(result.Records) + 1,
				Agent:      a.ID,
				GameMetric: m,
			})
			if m.Won {
				result.Wins[a.Name]++
			}
		}
		loop := engine.NewLoop(g.Client(a.Name), strat,
			engine.WithConfig(cfg),
			engine.WithName(a.Name),
			engine.WithMetrics(metrics.NewCollector(a.Name, a.Strategy)),
			engine.WithGameEndHandler(onGameEnd),
		)
		players = append(players, player{config: a, loop: loop})
	}

	log.Info().Msgf("starting %s experiment with %d agents over %d games...", setup.Name, len(players), setup.Games)

	for i := 0; i < setup.Games; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 {
			if err := g.NextGame(gameConfig(setup, i)); err != nil {
				return result, err
			}
		}
		ticks := playGame(ctx, g, players, setup.MaxTicks)
		log.Info().Msgf("completed game %d of %d after %d ticks with winner: %s", i+1, setup.Games, ticks, g.Winner())
	}

	for _, p := range players {
		result.Balances[p.config.Name] = g.Balance(p.config.Name)
	}
	log.Info().Msgf("completed %s experiment", setup.Name)

	if setup.OutputDir == "" {
		return result, nil
	}
	dir, err := writeResults(setup, result)
	result.Dir = dir
	return result, err
}

func gameConfig(setup Setup, i int) gamemaster.Config {
	cfg := setup.Cycle(i)
	cfg.Seed = setup.Seed + uint64(i) + 1
	return cfg
}

// playGame steps one game to its end and lets every loop observe the result.
func playGame(ctx context.Context, g *gamemaster.Game, players []player, maxTicks int) int {
	ticks := 0
	for g.Active() {
		if ticks >= maxTicks {
			log.Warn().Int("ticks", ticks).Msg("game overran, concluding with the score leader")
			g.Conclude()
			break
		}
		// Rotate who polls first so no agent always gets the last word
		for j := range players {
			players[(ticks+j)%len(players)].loop.Tick(ctx)
		}
		g.Step()
		ticks++
	}
	for _, p := range players {
		p.loop.Tick(ctx)
	}
	return ticks
}

func writeResults(setup Setup, result Result) (string, error) {
	writer, err := metrics.NewWriter(filepath.Join(setup.OutputDir, setup.Name))
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}

	if err := writer.WriteAgentConfigs(setup.Agents); err != nil {
		return writer.Dir(), fmt.Errorf("failed to store agent configs: %w", err)
	}
	log.Info().Msg("stored agent configs")

	if err := writer.WriteGameRecords(result.Records); err != nil {
		return writer.Dir(), fmt.Errorf("failed to write game records: %w", err)
	}
	log.Info().Str("dir", writer.Dir()).Msg("stored game records")
	return writer.Dir(), nil
}
