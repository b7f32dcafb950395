// Package engine runs the decision loop: it polls the game server, tracks rounds and
// the agent's team, asks the strategy for votes on new rounds and for counter-bids
// when another participant overrides the agent's direction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"rodeo/communication"
	"rodeo/config"
	"rodeo/game"
	"rodeo/ledger"
	"rodeo/metrics"
	"rodeo/notify"
	"rodeo/strategy"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store persists the agent state and the status snapshot.
type Store interface {
	LoadAgentState() (AgentState, bool, error)
	SaveAgentState(AgentState) error
	SaveStatus(Status) error
}

// Recorder keeps the vote and game audit trail.
type Recorder interface {
	RecordVote(ctx context.Context, v ledger.VoteRecord) error
	RecordGame(ctx context.Context, g ledger.GameRecord) error
}

// Journal receives one entry per decision.
type Journal interface {
	Write(v any) error
}

type Option func(l *Loop)

func WithStore(store Store) Option {
	return func(l *Loop) {
		l.store = store
	}
}

func WithNotifier(sink notify.Sink) Option {
	return func(l *Loop) {
		if sink != nil {
			l.notifier = sink
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(l *Loop) {
		if recorder != nil {
			l.recorder = recorder
		}
	}
}

func WithJournal(journal Journal) Option {
	return func(l *Loop) {
		l.journal = journal
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(l *Loop) {
		if collector != nil {
			l.metrics = collector
		}
	}
}

// WithPauseCheck makes the loop idle while paused reports true.
func WithPauseCheck(paused func() bool) Option {
	return func(l *Loop) {
		l.paused = paused
	}
}

// WithConfig takes poll timing and the round budget from cfg.
func WithConfig(cfg config.Config) Option {
	return func(l *Loop) {
		if cfg.PollInterval > 0 {
			l.pollInterval = cfg.PollInterval
		}
		if cfg.MonitorInterval > 0 {
			l.monitorInterval = cfg.MonitorInterval
		}
		if cfg.AuthRetryDelay > 0 {
			l.authRetryDelay = cfg.AuthRetryDelay
		}
		if cfg.MaxRoundBudgetPct > 0 {
			l.budgetPct = cfg.MaxRoundBudgetPct
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithName labels log lines and ledger rows when several loops share a process.
func WithName(name string) Option {
	return func(l *Loop) {
		l.name = name
	}
}

// WithGameEndHandler is called with the agent's metrics whenever a game ends with a
// winner.
func WithGameEndHandler(fn func(metrics.GameMetric)) Option {
	return func(l *Loop) {
		l.onGameEnd = fn
	}
}

type Loop struct {
	server   communication.GameServer
	strat    strategy.Strategy
	store    Store
	notifier notify.Sink
	recorder Recorder
	journal  Journal
	metrics  metrics.Collector
	paused   func() bool
	now      func() time.Time
	name     string

	onGameEnd func(metrics.GameMetric)

	pollInterval    time.Duration
	monitorInterval time.Duration
	authRetryDelay  time.Duration
	budgetPct       float64

	mu               sync.Mutex
	state            AgentState
	phase            Phase
	inGame           bool
	isPaused         bool
	lastVote         *strategy.VoteAction
	tracking         bool
	retryVote        bool
	rateLimitedUntil time.Time
	lastError        string
	balance          float64
	round            int
}

func NewLoop(server communication.GameServer, strat strategy.Strategy, options ...Option) *Loop {
	defaults := config.Defaults()
	l := &Loop{ // Default values
		server:          server,
		strat:           strat,
		notifier:        notify.LogSink{},
		recorder:        ledger.NewNoopService(),
		metrics:         metrics.NewDummyCollector(),
		now:             time.Now,
		name:            "agent",
		pollInterval:    defaults.PollInterval,
		monitorInterval: defaults.MonitorInterval,
		authRetryDelay:  defaults.AuthRetryDelay,
		budgetPct:       defaults.MaxRoundBudgetPct,
		phase:           WaitingForGame,
	}
	for _, option := range options {
		option(l)
	}
	l.state = l.restore()
	return l
}

func (l *Loop) restore() AgentState {
	if l.store == nil {
		return NewAgentState(l.now())
	}
	st, ok, err := l.store.LoadAgentState()
	if err != nil {
		log.Warn().Err(err).Msg("could not load agent state, starting fresh")
	}
	if err != nil || !ok {
		return NewAgentState(l.now())
	}
	log.Info().Int("games", st.GamesPlayed).Int("wins", st.Wins).Msgf("%s: restored agent state", l.name)
	return st
}

// monitorDelay is the poll delay while a vote is watched for overrides. It is never
// longer than the idle interval.
func (l *Loop) monitorDelay() time.Duration {
	if l.monitorInterval < l.pollInterval {
		return l.monitorInterval
	}
	return l.pollInterval
}

// Run ticks until ctx is cancelled. Cancellation is only observed between ticks; a
// tick in progress completes its collaborator calls first.
func (l *Loop) Run(ctx context.Context) error {
	log.Info().Str("strategy", l.strat.Name()).Msgf("%s: decision loop started", l.name)
	calls := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			break
		}
		delay := l.Tick(calls)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	l.mu.Lock()
	l.saveLocked()
	l.mu.Unlock()
	log.Info().Msgf("%s: decision loop stopped", l.name)
	return nil
}

// Tick performs one step of the state machine and returns the delay before the next.
// Errors and panics end the tick, never the loop.
func (l *Loop) Tick(ctx context.Context) (delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stack", string(debug.Stack())).Msgf("%s: tick panicked: %v", l.name, r)
			l.fail(fmt.Sprintf("panic: %v", r), nil)
			delay = l.pollInterval
		}
		l.saveStatusLocked()
	}()

	l.isPaused = l.paused != nil && l.paused()
	if l.isPaused {
		log.Debug().Msgf("%s: paused", l.name)
		return l.pollInterval
	}

	raw, err := l.server.GetGameState(ctx)
	if err == nil {
		err = rawError(raw)
	}
	if communication.IsAuthError(err) {
		if l.phase != NotAuthenticated {
			l.notify(ctx, fmt.Sprintf("%s: signed out (%v), waiting for a new session", l.name, err))
		}
		l.phase = NotAuthenticated
		l.lastError = err.Error()
		log.Warn().Err(err).Msgf("%s: not authenticated, retrying in %s", l.name, l.authRetryDelay)
		return l.authRetryDelay
	}
	if err != nil {
		l.fail("fetch game state", err)
		return l.pollInterval
	}
	if l.phase == NotAuthenticated {
		l.phase = WaitingForGame
		l.lastError = ""
	}

	return l.step(ctx, game.Parse(raw))
}

// rawError maps an error payload in a snapshot onto the auth taxonomy.
func rawError(raw *game.RawGameState) error {
	if raw == nil {
		return nil
	}
	switch raw.Error {
	case "AUTH_MISSING":
		return communication.ErrAuthMissing
	case "AUTH_EXPIRED":
		return communication.ErrAuthExpired
	}
	return nil
}

func (l *Loop) step(ctx context.Context, st *game.ParsedGameState) time.Duration {
	if st == nil {
		if l.inGame {
			log.Info().Str("game", l.state.GameID).Msgf("%s: game vanished, treating it as ended", l.name)
			l.abandonGame()
		}
		l.phase = WaitingForGame
		return l.pollInterval
	}
	l.round = st.Round

	if !st.Active {
		if l.inGame || l.endedWhileAway(st) {
			l.finishGame(ctx, st)
			l.phase = GameEnded
		} else {
			l.phase = WaitingForGame
		}
		return l.pollInterval
	}

	if l.inGame && st.GameID != "" && st.GameID != l.state.GameID {
		log.Info().Str("old", l.state.GameID).Str("new", st.GameID).Msgf("%s: game changed without an end", l.name)
		l.abandonGame()
	}
	if !l.inGame {
		l.startGame(st)
	}

	if st.Round != l.state.LastRound {
		return l.newRound(ctx, st)
	}
	return l.monitor(ctx, st)
}

// endedWhileAway reports whether st is the end of the game the restored state was
// playing when the daemon stopped.
func (l *Loop) endedWhileAway(st *game.ParsedGameState) bool {
	return st.GameID != "" && st.GameID == l.state.GameID && l.state.LastRound >= 0
}

func (l *Loop) startGame(st *game.ParsedGameState) {
	l.inGame = true
	l.lastVote = nil
	l.tracking = false
	l.retryVote = false

	if st.GameID != "" && st.GameID == l.state.GameID {
		// Restarted mid-game: keep the team and round bookkeeping
		log.Info().Str("game", st.GameID).Str("team", l.state.CurrentTeam).Msgf("%s: resuming game", l.name)
		return
	}

	gameID := st.GameID
	if gameID == "" {
		gameID = uuid.NewString()
	}
	l.state.resetGame(gameID)
	l.metrics.StartGame(gameID)
	if hook, ok := l.strat.(strategy.GameStartHook); ok {
		hook.OnGameStart(st)
	}
	log.Info().Str("game", gameID).Int("teams", len(st.Teams)).Msgf("%s: game started", l.name)
	l.record(Decision{Kind: KindGameStart, Round: st.Round})
	l.saveLocked()
}

func (l *Loop) newRound(ctx context.Context, st *game.ParsedGameState) time.Duration {
	l.phase = NewRound

	balance, err := l.server.GetBalance(ctx)
	if err != nil {
		l.fail("fetch balance", err)
		return l.pollInterval
	}
	l.balance = balance

	if l.state.LastRound >= 0 {
		if hook, ok := l.strat.(strategy.RoundEndHook); ok {
			hook.OnRoundEnd(l.state.LastRound)
		}
	}
	l.state.LastRound = st.Round
	l.state.GameRounds++
	l.state.resetRound()
	l.lastVote = nil
	l.tracking = false
	l.retryVote = false

	l.vote(ctx, st, balance)
	l.saveLocked()
	if l.phase == NotAuthenticated {
		return l.authRetryDelay
	}
	if l.tracking {
		l.phase = Monitoring
		return l.monitorDelay()
	}
	return l.pollInterval
}

// vote asks the strategy for this round's vote and submits it.
func (l *Loop) vote(ctx context.Context, st *game.ParsedGameState, balance float64) {
	action := l.strat.ComputeVote(st, balance, l.state.Memory(balance, l.budgetPct))
	if !action.IsVote() {
		reason := "nothing to play"
		if action != nil {
			reason = action.Reason
		}
		log.Info().Int("round", st.Round).Float64("balance", balance).Msgf("%s: skipping round: %s", l.name, reason)
		l.metrics.AddSkip()
		l.record(Decision{Kind: KindSkip, Round: st.Round, Balance: balance, Reason: reason})
		return
	}
	l.submit(ctx, st, action, false)
}

func (l *Loop) monitor(ctx context.Context, st *game.ParsedGameState) time.Duration {
	if l.retryVote && !l.rateLimited() {
		l.phase = NewRound
		balance, err := l.server.GetBalance(ctx)
		if err != nil {
			l.fail("fetch balance", err)
			return l.pollInterval
		}
		l.balance = balance
		l.retryVote = false
		l.vote(ctx, st, balance)
		l.saveLocked()
		if l.phase == NotAuthenticated {
			return l.authRetryDelay
		}
	}

	l.phase = Monitoring
	if !l.tracking || l.lastVote == nil {
		return l.pollInterval
	}
	if st.CurrentDirection == "" || st.CurrentDirection == l.lastVote.Direction {
		return l.monitorDelay()
	}

	log.Info().Int("round", st.Round).
		Str("ours", string(l.lastVote.Direction)).
		Str("current", string(st.CurrentDirection)).
		Msgf("%s: direction overridden", l.name)

	bidder, ok := l.strat.(strategy.CounterBidder)
	if !ok {
		l.tracking = false
		return l.pollInterval
	}

	balance, err := l.server.GetBalance(ctx)
	if err != nil {
		l.fail("fetch balance", err)
		return l.monitorDelay()
	}
	l.balance = balance

	mem := l.state.Memory(balance, l.budgetPct)
	if mem.RoundBudget < st.MinBid || balance < st.MinBid {
		log.Info().Float64("budget", mem.RoundBudget).Float64("minBid", st.MinBid).Msgf("%s: round budget exhausted", l.name)
		l.decline(st, balance, "round budget exhausted")
		return l.pollInterval
	}

	action := bidder.ShouldCounterBid(st, balance, mem, *l.lastVote)
	if !action.IsVote() {
		l.decline(st, balance, "strategy declined")
		return l.pollInterval
	}
	l.submit(ctx, st, action, true)
	l.saveLocked()
	if l.phase == NotAuthenticated {
		return l.authRetryDelay
	}
	if l.tracking {
		return l.monitorDelay()
	}
	return l.pollInterval
}

// decline stops watching the round for overrides until the next one.
func (l *Loop) decline(st *game.ParsedGameState, balance float64, reason string) {
	l.tracking = false
	l.metrics.AddDecline()
	l.record(Decision{Kind: KindDecline, Round: st.Round, Balance: balance, Reason: reason, Direction: st.CurrentDirection})
}

func (l *Loop) rateLimited() bool {
	return l.now().Before(l.rateLimitedUntil)
}

// submit places a vote and books it. It reports whether the vote is now the one
// being tracked.
func (l *Loop) submit(ctx context.Context, st *game.ParsedGameState, action *strategy.VoteAction, counter bool) bool {
	kind := KindVote
	if counter {
		kind = KindCounter
	}
	if l.rateLimited() {
		log.Info().Time("until", l.rateLimitedUntil).Msgf("%s: rate limited, holding vote", l.name)
		if !counter {
			l.retryVote = true
		}
		return false
	}

	err := l.server.SubmitVote(ctx, action.Direction, action.Team, action.Amount)
	entry := Decision{
		Kind:      kind,
		Round:     st.Round,
		Team:      action.Team,
		Direction: action.Direction,
		Amount:    action.Amount,
		Reason:    action.Reason,
		Balance:   l.balance,
	}

	switch rl, limited := communication.AsRateLimit(err); {
	case err == nil:
	case errors.Is(err, communication.ErrAlreadyActive):
		log.Debug().Str("direction", string(action.Direction)).Msgf("%s: direction already active", l.name)
		l.lastVote = action
		l.tracking = true
		entry.Outcome = ledger.OutcomeAlreadyActive
		l.record(entry)
		l.ledgerVote(ctx, entry, counter)
		return true
	case limited:
		l.rateLimitedUntil = l.now().Add(rl.RetryAfter)
		if !counter {
			l.retryVote = true
		}
		l.fail("submit vote", err)
		return false
	case communication.IsAuthError(err):
		l.phase = NotAuthenticated
		if !counter {
			l.retryVote = true
		}
		l.fail("submit vote", err)
		return false
	default:
		entry.Outcome = ledger.OutcomeRejected
		l.ledgerVote(ctx, entry, counter)
		l.fail("submit vote", err)
		return false
	}

	if action.Team != l.state.CurrentTeam {
		previous := l.state.CurrentTeam
		l.state.CurrentTeam = action.Team
		if previous == "" {
			l.notify(ctx, fmt.Sprintf("%s: joined team %s", l.name, action.Team))
		} else {
			l.notify(ctx, fmt.Sprintf("%s: switched from team %s to %s", l.name, previous, action.Team))
		}
	}
	l.state.RoundSpend += action.Amount
	l.state.RoundVoteCount++
	l.state.VotesPlaced++
	l.state.GameVotes++
	l.state.GameSpend += action.Amount
	l.state.TotalSpent += action.Amount
	l.lastVote = action
	l.tracking = true
	l.lastError = ""

	l.metrics.AddVote(action.Amount, counter)
	entry.Outcome = ledger.OutcomeAccepted
	l.record(entry)
	l.ledgerVote(ctx, entry, counter)

	log.Info().
		Int("round", st.Round).
		Str("team", action.Team).
		Str("direction", string(action.Direction)).
		Float64("amount", action.Amount).
		Bool("counter", counter).
		Msgf("%s: voted (%s)", l.name, action.Reason)
	return true
}

func (l *Loop) ledgerVote(ctx context.Context, d Decision, counter bool) {
	err := l.recorder.RecordVote(ctx, ledger.VoteRecord{
		ID:        uuid.NewString(),
		GameID:    l.state.GameID,
		Round:     d.Round,
		Direction: string(d.Direction),
		Team:      d.Team,
		Amount:    d.Amount,
		Counter:   counter,
		Reason:    d.Reason,
		Strategy:  l.strat.Name(),
		Outcome:   d.Outcome,
		CreatedAt: l.now(),
	})
	if err != nil {
		log.Warn().Err(err).Msgf("%s: could not record vote", l.name)
	}
}

// finishGame books the authoritative end of a game. It runs once per game because
// it leaves the in-game state.
func (l *Loop) finishGame(ctx context.Context, st *game.ParsedGameState) {
	team := l.state.CurrentTeam
	didWin := team != "" && team == st.Winner

	l.state.GamesPlayed++
	if didWin {
		l.state.Wins++
	}
	if hook, ok := l.strat.(strategy.GameEndHook); ok {
		hook.OnGameEnd(st, didWin)
	}

	metric := l.metrics.CompleteGame(st.Winner, team)
	if l.onGameEnd != nil {
		l.onGameEnd(metric)
	}

	err := l.recorder.RecordGame(ctx, ledger.GameRecord{
		GameID:  l.state.GameID,
		Winner:  st.Winner,
		Team:    team,
		Won:     didWin,
		Votes:   l.state.GameVotes,
		Spent:   l.state.GameSpend,
		Rounds:  l.state.GameRounds,
		EndedAt: l.now(),
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicate) {
		log.Warn().Err(err).Msgf("%s: could not record game", l.name)
	}

	result := "lost"
	if didWin {
		result = "won"
	} else if team == "" {
		result = "sat out"
	}
	l.notify(ctx, fmt.Sprintf("%s: game over, %s won; we %s (%d votes, %.2f spent, record %d/%d)",
		l.name, st.Winner, result, l.state.GameVotes, l.state.GameSpend, l.state.Wins, l.state.GamesPlayed))
	log.Info().Str("winner", st.Winner).Str("team", team).Bool("won", didWin).Msgf("%s: game ended", l.name)
	l.record(Decision{Kind: KindGameEnd, Round: st.Round, Team: team, Reason: "winner " + st.Winner})

	l.inGame = false
	l.lastVote = nil
	l.tracking = false
	l.retryVote = false
	l.state.resetRounds()
	l.saveLocked()
}

// abandonGame leaves a game that disappeared without a winner. Nothing is attributed.
func (l *Loop) abandonGame() {
	l.inGame = false
	l.lastVote = nil
	l.tracking = false
	l.retryVote = false
	l.state.resetRounds()
	l.saveLocked()
}

// fail books an error at the loop boundary.
func (l *Loop) fail(op string, err error) {
	msg := op
	if err != nil {
		msg = fmt.Sprintf("%s: %v", op, err)
	}
	l.lastError = msg
	l.metrics.AddError()
	log.Warn().Err(err).Str("phase", l.phase.String()).Msgf("%s: %s failed", l.name, op)
	l.record(Decision{Kind: KindError, Round: l.round, Reason: msg})
}

func (l *Loop) notify(ctx context.Context, text string) {
	if !l.notifier.Send(ctx, text) {
		log.Debug().Msgf("%s: notification not delivered", l.name)
	}
}

func (l *Loop) record(d Decision) {
	if l.journal == nil {
		return
	}
	d.At = l.now().UTC()
	d.Agent = l.name
	d.GameID = l.state.GameID
	if err := l.journal.Write(d); err != nil {
		log.Warn().Err(err).Msgf("%s: could not write journal", l.name)
	}
}

func (l *Loop) saveLocked() {
	if l.store == nil {
		return
	}
	if err := l.store.SaveAgentState(l.state); err != nil {
		log.Warn().Err(err).Msgf("%s: could not save agent state", l.name)
	}
}

func (l *Loop) saveStatusLocked() {
	if l.store == nil {
		return
	}
	if err := l.store.SaveStatus(l.statusLocked()); err != nil {
		log.Warn().Err(err).Msgf("%s: could not save status", l.name)
	}
}

// Status returns a snapshot of the loop for display.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusLocked()
}

func (l *Loop) statusLocked() Status {
	s := Status{
		Phase:            l.phase,
		Paused:           l.isPaused,
		Strategy:         l.strat.Name(),
		Round:            l.round,
		Balance:          l.balance,
		LastError:        l.lastError,
		LastVote:         l.lastVote,
		Tracking:         l.tracking,
		RateLimitedUntil: l.rateLimitedUntil,
		Agent:            l.state,
		UpdatedAt:        l.now().UTC(),
	}
	if reporter, ok := l.strat.(interface{ Stats() strategy.Stats }); ok {
		stats := reporter.Stats()
		s.StrategyStats = &stats
	}
	return s
}

// AgentState returns a copy of the agent's bookkeeping.
func (l *Loop) AgentState() AgentState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
