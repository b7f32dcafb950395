package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"rodeo/communication"
	"rodeo/communication/client"
	"rodeo/config"
	"rodeo/engine"
	"rodeo/experiments"
	"rodeo/journal"
	"rodeo/ledger"
	"rodeo/metrics"
	"rodeo/notify"
	"rodeo/persist"
	"rodeo/player"
	"rodeo/strategy"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
)

// app is what every command works with: the resolved configuration, the data
// directory store and the saved settings.
type app struct {
	common   *common
	cfg      config.Config
	store    *persist.FileStore
	settings persist.Settings
}

func open(c *common) (*app, error) {
	setupLogging(c)
	if err := config.LoadEnvFiles(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := persist.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	settings, err := store.LoadSettings()
	if err != nil {
		return nil, err
	}
	return &app{common: c, cfg: cfg, store: store, settings: settings}, nil
}

func (a *app) server() (communication.GameServer, error) {
	url, err := a.cfg.ServerURL(a.settings.Server)
	if err != nil {
		return nil, err
	}
	tokens := client.FileToken(a.cfg.TokenFile)
	if a.cfg.Token != "" {
		tokens = client.StaticToken(a.cfg.Token)
	}
	return client.NewClientCommunicator(url,
		client.WithTokenSource(tokens),
		client.WithTimeout(a.cfg.HTTPTimeout),
	), nil
}

// daemonStore stamps the daemon's pid on every status it saves.
type daemonStore struct {
	*persist.FileStore
	pid int
}

func (s daemonStore) SaveStatus(st engine.Status) error {
	st.PID = s.pid
	return s.FileStore.SaveStatus(st)
}

func startCmd(ctx context.Context, args []string) error {
	fs, c := newFlagSet("start")
	strategyName := fs.String("strategy", "", "strategy to run, saved to the settings")
	detach := fs.Bool("detach", false, "run in the background, logging to the data dir")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}

	if *strategyName != "" {
		if _, ok := strategy.Lookup(*strategyName); !ok {
			return fmt.Errorf("unknown strategy %q (have %v)", *strategyName, strategy.Names())
		}
		a.settings, err = a.store.UpdateSettings(func(s *persist.Settings) { s.Strategy = *strategyName })
		if err != nil {
			return err
		}
	}
	if *detach {
		return a.detach()
	}
	return a.runDaemon(ctx)
}

// detach starts the daemon again as a session leader with its output in the data
// directory's log file.
func (a *app) detach() error {
	if pid, running := persist.Running(a.store.PIDPath()); running {
		return fmt.Errorf("%w (pid %d)", persist.ErrRunning, pid)
	}
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	logPath := filepath.Join(a.cfg.DataDir, "rodeo.log")
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	childArgs := []string{"start", "--json-logs"}
	if a.common.configPath != "" {
		childArgs = append(childArgs, "--config", a.common.configPath)
	}
	if a.common.verbose {
		childArgs = append(childArgs, "--verbose")
	}
	cmd := exec.Command(exe, childArgs...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	fmt.Printf("daemon started (pid %d), logging to %s\n", cmd.Process.Pid, logPath)
	return cmd.Process.Release()
}

func (a *app) runDaemon(ctx context.Context) error {
	lock, err := persist.AcquirePID(a.store.PIDPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	server, err := a.server()
	if err != nil {
		return err
	}
	strat, err := a.settings.NewStrategy()
	if err != nil {
		return err
	}

	recorder, err := ledger.Open(a.cfg.Ledger.Driver, a.cfg.Ledger.DSN)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer recorder.Close()

	decisions := journal.NewWriter(filepath.Join(a.cfg.DataDir, "journal"))
	defer decisions.Close()

	sinks := []notify.Sink{notify.LogSink{}}
	if url := a.cfg.Notify.WebsocketURL; url != "" {
		ws := notify.NewWebSocketSink(url, "rodeo")
		defer ws.Close()
		sinks = append(sinks, ws)
	}

	loop := engine.NewLoop(server, strat,
		engine.WithConfig(a.cfg),
		engine.WithStore(daemonStore{FileStore: a.store, pid: os.Getpid()}),
		engine.WithPauseCheck(a.store.Paused),
		engine.WithNotifier(notify.Multi(sinks...)),
		engine.WithRecorder(recorder),
		engine.WithJournal(decisions),
		engine.WithMetrics(metrics.NewCollector("rodeo", strat.Name())),
		engine.WithName("rodeo"),
		engine.WithGameEndHandler(func(m metrics.GameMetric) {
			log.Info().
				Int("votes", m.Votes).
				Int("counters", m.CounterVotes).
				Int("skips", m.Skips).
				Float64("spent", m.Spent).
				Dur("duration", m.Duration).
				Msgf("game %s summary", m.GameID)
		}),
	)
	serverURL, _ := a.cfg.ServerURL(a.settings.Server)
	log.Info().Str("server", serverURL).Str("strategy", strat.Name()).Int("pid", os.Getpid()).Msg("daemon starting")
	return loop.Run(ctx)
}

func stopCmd(_ context.Context, args []string) error {
	fs, c := newFlagSet("stop")
	wait := fs.Duration("wait", 10*time.Second, "how long to wait for the daemon to exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}
	pid, err := persist.SignalStop(a.store.PIDPath())
	if err != nil {
		return err
	}
	deadline := time.Now().Add(*wait)
	for time.Now().Before(deadline) {
		if _, running := persist.Running(a.store.PIDPath()); !running {
			fmt.Printf("daemon stopped (pid %d)\n", pid)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) still running after %s", pid, *wait)
}

func statusCmd(_ context.Context, args []string) error {
	fs, c := newFlagSet("status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}
	st, ok, err := a.store.LoadStatus()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	if pid, running := persist.Running(a.store.PIDPath()); running {
		fmt.Fprintf(w, "daemon\trunning (pid %d)\n", pid)
	} else {
		fmt.Fprintf(w, "daemon\tstopped\n")
	}
	fmt.Fprintf(w, "strategy\t%s\n", a.settings.Strategy)
	fmt.Fprintf(w, "paused\t%v\n", a.settings.Paused)
	if !ok {
		fmt.Fprintf(w, "phase\tno status yet\n")
		return w.Flush()
	}

	agent := st.Agent
	fmt.Fprintf(w, "phase\t%s\n", st.Phase)
	fmt.Fprintf(w, "round\t%d\n", st.Round)
	fmt.Fprintf(w, "balance\t%.2f\n", st.Balance)
	fmt.Fprintf(w, "team\t%s\n", orDash(agent.CurrentTeam))
	fmt.Fprintf(w, "record\t%d wins / %d games\n", agent.Wins, agent.GamesPlayed)
	fmt.Fprintf(w, "votes\t%d (%.2f spent, %.2f this round)\n", agent.VotesPlaced, agent.TotalSpent, agent.RoundSpend)
	if st.LastVote != nil {
		fmt.Fprintf(w, "last vote\t%s (tracking %v)\n", st.LastVote, st.Tracking)
	}
	if !st.RateLimitedUntil.IsZero() && st.RateLimitedUntil.After(time.Now()) {
		fmt.Fprintf(w, "rate limited until\t%s\n", st.RateLimitedUntil.Local().Format(time.TimeOnly))
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "last error\t%s\n", st.LastError)
	}
	fmt.Fprintf(w, "updated\t%s\n", st.UpdatedAt.Local().Format(time.DateTime))
	return w.Flush()
}

func pauseCmd(args []string, paused bool) error {
	name := "resume"
	if paused {
		name = "pause"
	}
	fs, c := newFlagSet(name)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}
	if _, err := a.store.UpdateSettings(func(s *persist.Settings) { s.Paused = paused }); err != nil {
		return err
	}
	if paused {
		fmt.Println("voting paused")
	} else {
		fmt.Println("voting resumed")
	}
	return nil
}

func voteCmd(ctx context.Context, args []string) error {
	fs, c := newFlagSet("vote")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		return errors.New("usage: rodeo vote DIRECTION TEAM [AMOUNT]")
	}
	var amount float64
	if fs.NArg() == 3 {
		v, err := strconv.ParseFloat(fs.Arg(2), 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		amount = v
	}
	a, err := open(c)
	if err != nil {
		return err
	}
	server, err := a.server()
	if err != nil {
		return err
	}

	action, err := player.NewPlayer(server).Vote(ctx, fs.Arg(0), fs.Arg(1), amount)
	if errors.Is(err, communication.ErrAlreadyActive) {
		fmt.Printf("%s for team %s is already the active direction\n", action.Direction, action.Team)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("voted %s\n", action.String())
	return nil
}

// optionFlags collects repeated --option key=value flags.
type optionFlags map[string]any

func (o optionFlags) String() string {
	parts := make([]string, 0, len(o))
	for k, v := range o {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (o optionFlags) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	if b, err := strconv.ParseBool(value); err == nil {
		o[key] = b
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("option %s: want a number or a boolean, got %q", key, value)
	}
	o[key] = f
	return nil
}

func strategyCmd(_ context.Context, args []string) error {
	fs, c := newFlagSet("strategy")
	options := optionFlags{}
	fs.Var(options, "option", "strategy option key=value, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}

	if fs.NArg() == 0 && len(options) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		for _, name := range strategy.Names() {
			mark := " "
			if name == a.settings.Strategy {
				mark = "*"
			}
			desc, _ := strategy.Describe(name)
			fmt.Fprintf(w, "%s %s\t%s\n", mark, name, desc)
		}
		fmt.Fprintf(w, "\noptions: %s\n", strings.Join(strategy.OptionKeys(), ", "))
		return w.Flush()
	}

	name := a.settings.Strategy
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	merged := map[string]any{}
	for k, v := range a.settings.Options[name] {
		merged[k] = v
	}
	for k, v := range options {
		merged[k] = v
	}
	if _, err := strategy.New(name, merged); err != nil {
		return err
	}

	_, err = a.store.UpdateSettings(func(s *persist.Settings) {
		s.Strategy = name
		if len(merged) > 0 {
			if s.Options == nil {
				s.Options = map[string]map[string]any{}
			}
			s.Options[name] = merged
		}
	})
	if err != nil {
		return err
	}
	fmt.Printf("strategy set to %s\n", name)
	if _, running := persist.Running(a.store.PIDPath()); running {
		fmt.Println("restart the daemon to use it")
	}
	return nil
}

func analyzeCmd(ctx context.Context, args []string) error {
	fs, c := newFlagSet("analyze")
	strategyName := fs.String("strategy", "", "strategy to ask instead of the selected one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}
	if *strategyName != "" {
		a.settings.Strategy = *strategyName
	}
	strat, err := a.settings.NewStrategy()
	if err != nil {
		return err
	}
	server, err := a.server()
	if err != nil {
		return err
	}
	agent, ok, err := a.store.LoadAgentState()
	if err != nil || !ok {
		agent = engine.NewAgentState(time.Now())
	}

	memory := func(balance float64) strategy.Memory {
		return agent.Memory(balance, a.cfg.MaxRoundBudgetPct)
	}
	analysis, err := player.NewPlayer(server).Analyze(ctx, strat, memory)
	if err != nil {
		return err
	}

	st := analysis.State
	fmt.Printf("round %d, head %v, min bid %.2f, prize pool %.2f, balance %.2f\n",
		st.Round, st.Head, st.MinBid, st.PrizePool, analysis.Balance)
	fmt.Printf("valid directions: %v\n\n", st.ValidDirections)

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "team\tscore\tneeds\tpool\tfruit\twin p\tEV")
	for _, t := range analysis.Teams {
		fruit := "-"
		if t.HasFruit() {
			fruit = fmt.Sprintf("%v d=%d", t.ClosestFruit.Position, t.ClosestFruit.Distance)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%s\t%.2f\t%.2f\n",
			t.ID, t.Score, t.FruitsNeeded, t.Pool, fruit, t.WinProbability, t.ExpectedValue)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%s recommends: %s\n", analysis.Strategy, analysis.Action)
	return nil
}

func historyCmd(ctx context.Context, args []string) error {
	fs, c := newFlagSet("history")
	limit := fs.Int("limit", 20, "rows to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}
	svc, err := ledger.Open(a.cfg.Ledger.Driver, a.cfg.Ledger.DSN)
	if err != nil {
		return err
	}
	defer svc.Close()

	totals, err := svc.Totals(ctx)
	if err != nil {
		return err
	}
	games, err := svc.RecentGames(ctx, *limit)
	if err != nil {
		return err
	}
	votes, err := svc.RecentVotes(ctx, *limit)
	if err != nil {
		return err
	}

	fmt.Printf("%d games, %d wins, %d votes, %.2f spent\n\n", totals.Games, totals.Wins, totals.Votes, totals.Spent)
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ended\tgame\tteam\twinner\tvotes\tspent")
	for _, g := range games {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\n",
			g.EndedAt.Local().Format(time.DateTime), g.GameID, orDash(g.Team), g.Winner, g.Votes, g.Spent)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "at\tround\tvote\tamount\toutcome\treason")
	for _, v := range votes {
		kind := v.Direction
		if v.Counter {
			kind += " (counter)"
		}
		fmt.Fprintf(w, "%s\t%d\t%s %s\t%.2f\t%s\t%s\n",
			v.CreatedAt.Local().Format(time.DateTime), v.Round, kind, v.Team, v.Amount, v.Outcome, v.Reason)
	}
	return w.Flush()
}

func experimentCmd(ctx context.Context, args []string) error {
	fs, c := newFlagSet("experiment")
	games := fs.Int("games", 0, "games to play (default from meta)")
	names := fs.String("strategies", strings.Join(strategy.Names(), ","), "comma separated strategies, one agent each")
	balance := fs.Float64("balance", 50, "starting balance of every agent")
	seed := fs.Uint64("seed", 1, "random seed")
	out := fs.String("out", "", "output directory (default <data dir>/experiments)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}

	var list []string
	for _, n := range strings.Split(*names, ",") {
		if n = strings.TrimSpace(n); n != "" {
			list = append(list, n)
		}
	}
	setup := experiments.Matchup("matchup", list, *balance)
	setup.Games = *games
	setup.Seed = *seed
	setup.Options = a.settings.Options
	setup.BudgetPct = a.cfg.MaxRoundBudgetPct
	setup.OutputDir = *out
	if setup.OutputDir == "" {
		setup.OutputDir = filepath.Join(a.cfg.DataDir, "experiments")
	}

	result, err := experiments.Run(ctx, setup)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "agent\twins\tbalance")
	for _, agent := range setup.Agents {
		fmt.Fprintf(w, "%s\t%d\t%.2f\n", agent.Name, result.Wins[agent.Name], result.Balances[agent.Name])
	}
	fmt.Fprintf(w, "\nresults in %s\n", result.Dir)
	return w.Flush()
}

func resetCmd(_ context.Context, args []string) error {
	fs, c := newFlagSet("reset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := open(c)
	if err != nil {
		return err
	}
	if pid, running := persist.Running(a.store.PIDPath()); running {
		return fmt.Errorf("stop the daemon (pid %d) first", pid)
	}
	if err := a.store.ResetAgentState(); err != nil {
		return err
	}
	fmt.Println("agent state cleared")
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
