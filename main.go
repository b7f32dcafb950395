package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: rodeo <command> [flags]

commands:
  start [--strategy NAME] [--detach]   run the voting daemon
  stop                                 stop the running daemon
  status                               show what the daemon is doing
  pause | resume                       stop or restart voting without stopping the daemon
  vote DIRECTION TEAM [AMOUNT]         place one vote by hand
  strategy [NAME] [--option k=v]       list strategies or select one
  analyze [--strategy NAME]            show what a strategy would vote now
  history [--limit N]                  recent votes and games from the ledger
  experiment [--games N] [--strategies a,b]  simulate strategies against each other
  reset                                clear the agent state

every command accepts --config FILE, --verbose and --json-logs`

var commands = map[string]func(ctx context.Context, args []string) error{
	"start":      startCmd,
	"stop":       stopCmd,
	"status":     statusCmd,
	"pause":      func(ctx context.Context, args []string) error { return pauseCmd(args, true) },
	"resume":     func(ctx context.Context, args []string) error { return pauseCmd(args, false) },
	"vote":       voteCmd,
	"strategy":   strategyCmd,
	"analyze":    analyzeCmd,
	"history":    historyCmd,
	"experiment": experimentCmd,
	"reset":      resetCmd,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Msgf("%s failed", os.Args[1])
		os.Exit(1)
	}
}

// common flags shared by every command
type common struct {
	configPath string
	verbose    bool
	jsonLogs   bool
}

func newFlagSet(name string) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &common{}
	fs.StringVar(&c.configPath, "config", os.Getenv("RODEO_CONFIG"), "yaml config file")
	fs.BoolVar(&c.verbose, "verbose", false, "debug logging")
	fs.BoolVar(&c.jsonLogs, "json-logs", false, "log JSON lines instead of console output")
	return fs, c
}

func setupLogging(c *common) {
	level := zerolog.InfoLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if c.jsonLogs {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
}
