package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// GameMetric summarises one agent's decisions over one game.
type GameMetric struct {
	GameID       string
	Agent        string
	Strategy     string
	Team         string // team the agent backed last
	Winner       string
	Won          bool
	Votes        int
	CounterVotes int
	Skips        int
	Declines     int
	Errors       int
	Spent        float64
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

type Collector interface {
	StartGame(gameID string)
	AddVote(amount float64, counter bool)
	AddSkip()
	// AddDecline counts an override the strategy chose not to answer
	AddDecline()
	AddError()
	CompleteGame(winner, team string) GameMetric
}

type collector struct {
	agent    string
	strategy string

	gameID       string
	startTime    time.Time
	votes        atomic.Int32
	counterVotes atomic.Int32
	skips        atomic.Int32
	declines     atomic.Int32
	errors       atomic.Int32

	mu    sync.Mutex
	spent float64
}

func NewCollector(agent, strategy string) Collector {
	return &collector{agent: agent, strategy: strategy}
}

func (m *collector) StartGame(gameID string) {
	m.gameID = gameID
	m.startTime = time.Now()
	m.votes.Store(0)
	m.counterVotes.Store(0)
	m.skips.Store(0)
	m.declines.Store(0)
	m.errors.Store(0)
	m.mu.Lock()
	m.spent = 0
	m.mu.Unlock()
}

func (m *collector) AddVote(amount float64, counter bool) {
	m.votes.Add(1)
	if counter {
		m.counterVotes.Add(1)
	}
	m.mu.Lock()
	m.spent += amount
	m.mu.Unlock()
}

func (m *collector) AddSkip() {
	m.skips.Add(1)
}

func (m *collector) AddDecline() {
	m.declines.Add(1)
}

func (m *collector) AddError() {
	m.errors.Add(1)
}

func (m *collector) CompleteGame(winner, team string) GameMetric {
	end := time.Now()
	m.mu.Lock()
	spent := m.spent
	m.mu.Unlock()
	return GameMetric{
		GameID:       m.gameID,
		Agent:        m.agent,
		Strategy:     m.strategy,
		Team:         team,
		Winner:       winner,
		Won:          winner != "" && winner == team,
		Votes:        int(m.votes.Load()),
		CounterVotes: int(m.counterVotes.Load()),
		Skips:        int(m.skips.Load()),
		Declines:     int(m.declines.Load()),
		Errors:       int(m.errors.Load()),
		Spent:        spent,
		StartTime:    m.startTime,
		EndTime:      end,
		Duration:     end.Sub(m.startTime),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) StartGame(gameID string)                     {}
func (m *dummyCollector) AddVote(amount float64, counter bool)        {}
func (m *dummyCollector) AddSkip()                                    {}
func (m *dummyCollector) AddDecline()                                 {}
func (m *dummyCollector) AddError()                                   {}
func (m *dummyCollector) CompleteGame(winner, team string) GameMetric { return GameMetric{} }
