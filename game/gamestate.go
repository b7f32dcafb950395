package game

// RawGameState is the snapshot returned by the game backend. Only the fields consumed
// by the agent are modelled.
type RawGameState struct {
	GameID           string    `json:"gameId,omitempty"`
	Active           bool      `json:"active"`
	Error            string    `json:"error,omitempty"`
	Round            int       `json:"round"`
	GridRadius       int       `json:"gridRadius"`
	Snake            RawSnake  `json:"snake"`
	Teams            []RawTeam `json:"teams"`
	PrizePool        float64   `json:"prizePool"`
	MinBid           float64   `json:"minBid"`
	InitialMinBid    float64   `json:"initialMinBid,omitempty"`
	Countdown        float64   `json:"countdown"`
	ExtensionWindow  float64   `json:"extensionWindow"`
	Extensions       int       `json:"extensions"`
	CurrentDirection Direction `json:"currentDirection,omitempty"`
	CurrentTeam      string    `json:"currentTeam,omitempty"`
	FruitsToWin      int       `json:"fruitsToWin"`
	Winner           string    `json:"winner,omitempty"`
}

// RawSnake lists occupied cells, head first.
type RawSnake struct {
	Body []Coord `json:"body"`
}

type RawTeam struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Score  int     `json:"score"`
	Pool   float64 `json:"pool"`
	Fruits []Coord `json:"fruits"`
}

// Head returns the snake head, or false if the snapshot carries no body.
func (s *RawGameState) Head() (Coord, bool) {
	if s == nil || len(s.Snake.Body) == 0 {
		return Coord{}, false
	}
	return s.Snake.Body[0], true
}
