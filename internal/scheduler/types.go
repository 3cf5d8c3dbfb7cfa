package scheduler

import (
	"github.com/google/uuid"
)

// TeamSize is the number of players on each side of a match.
const TeamSize = 2

// MatchSize is the number of players in one match.
const MatchSize = 2 * TeamSize

// Style controls how a round groups players.
type Style string

const (
	StyleUltraCompetitive Style = "ultra_competitive"
	StyleCompetitive      Style = "competitive"
	StyleVariety          Style = "variety"
	// StyleUnspecified is used for matches that were not produced by the
	// round loop (e.g. imported without a style tag).
	StyleUnspecified Style = "unspecified"
)

// IsValid reports whether s is one of the known styles.
func (s Style) IsValid() bool {
	switch s {
	case StyleUltraCompetitive, StyleCompetitive, StyleVariety, StyleUnspecified:
		return true
	}
	return false
}

// Homogeneous reports whether the style groups players of similar rating.
func (s Style) Homogeneous() bool {
	return s == StyleUltraCompetitive || s == StyleCompetitive
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// History is the aggregate of a player's past results. It is only used when
// no explicit skill is given.
type History struct {
	Games     int
	Wins      int
	PointDiff float64 // total over all games
}

type Player struct {
	ID      uuid.UUID
	Name    string
	Skill   *float64
	History *History
}

// Match is one scheduled 2v2 game.
type Match struct {
	ID      uuid.UUID
	Number  int
	Round   int
	Style   Style
	Team1   []uuid.UUID
	Team2   []uuid.UUID
	Status  Status
	Balance float64
}

// Players returns the four players of the match, team 1 first.
func (m *Match) Players() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m.Team1)+len(m.Team2))
	out = append(out, m.Team1...)
	return append(out, m.Team2...)
}

// Has reports whether id plays in the match.
func (m *Match) Has(id uuid.UUID) bool {
	for _, p := range m.Players() {
		if p == id {
			return true
		}
	}
	return false
}

func (m Match) clone() Match {
	m.Team1 = append([]uuid.UUID(nil), m.Team1...)
	m.Team2 = append([]uuid.UUID(nil), m.Team2...)
	return m
}

// Round is a view over the matches sharing one round index.
type Round struct {
	Index    int
	Style    Style
	Matches  []Match
	Waitlist []uuid.UUID
}

// Schedule is the ordered match list plus the waitlist of every round.
// Waitlists[i] belongs to round i.
type Schedule struct {
	Matches   []Match
	Waitlists [][]uuid.UUID
}

// RoundCount returns the number of rounds in the schedule.
func (s *Schedule) RoundCount() int {
	n := len(s.Waitlists)
	for _, m := range s.Matches {
		if m.Round+1 > n {
			n = m.Round + 1
		}
	}
	return n
}

// Round collects the matches of round idx in schedule order.
func (s *Schedule) Round(idx int) Round {
	r := Round{Index: idx, Style: StyleUnspecified}
	for _, m := range s.Matches {
		if m.Round == idx {
			r.Matches = append(r.Matches, m)
			r.Style = m.Style
		}
	}
	if idx < len(s.Waitlists) {
		r.Waitlist = s.Waitlists[idx]
	}
	return r
}

// Clone returns a deep copy of the schedule.
func (s *Schedule) Clone() *Schedule {
	out := &Schedule{
		Matches:   make([]Match, len(s.Matches)),
		Waitlists: make([][]uuid.UUID, len(s.Waitlists)),
	}
	for i, m := range s.Matches {
		out.Matches[i] = m.clone()
	}
	for i, w := range s.Waitlists {
		out.Waitlists[i] = append([]uuid.UUID(nil), w...)
	}
	return out
}

func (s *Schedule) indexOf(matchID uuid.UUID) int {
	for i := range s.Matches {
		if s.Matches[i].ID == matchID {
			return i
		}
	}
	return -1
}

// Config holds the tunables for one scheduling run.
type Config struct {
	TargetGames        int
	MaxOpponentRepeats int
	MaxPartnerRepeats  int
	Courts             int

	// CandidatePool bounds how many players the combinatorial search looks
	// at in one window. Larger pools give better schedules but cost time.
	CandidatePool int
	// SearchBudget bounds the number of search nodes per window.
	SearchBudget int
	// MaxRounds stops the round loop; 0 derives a cap from the target.
	MaxRounds int

	Seed      int64
	Namespace uuid.UUID
}

const (
	DefaultTargetGames        = 8
	DefaultMaxOpponentRepeats = 2
	DefaultCandidatePool      = 16
	DefaultSearchBudget       = 20000
)

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig() Config {
	return Config{
		TargetGames:        DefaultTargetGames,
		MaxOpponentRepeats: DefaultMaxOpponentRepeats,
		Courts:             4,
		CandidatePool:      DefaultCandidatePool,
		SearchBudget:       DefaultSearchBudget,
	}
}

// Validate checks the configuration and fills zero knobs with defaults.
func (c *Config) Validate() error {
	if c.TargetGames <= 0 {
		return &ConfigError{Field: "targetGames", Reason: "must be positive"}
	}
	if c.Courts <= 0 {
		return &ConfigError{Field: "courts", Reason: "must be positive"}
	}
	if c.MaxOpponentRepeats <= 0 {
		return &ConfigError{Field: "maxOpponentRepeats", Reason: "must be positive"}
	}
	if c.MaxPartnerRepeats < 0 {
		return &ConfigError{Field: "maxPartnerRepeats", Reason: "must not be negative"}
	}
	if c.CandidatePool == 0 {
		c.CandidatePool = DefaultCandidatePool
	}
	if c.CandidatePool < 2*MatchSize {
		return &ConfigError{Field: "candidatePool", Reason: "must be at least 8"}
	}
	if c.SearchBudget <= 0 {
		c.SearchBudget = DefaultSearchBudget
	}
	return nil
}

func (c *Config) limits() Limits {
	return Limits{MaxPartnerRepeats: c.MaxPartnerRepeats, MaxOpponentRepeats: c.MaxOpponentRepeats}
}
