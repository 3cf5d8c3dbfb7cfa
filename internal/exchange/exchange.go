// Package exchange reads and writes the portable JSON form of a schedule.
// Players are referenced by name so that a document can be loaded against
// another copy of the same roster.
package exchange

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/google/uuid"
)

const (
	FormatTag = "court-rotation/schedule"
	Version   = 1
)

type Document struct {
	Format     string        `json:"format"`
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exportedAt"`
	Config     ConfigBlock   `json:"config"`
	Roster     []RosterEntry `json:"roster"`
	Matches    []MatchEntry  `json:"matches"`
	Waiters    [][]string    `json:"waiters"`
}

type ConfigBlock struct {
	TargetGames        int `json:"targetGames"`
	MaxOpponentRepeats int `json:"maxOpponentRepeats"`
	MaxPartnerRepeats  int `json:"maxPartnerRepeats"`
	Rounds             int `json:"rounds"`
	Courts             int `json:"courts"`
}

type RosterEntry struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Skill *float64 `json:"skill,omitempty"`
}

type MatchEntry struct {
	ID      string   `json:"id"`
	Number  int      `json:"number"`
	Round   int      `json:"round"`
	Style   string   `json:"style"`
	Team1   []string `json:"team1"`
	Team2   []string `json:"team2"`
	Status  string   `json:"status"`
	Balance float64  `json:"balance"`
}

// ImportError names the document field that could not be loaded.
type ImportError struct {
	Field  string
	Reason string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %s", e.Field, e.Reason)
}

// Imported is a document resolved against a live roster.
type Imported struct {
	Config   scheduler.Config
	Schedule *scheduler.Schedule
}

// Export renders the schedule. Every player it references must be on the
// roster.
func Export(cfg scheduler.Config, roster []scheduler.Player, sched *scheduler.Schedule) ([]byte, error) {
	names := make(map[uuid.UUID]string, len(roster))
	doc := Document{
		Format:     FormatTag,
		Version:    Version,
		ExportedAt: time.Now().UTC(),
		Config: ConfigBlock{
			TargetGames:        cfg.TargetGames,
			MaxOpponentRepeats: cfg.MaxOpponentRepeats,
			MaxPartnerRepeats:  cfg.MaxPartnerRepeats,
			Rounds:             sched.RoundCount(),
			Courts:             cfg.Courts,
		},
		Roster:  make([]RosterEntry, 0, len(roster)),
		Matches: make([]MatchEntry, 0, len(sched.Matches)),
		Waiters: make([][]string, 0, len(sched.Waitlists)),
	}
	for _, p := range roster {
		names[p.ID] = p.Name
		doc.Roster = append(doc.Roster, RosterEntry{ID: p.ID.String(), Name: p.Name, Skill: p.Skill})
	}

	lookup := func(ids []uuid.UUID) ([]string, error) {
		out := make([]string, len(ids))
		for i, id := range ids {
			name, ok := names[id]
			if !ok {
				return nil, fmt.Errorf("player %s is not on the roster", id)
			}
			out[i] = name
		}
		return out, nil
	}

	for _, m := range sched.Matches {
		t1, err := lookup(m.Team1)
		if err != nil {
			return nil, fmt.Errorf("export match #%d: %w", m.Number, err)
		}
		t2, err := lookup(m.Team2)
		if err != nil {
			return nil, fmt.Errorf("export match #%d: %w", m.Number, err)
		}
		style := m.Style
		if style == "" {
			style = scheduler.StyleUnspecified
		}
		doc.Matches = append(doc.Matches, MatchEntry{
			ID:      m.ID.String(),
			Number:  m.Number,
			Round:   m.Round,
			Style:   string(style),
			Team1:   t1,
			Team2:   t2,
			Status:  string(m.Status),
			Balance: m.Balance,
		})
	}
	for r, w := range sched.Waitlists {
		waiting, err := lookup(w)
		if err != nil {
			return nil, fmt.Errorf("export waiters of round %d: %w", r, err)
		}
		doc.Waiters = append(doc.Waiters, waiting)
	}

	return json.MarshalIndent(doc, "", "  ")
}

// Import parses data and resolves every player name against roster. Missing
// match ids are replaced with fresh ones; player ids always come from the
// roster.
func Import(data []byte, roster []scheduler.Player) (*Imported, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ImportError{Field: "document", Reason: err.Error()}
	}
	if doc.Format != FormatTag {
		return nil, &ImportError{Field: "format", Reason: fmt.Sprintf("expected %q, got %q", FormatTag, doc.Format)}
	}
	if doc.Version != Version {
		return nil, &ImportError{Field: "version", Reason: fmt.Sprintf("unsupported version %d", doc.Version)}
	}

	byName := make(map[string]uuid.UUID, len(roster))
	for _, p := range roster {
		key := normalize(p.Name)
		if _, dup := byName[key]; dup {
			return nil, &ImportError{Field: "roster", Reason: fmt.Sprintf("name %q is ambiguous", p.Name)}
		}
		byName[key] = p.ID
	}
	resolve := func(field string, names []string) ([]uuid.UUID, error) {
		out := make([]uuid.UUID, len(names))
		for i, n := range names {
			id, ok := byName[normalize(n)]
			if !ok {
				return nil, &ImportError{Field: fmt.Sprintf("%s[%d]", field, i), Reason: fmt.Sprintf("unknown player %q", n)}
			}
			out[i] = id
		}
		return out, nil
	}

	sched := &scheduler.Schedule{}
	for i, e := range doc.Matches {
		field := fmt.Sprintf("matches[%d]", i)
		m, err := importMatch(field, e, resolve)
		if err != nil {
			return nil, err
		}
		sched.Matches = append(sched.Matches, m)
	}
	for r, names := range doc.Waiters {
		ids, err := resolve(fmt.Sprintf("waiters[%d]", r), names)
		if err != nil {
			return nil, err
		}
		sched.Waitlists = append(sched.Waitlists, ids)
	}

	cfg := scheduler.DefaultConfig()
	if doc.Config.TargetGames > 0 {
		cfg.TargetGames = doc.Config.TargetGames
	}
	if doc.Config.MaxOpponentRepeats > 0 {
		cfg.MaxOpponentRepeats = doc.Config.MaxOpponentRepeats
	}
	if doc.Config.Courts > 0 {
		cfg.Courts = doc.Config.Courts
	}
	cfg.MaxPartnerRepeats = doc.Config.MaxPartnerRepeats

	return &Imported{Config: cfg, Schedule: sched}, nil
}

func importMatch(field string, e MatchEntry, resolve func(string, []string) ([]uuid.UUID, error)) (scheduler.Match, error) {
	var m scheduler.Match
	for _, team := range []struct {
		name  string
		names []string
	}{{"team1", e.Team1}, {"team2", e.Team2}} {
		if len(team.names) != scheduler.TeamSize {
			return m, &ImportError{
				Field:  field + "." + team.name,
				Reason: fmt.Sprintf("expected %d players, got %d", scheduler.TeamSize, len(team.names)),
			}
		}
	}
	t1, err := resolve(field+".team1", e.Team1)
	if err != nil {
		return m, err
	}
	t2, err := resolve(field+".team2", e.Team2)
	if err != nil {
		return m, err
	}

	seen := make(map[uuid.UUID]bool, scheduler.MatchSize)
	for _, id := range append(append([]uuid.UUID(nil), t1...), t2...) {
		if seen[id] {
			return m, &ImportError{Field: field, Reason: "a player appears twice"}
		}
		seen[id] = true
	}

	style := scheduler.Style(e.Style)
	if style == "" {
		style = scheduler.StyleUnspecified
	}
	if !style.IsValid() {
		return m, &ImportError{Field: field + ".style", Reason: fmt.Sprintf("unknown style %q", e.Style)}
	}
	status := scheduler.Status(e.Status)
	if status == "" {
		status = scheduler.StatusPending
	}
	if !status.IsValid() {
		return m, &ImportError{Field: field + ".status", Reason: fmt.Sprintf("unknown status %q", e.Status)}
	}
	if e.Round < 0 {
		return m, &ImportError{Field: field + ".round", Reason: "must not be negative"}
	}

	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.New()
	}
	return scheduler.Match{
		ID:      id,
		Number:  e.Number,
		Round:   e.Round,
		Style:   style,
		Team1:   t1,
		Team2:   t2,
		Status:  status,
		Balance: e.Balance,
	}, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
