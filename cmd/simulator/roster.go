package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/google/uuid"
)

// rosterEntry is one line of a roster file. Skill wins over history when
// both are present.
type rosterEntry struct {
	Name        string   `json:"name"`
	Skill       *float64 `json:"skill,omitempty"`
	GamesPlayed int      `json:"gamesPlayed,omitempty"`
	Wins        int      `json:"wins,omitempty"`
	PointDiff   float64  `json:"pointDiff,omitempty"`
}

// playerID is stable per name so repeated runs over one roster produce
// comparable exports.
func playerID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("player/"+strings.ToLower(name)))
}

func loadRoster(path string) ([]rosterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []rosterEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return entries, nil
}

// syntheticRoster spreads n skills evenly over [lo, hi] and shuffles them
// with seed.
func syntheticRoster(n int, lo, hi float64, seed int64) []rosterEntry {
	skills := make([]float64, n)
	for i := range skills {
		skills[i] = lo
		if n > 1 {
			skills[i] += (hi - lo) * float64(i) / float64(n-1)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { skills[i], skills[j] = skills[j], skills[i] })

	out := make([]rosterEntry, n)
	for i := range out {
		skill := skills[i]
		out[i] = rosterEntry{Name: fmt.Sprintf("Player %02d", i+1), Skill: &skill}
	}
	return out
}

func toPlayers(entries []rosterEntry) ([]scheduler.Player, error) {
	seen := make(map[string]bool, len(entries))
	players := make([]scheduler.Player, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("roster entry %d has no name", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("roster lists %q twice", name)
		}
		seen[key] = true

		p := scheduler.Player{ID: playerID(name), Name: name, Skill: e.Skill}
		if e.Skill == nil && e.GamesPlayed > 0 {
			p.History = &scheduler.History{Games: e.GamesPlayed, Wins: e.Wins, PointDiff: e.PointDiff}
		}
		players = append(players, p)
	}
	return players, nil
}
