package scheduler_test

import (
	"fmt"
	"testing"

	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func playerID(i int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("player-%d", i)))
}

func skill(v float64) *float64 { return &v }

// spreadRoster returns n players with skills evenly spaced over [lo, hi].
func spreadRoster(n int, lo, hi float64) []scheduler.Player {
	players := make([]scheduler.Player, n)
	for i := range players {
		s := lo
		if n > 1 {
			s = lo + (hi-lo)*float64(i)/float64(n-1)
		}
		players[i] = scheduler.Player{
			ID:    playerID(i),
			Name:  fmt.Sprintf("Player %02d", i+1),
			Skill: skill(s),
		}
	}
	return players
}

func testConfig(courts, target int) scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.Courts = courts
	cfg.TargetGames = target
	cfg.Seed = 42
	return cfg
}

func generate(t *testing.T, cfg scheduler.Config, players []scheduler.Player) *scheduler.Schedule {
	t.Helper()
	sched, err := scheduler.Generate(cfg, players)
	require.NoError(t, err)
	require.NotEmpty(t, sched.Matches)
	return sched
}

// requireDisjointRounds fails if a player shows up twice in one round,
// including that round's waitlist.
func requireDisjointRounds(t *testing.T, sched *scheduler.Schedule) {
	t.Helper()
	for r := 0; r < sched.RoundCount(); r++ {
		round := sched.Round(r)
		seen := make(map[uuid.UUID]bool)
		for _, m := range round.Matches {
			for _, id := range m.Players() {
				require.False(t, seen[id], "player %s twice in round %d", id, r)
				seen[id] = true
			}
		}
		for _, id := range round.Waitlist {
			require.False(t, seen[id], "player %s plays and waits in round %d", id, r)
			seen[id] = true
		}
	}
}

func roundMatches(sched *scheduler.Schedule, through int) []scheduler.Match {
	var out []scheduler.Match
	for _, m := range sched.Matches {
		if m.Round <= through {
			out = append(out, m)
		}
	}
	return out
}

// sitOuts counts the rounds each player spent on the waitlist.
func sitOuts(sched *scheduler.Schedule) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int)
	for r := 0; r < sched.RoundCount(); r++ {
		for _, id := range sched.Round(r).Waitlist {
			out[id]++
		}
	}
	return out
}

// validGroupLeft reports whether four players still below target could
// meet in some team split without breaking a cap.
func validGroupLeft(cfg scheduler.Config, sched *scheduler.Schedule, players []scheduler.Player) bool {
	state := scheduler.Rebuild(scheduler.Limits{
		MaxPartnerRepeats:  cfg.MaxPartnerRepeats,
		MaxOpponentRepeats: cfg.MaxOpponentRepeats,
	}, sched.Matches)

	var open []uuid.UUID
	for _, p := range players {
		if state.Games(p.ID) < cfg.TargetGames {
			open = append(open, p.ID)
		}
	}
	n := len(open)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				for d := c + 1; d < n; d++ {
					p, q, r, s := open[a], open[b], open[c], open[d]
					splits := [][2][]uuid.UUID{
						{{p, q}, {r, s}},
						{{p, r}, {q, s}},
						{{p, s}, {q, r}},
					}
					for _, sp := range splits {
						if state.CanUse(sp[0], sp[1], true) {
							return true
						}
					}
				}
			}
		}
	}
	return false
}
