package scheduler

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

type ViolationKind string

const (
	ViolationPartner  ViolationKind = "partner_repeat"
	ViolationOpponent ViolationKind = "opponent_repeat"
	ViolationGroup    ViolationKind = "group_repeat"
	ViolationRound    ViolationKind = "round_conflict"
	ViolationTeamSize ViolationKind = "team_size"
)

// Violation is one broken rule. Pair and group violations are reported once
// with their final count; Round is -1 for them.
type Violation struct {
	Kind    ViolationKind
	Players []uuid.UUID
	Count   int
	Round   int
}

// Report summarizes a finished match list.
type Report struct {
	Matches    int
	Rounds     int
	Games      map[uuid.UUID]int
	MinGames   int
	MaxGames   int
	Violations []Violation

	MeanBalance float64
	// PositiveBalance is the share of matches with a positive balance score.
	PositiveBalance float64
}

func (r *Report) OK() bool { return len(r.Violations) == 0 }

// Quality ranks reports of the same roster: violations dominate, then the
// share of balanced matches, then the games spread.
func (r *Report) Quality() float64 {
	return -1000*float64(len(r.Violations)) +
		100*r.PositiveBalance +
		r.MeanBalance/10 -
		10*float64(r.MaxGames-r.MinGames)
}

// Validate checks matches, ignoring rejected ones, against the caps in cfg.
// It only reads its input.
func Validate(cfg Config, matches []Match) Report {
	rep := Report{Games: make(map[uuid.UUID]int)}
	partners := make(map[pairKey]int)
	opponents := make(map[pairKey]int)
	groups := make(map[groupKey]int)
	inRound := make(map[int]map[uuid.UUID]int)

	var balanceSum float64
	positive := 0
	rounds := make(map[int]bool)

	for _, m := range matches {
		if m.Status == StatusRejected {
			continue
		}
		rep.Matches++
		rounds[m.Round] = true
		balanceSum += m.Balance
		if m.Balance > 0 {
			positive++
		}

		if len(m.Team1) != TeamSize || len(m.Team2) != TeamSize {
			rep.Violations = append(rep.Violations, Violation{
				Kind: ViolationTeamSize, Players: m.Players(), Count: len(m.Team1) + len(m.Team2), Round: m.Round,
			})
			continue
		}

		seen := inRound[m.Round]
		if seen == nil {
			seen = make(map[uuid.UUID]int)
			inRound[m.Round] = seen
		}
		for _, id := range m.Players() {
			rep.Games[id]++
			seen[id]++
		}

		for _, t := range [][]uuid.UUID{m.Team1, m.Team2} {
			partners[pair(t[0], t[1])]++
		}
		for _, a := range m.Team1 {
			for _, b := range m.Team2 {
				opponents[pair(a, b)]++
			}
		}
		groups[group(m.Team1, m.Team2)]++
	}

	maxPartner := 1 + cfg.MaxPartnerRepeats
	for k, n := range partners {
		if n > maxPartner {
			rep.Violations = append(rep.Violations, Violation{Kind: ViolationPartner, Players: []uuid.UUID{k.a, k.b}, Count: n, Round: -1})
		}
	}
	for k, n := range opponents {
		if n > cfg.MaxOpponentRepeats {
			rep.Violations = append(rep.Violations, Violation{Kind: ViolationOpponent, Players: []uuid.UUID{k.a, k.b}, Count: n, Round: -1})
		}
	}
	for k, n := range groups {
		if n > 1 {
			rep.Violations = append(rep.Violations, Violation{Kind: ViolationGroup, Players: append([]uuid.UUID(nil), k[:]...), Count: n, Round: -1})
		}
	}
	for r, seen := range inRound {
		for id, n := range seen {
			if n > 1 {
				rep.Violations = append(rep.Violations, Violation{Kind: ViolationRound, Players: []uuid.UUID{id}, Count: n, Round: r})
			}
		}
	}
	sortViolations(rep.Violations)

	first := true
	for _, n := range rep.Games {
		if first || n < rep.MinGames {
			rep.MinGames = n
		}
		if first || n > rep.MaxGames {
			rep.MaxGames = n
		}
		first = false
	}
	rep.Rounds = len(rounds)
	if rep.Matches > 0 {
		rep.MeanBalance = balanceSum / float64(rep.Matches)
		rep.PositiveBalance = float64(positive) / float64(rep.Matches)
	}
	return rep
}

// sortViolations gives map-built violations a stable order.
func sortViolations(vs []Violation) {
	sort.Slice(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		for k := 0; k < len(a.Players) && k < len(b.Players); k++ {
			if c := bytes.Compare(a.Players[k][:], b.Players[k][:]); c != 0 {
				return c < 0
			}
		}
		return len(a.Players) < len(b.Players)
	})
}
