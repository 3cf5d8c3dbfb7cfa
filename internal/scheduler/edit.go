package scheduler

import (
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// reuseBonus is added per player of the rejected match that is kept in its
// replacement.
const reuseBonus = 200.0

// Editor applies point edits to a schedule built for one roster. Every
// operation returns a new schedule and leaves its input untouched.
type Editor struct {
	cfg     Config
	ids     []uuid.UUID
	ratings Ratings
	scorer  *Scorer
}

func NewEditor(cfg Config, players []Player) (*Editor, error) {
	b, err := NewBuilder(cfg, players)
	if err != nil {
		return nil, err
	}
	return &Editor{cfg: b.cfg, ids: b.ids, ratings: b.ratings, scorer: b.scorer}, nil
}

func (e *Editor) Ratings() Ratings { return e.ratings }

// RejectAndReplace swaps the given match for the best valid group drawn from
// its own players and the round's waiters still under target. The new match
// keeps the number and round, gets a fresh id and is pending. No other match
// changes.
func (e *Editor) RejectAndReplace(sched *Schedule, matchID uuid.UUID) (*Schedule, *Match, error) {
	idx := sched.indexOf(matchID)
	if idx < 0 {
		return nil, nil, editErr("reject", ErrMatchNotFound, "match %s does not exist", matchID)
	}
	old := sched.Matches[idx]
	if old.Status == StatusApproved {
		return nil, nil, editErr("reject", ErrMatchNotEditable, "match #%d is approved", old.Number)
	}

	var approved, others []Match
	for i, m := range sched.Matches {
		if i == idx {
			continue
		}
		others = append(others, m)
		if m.Status == StatusApproved {
			approved = append(approved, m)
		}
	}
	locked := Rebuild(e.cfg.limits(), approved)
	games := Rebuild(e.cfg.limits(), others)

	pool := e.replacementPool(sched, old, games)
	if len(pool) < MatchSize {
		return nil, nil, editErr("reject", ErrNoReplacement, "only %d eligible players in round %d", len(pool), old.Round)
	}

	style := old.Style
	if style == StyleUnspecified {
		style = StyleCompetitive
	}
	reused := make(map[uuid.UUID]bool, MatchSize)
	for _, id := range old.Players() {
		reused[id] = true
	}
	// Candidates that also respect the pending matches win over those that
	// only respect the approved ones.
	var strict, loose *candidate
	forEachCombo(len(pool), MatchSize, func(c []int) {
		q := [MatchSize]uuid.UUID{pool[c[0]], pool[c[1]], pool[c[2]], pool[c[3]]}
		for _, sp := range splits(q) {
			if sameSplit(sp[0], sp[1], old.Team1, old.Team2) || !locked.CanUse(sp[0], sp[1], true) {
				continue
			}
			score := e.scorer.Score(sp[0], sp[1], style, games, ScoreOptions{TargetGames: e.cfg.TargetGames})
			for _, id := range q {
				if reused[id] {
					score += reuseBonus
				}
			}
			cand := &candidate{t1: sp[0], t2: sp[1], score: score}
			if games.CanUse(sp[0], sp[1], true) {
				if strict == nil || score > strict.score {
					strict = cand
				}
			} else if loose == nil || score > loose.score {
				loose = cand
			}
		}
	})
	best := strict
	if best == nil {
		best = loose
	}
	if best == nil {
		return nil, nil, editErr("reject", ErrNoReplacement, "no valid group for match #%d", old.Number)
	}

	out := sched.Clone()
	repl := Match{
		ID:      uuid.New(),
		Number:  old.Number,
		Round:   old.Round,
		Style:   old.Style,
		Team1:   append([]uuid.UUID(nil), best.t1...),
		Team2:   append([]uuid.UUID(nil), best.t2...),
		Status:  StatusPending,
		Balance: BalanceScore(e.ratings, best.t1, best.t2),
	}
	out.Matches[idx] = repl

	if old.Round < len(out.Waitlists) {
		w := without(out.Waitlists[old.Round], repl.Players())
		out.Waitlists[old.Round] = append(w, without(old.Players(), repl.Players())...)
	}

	log.WithFields(log.Fields{
		"number": old.Number, "round": old.Round, "old": old.ID, "new": repl.ID,
	}).Info("[scheduler.edit] match replaced")
	return out, &repl, nil
}

// replacementPool lists the rejected match's players followed by the
// round's waiters, keeping those below target. If that leaves fewer than
// four, the rejected match's players are added back.
func (e *Editor) replacementPool(sched *Schedule, old Match, games *State) []uuid.UUID {
	var waiting []uuid.UUID
	if old.Round < len(sched.Waitlists) {
		waiting = sched.Waitlists[old.Round]
	}
	var pool []uuid.UUID
	in := make(map[uuid.UUID]bool)
	for _, id := range append(old.Players(), waiting...) {
		if !in[id] && games.Games(id) < e.cfg.TargetGames {
			in[id] = true
			pool = append(pool, id)
		}
	}
	if len(pool) < MatchSize {
		for _, id := range old.Players() {
			if !in[id] {
				in[id] = true
				pool = append(pool, id)
			}
		}
	}
	return pool
}

func sameSplit(a1, a2, b1, b2 []uuid.UUID) bool {
	pa1, pa2 := pair(a1[0], a1[1]), pair(a2[0], a2[1])
	pb1, pb2 := pair(b1[0], b1[1]), pair(b2[0], b2[1])
	return (pa1 == pb1 && pa2 == pb2) || (pa1 == pb2 && pa2 == pb1)
}

type slot struct {
	match int // index into Matches, -1 for the waitlist
	team  int // 1 or 2
	pos   int
}

func (s *Schedule) locate(round int, id uuid.UUID) (slot, bool) {
	for i := range s.Matches {
		m := &s.Matches[i]
		if m.Round != round || m.Status == StatusRejected {
			continue
		}
		for j, p := range m.Team1 {
			if p == id {
				return slot{match: i, team: 1, pos: j}, true
			}
		}
		for j, p := range m.Team2 {
			if p == id {
				return slot{match: i, team: 2, pos: j}, true
			}
		}
	}
	if round < len(s.Waitlists) {
		for j, p := range s.Waitlists[round] {
			if p == id {
				return slot{match: -1, pos: j}, true
			}
		}
	}
	return slot{}, false
}

func (s *Schedule) put(round int, at slot, id uuid.UUID) {
	switch {
	case at.match < 0:
		s.Waitlists[round][at.pos] = id
	case at.team == 1:
		s.Matches[at.match].Team1[at.pos] = id
	default:
		s.Matches[at.match].Team2[at.pos] = id
	}
}

// Swap exchanges players a and b in round. Both may sit in the same match
// (on opposite teams), in two matches of the round, or one of them may be on
// the round's waitlist. The changed matches are checked against every
// approved match before the swap is accepted.
func (e *Editor) Swap(sched *Schedule, round int, a, b uuid.UUID) (*Schedule, error) {
	if a == b {
		return nil, editErr("swap", ErrInvalidSwap, "cannot swap a player with themselves")
	}
	sa, ok := sched.locate(round, a)
	if !ok {
		return nil, editErr("swap", ErrPlayerNotInRound, "player %s is not in round %d", a, round)
	}
	sb, ok := sched.locate(round, b)
	if !ok {
		return nil, editErr("swap", ErrPlayerNotInRound, "player %s is not in round %d", b, round)
	}
	if sa.match < 0 && sb.match < 0 {
		return nil, editErr("swap", ErrInvalidSwap, "both players are waiting")
	}
	if sa.match >= 0 && sa.match == sb.match && sa.team == sb.team {
		return nil, editErr("swap", ErrInvalidSwap, "players are already teammates")
	}

	var touched []int
	for _, at := range []slot{sa, sb} {
		if at.match < 0 || (len(touched) > 0 && touched[0] == at.match) {
			continue
		}
		if m := sched.Matches[at.match]; m.Status == StatusApproved {
			return nil, editErr("swap", ErrMatchNotEditable, "match #%d is approved", m.Number)
		}
		touched = append(touched, at.match)
	}

	out := sched.Clone()
	out.put(round, sa, b)
	out.put(round, sb, a)

	var approved []Match
	for _, m := range out.Matches {
		if m.Status == StatusApproved {
			approved = append(approved, m)
		}
	}
	state := Rebuild(e.cfg.limits(), approved)
	for _, i := range touched {
		m := &out.Matches[i]
		if !state.CanUse(m.Team1, m.Team2, true) {
			return nil, editErr("swap", ErrConstraintViolate,
				"match #%d would repeat a partnership, an exact group, or exceed the opponent limit", m.Number)
		}
		state.Record(m.Team1, m.Team2)
		m.Balance = BalanceScore(e.ratings, m.Team1, m.Team2)
	}
	return out, nil
}

// Retype regenerates round's matches with a new style from the same set of
// playing players. Waiters stay waiting. The new grouping is scored on the
// rounds before it and must be valid against every other round, so later
// rounds keep their content. Match numbers from the round on are
// renumbered when the round comes out short.
func (e *Editor) Retype(sched *Schedule, round int, style Style) (*Schedule, error) {
	if !style.IsValid() || style == StyleUnspecified {
		return nil, editErr("retype", ErrInvalidStyle, "unknown style %q", style)
	}

	var first = -1
	var playing []uuid.UUID
	var outside []Match
	count, number := 0, 0
	for i, m := range sched.Matches {
		if m.Round != round {
			outside = append(outside, m)
			continue
		}
		if m.Status == StatusApproved {
			return nil, editErr("retype", ErrMatchNotEditable, "round %d has approved match #%d", round, m.Number)
		}
		if first < 0 {
			first, number = i, m.Number
		}
		if m.Status != StatusRejected {
			playing = append(playing, m.Players()...)
			count++
		}
	}
	if first < 0 {
		return nil, editErr("retype", ErrRoundNotFound, "round %d has no matches", round)
	}

	b := newBuilder(e.cfg, e.ids, e.ratings)
	b.resume(sched, round-1)
	b.check = Rebuild(e.cfg.limits(), outside)
	b.number = number - 1
	picked := b.generator().generate(playing, count, style)
	if len(picked) == 0 {
		return nil, editErr("retype", ErrNoReplacement, "no valid %s grouping for round %d", style, round)
	}
	fresh := b.commit(round, style, picked)

	out := &Schedule{Waitlists: sched.Clone().Waitlists}
	for i, m := range sched.Matches {
		switch {
		case i == first:
			out.Matches = append(out.Matches, fresh...)
		case m.Round == round:
		default:
			out.Matches = append(out.Matches, m.clone())
		}
	}
	next := number
	for i := range out.Matches {
		if out.Matches[i].Round >= round {
			out.Matches[i].Number = next
			next++
		}
	}
	if idle := without(playing, matchPlayers(fresh)); len(idle) > 0 && round < len(out.Waitlists) {
		out.Waitlists[round] = append(out.Waitlists[round], idle...)
	}

	log.WithFields(log.Fields{
		"round": round, "style": style, "matches": len(fresh), "wanted": count,
	}).Info("[scheduler.edit] round retyped")
	return out, nil
}

// RegenerateFrom keeps rounds 0..k exactly as they are and reruns the round
// loop from k+1. It refuses when an approved match lies after k.
func (e *Editor) RegenerateFrom(sched *Schedule, k int) (*Schedule, error) {
	if k < 0 || k >= sched.RoundCount() {
		return nil, editErr("regenerate", ErrRoundNotFound, "round %d is outside 0..%d", k, sched.RoundCount()-1)
	}
	for _, m := range sched.Matches {
		if m.Round > k && m.Status == StatusApproved {
			return nil, editErr("regenerate", ErrApprovedInTail, "match #%d in round %d is approved", m.Number, m.Round)
		}
	}

	b := newBuilder(e.cfg, e.ids, e.ratings)
	b.resume(sched, k)
	b.run(k + 1)

	log.WithFields(log.Fields{
		"from": k + 1, "rounds": b.sched.RoundCount(), "matches": len(b.sched.Matches),
	}).Info("[scheduler.edit] tail regenerated")
	return b.sched, nil
}
