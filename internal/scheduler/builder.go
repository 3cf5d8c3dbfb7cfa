package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// StyleForRound is the fixed style cycle: an ultra-competitive opener, then
// competitive and variety rounds alternating.
func StyleForRound(round int) Style {
	switch {
	case round == 0:
		return StyleUltraCompetitive
	case round%2 == 1:
		return StyleCompetitive
	default:
		return StyleVariety
	}
}

// maxOverTarget is how far past TargetGames a player may be put on court
// when a round needs filling.
const maxOverTarget = 2

// Builder drives the round loop for one roster. A Builder is not safe for
// concurrent use; every scheduling call owns its own.
type Builder struct {
	cfg      Config
	ids      []uuid.UUID
	ratings  Ratings
	scorer   *Scorer
	state    *State
	waitlist *Waitlist
	sched    *Schedule
	number   int

	// check, when set, is the state candidates must be valid against. It
	// differs from state when a round is regenerated in the middle of a
	// schedule.
	check *State
}

// NewBuilder validates the configuration and roster and returns an empty
// builder.
func NewBuilder(cfg Config, players []Player) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(players) < MatchSize {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, len(players), MatchSize)
	}
	if cfg.Namespace == uuid.Nil {
		cfg.Namespace = uuid.NameSpaceOID
	}

	seen := make(map[uuid.UUID]bool, len(players))
	ids := make([]uuid.UUID, 0, len(players))
	for _, p := range players {
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.ID)
		}
		seen[p.ID] = true
		ids = append(ids, p.ID)
	}

	return newBuilder(cfg, ids, RateAll(players)), nil
}

func newBuilder(cfg Config, ids []uuid.UUID, ratings Ratings) *Builder {
	return &Builder{
		cfg:      cfg,
		ids:      ids,
		ratings:  ratings,
		scorer:   NewScorer(ratings),
		state:    NewState(cfg.limits()),
		waitlist: NewWaitlist(ratings, cfg.Seed),
		sched:    &Schedule{},
	}
}

// Generate builds a full schedule for players.
func Generate(cfg Config, players []Player) (*Schedule, error) {
	b, err := NewBuilder(cfg, players)
	if err != nil {
		return nil, err
	}
	b.run(0)
	return b.sched, nil
}

// resume loads a schedule prefix: every match and waitlist of rounds
// 0..through is replayed into the builder's state.
func (b *Builder) resume(prefix *Schedule, through int) {
	kept := &Schedule{}
	for _, m := range prefix.Matches {
		if m.Round <= through {
			kept.Matches = append(kept.Matches, m.clone())
			if m.Number > b.number {
				b.number = m.Number
			}
		}
	}
	for r := 0; r <= through && r < len(prefix.Waitlists); r++ {
		w := append([]uuid.UUID(nil), prefix.Waitlists[r]...)
		kept.Waitlists = append(kept.Waitlists, w)
		b.waitlist.Record(w)
	}
	for len(kept.Waitlists) <= through {
		kept.Waitlists = append(kept.Waitlists, nil)
	}
	b.state = Rebuild(b.cfg.limits(), kept.Matches)
	b.sched = kept
}

func (b *Builder) maxRounds() int {
	if b.cfg.MaxRounds > 0 {
		return b.cfg.MaxRounds
	}
	// Every committed round puts at least one match on court and nobody goes
	// past the games ceiling, so the loop ends on its own well before this.
	return len(b.ids)*(b.cfg.TargetGames+maxOverTarget)/MatchSize + 1
}

func (b *Builder) run(from int) {
	limit := b.maxRounds()
	for r := from; r < limit; r++ {
		if b.done() {
			return
		}
		if !b.playRound(r, StyleForRound(r)) {
			log.WithFields(log.Fields{"round": r}).Info("[scheduler.build] no valid match left below target, stopping early")
			return
		}
	}
}

func (b *Builder) done() bool {
	for _, id := range b.ids {
		if b.state.Games(id) < b.cfg.TargetGames {
			return false
		}
	}
	return true
}

func (b *Builder) satisfied(id uuid.UUID) bool {
	return b.state.Games(id) >= b.cfg.TargetGames
}

// active lists the players who may still go on court.
func (b *Builder) active() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(b.ids))
	for _, id := range b.ids {
		if b.state.Games(id) < b.cfg.TargetGames+maxOverTarget {
			out = append(out, id)
		}
	}
	return out
}

// matchesWanted is the court count, capped by the roster and, near the end,
// by the games still missing.
func (b *Builder) matchesWanted() int {
	m := min(b.cfg.Courts, len(b.ids)/MatchSize)
	deficit := 0
	for _, id := range b.ids {
		if d := b.cfg.TargetGames - b.state.Games(id); d > 0 {
			deficit += d
		}
	}
	need := int(math.Ceil(float64(deficit) / MatchSize))
	return min(m, need)
}

// playRound generates and commits round r. It reports false when no valid
// match is left for the players below target, in which case no state
// changes.
func (b *Builder) playRound(r int, style Style) bool {
	active := b.active()
	m := min(b.matchesWanted(), len(active)/MatchSize)
	if m == 0 {
		return false
	}

	order := b.waitlist.rank(active, r, style, b.satisfied)
	waiters := order[:len(active)-m*MatchSize]
	playing := without(active, waiters)

	picked := b.fill(style, playing, waiters, m)
	if len(picked) == 0 {
		return false
	}
	matches := b.commit(r, style, picked)

	// Everyone off court sits: the selected waiters, players a short round
	// left over and players at the games ceiling.
	onCourt := matchPlayers(matches)
	sitting := without(waiters, onCourt)
	sitting = append(sitting, without(without(b.ids, waiters), onCourt)...)
	b.waitlist.Record(sitting)

	for len(b.sched.Waitlists) < r {
		b.sched.Waitlists = append(b.sched.Waitlists, nil)
	}
	b.sched.Waitlists = append(b.sched.Waitlists[:r], sitting)

	log.WithFields(log.Fields{
		"round": r, "style": style, "matches": len(matches), "wanted": m, "waiting": len(sitting),
	}).Debug("[scheduler.build] round committed")
	return true
}

// fill picks up to m matches for a round. The selected players are tried
// first. A short result is retried with waiters pulled back in, the last in
// the sit order first, and whatever is still missing comes from catchUp.
func (b *Builder) fill(style Style, playing, waiters []uuid.UUID, m int) []candidate {
	g := b.generator()
	picked := g.generate(playing, m, style)

	for extra := 0; len(picked) < m && extra < len(waiters); {
		extra = min(extra+MatchSize, len(waiters))
		pool := append(append([]uuid.UUID(nil), playing...), waiters[len(waiters)-extra:]...)
		if alt := g.generate(pool, m, style); len(alt) > len(picked) {
			picked = alt
		}
	}
	if len(picked) < m {
		more := b.catchUp(style, picked, m-len(picked))
		if len(more) > 0 {
			log.WithFields(log.Fields{
				"style": style, "want": m, "got": len(picked), "added": len(more),
			}).Debug("[scheduler.build] round filled from the full roster")
		}
		picked = append(picked, more...)
	}
	return picked
}

// catchUp looks for up to need more matches among the active players not
// already placed, keeping only groups with someone below target. The
// players furthest from target are scanned first; the whole pool is
// scanned when that finds nothing.
func (b *Builder) catchUp(style Style, placed []candidate, need int) []candidate {
	taken := make(map[uuid.UUID]bool)
	for i := range placed {
		for _, p := range placed[i].players() {
			taken[p] = true
		}
	}
	var open []uuid.UUID
	for _, id := range b.active() {
		if !taken[id] {
			open = append(open, id)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return b.state.Games(open[i]) < b.state.Games(open[j])
	})

	if limit := 2 * b.cfg.CandidatePool; len(open) > limit {
		if out := b.scan(style, open[:limit], need); len(out) > 0 {
			return out
		}
	}
	return b.scan(style, open, need)
}

// scan scores every valid group of pool that helps someone below target
// and takes the best disjoint ones.
func (b *Builder) scan(style Style, pool []uuid.UUID, need int) []candidate {
	check := b.validity()
	opts := ScoreOptions{TargetGames: b.cfg.TargetGames}
	var cands []candidate
	forEachCombo(len(pool), MatchSize, func(c []int) {
		q := [MatchSize]uuid.UUID{pool[c[0]], pool[c[1]], pool[c[2]], pool[c[3]]}
		if b.satisfied(q[0]) && b.satisfied(q[1]) && b.satisfied(q[2]) && b.satisfied(q[3]) {
			return
		}
		for _, sp := range splits(q) {
			if check.CanUse(sp[0], sp[1], true) {
				cands = append(cands, candidate{
					t1: sp[0], t2: sp[1],
					score: b.scorer.Score(sp[0], sp[1], style, b.state, opts),
				})
			}
		}
	})
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	used := make(map[uuid.UUID]bool)
	var out []candidate
	for _, c := range cands {
		if len(out) == need {
			break
		}
		ps := c.players()
		if used[ps[0]] || used[ps[1]] || used[ps[2]] || used[ps[3]] {
			continue
		}
		for _, p := range ps {
			used[p] = true
		}
		out = append(out, c)
	}
	return out
}

func (b *Builder) validity() *State {
	if b.check != nil {
		return b.check
	}
	return b.state
}

func (b *Builder) generator() *roundGenerator {
	return &roundGenerator{cfg: &b.cfg, ratings: b.ratings, scorer: b.scorer, state: b.state, check: b.validity()}
}

// commit turns candidates into matches, rebalancing homogeneous rounds, and
// records them in the state.
func (b *Builder) commit(r int, style Style, picked []candidate) []Match {
	out := make([]Match, 0, len(picked))
	for slot, c := range picked {
		t1, t2 := c.t1, c.t2
		if style.Homogeneous() {
			t1, t2 = b.rebalance(t1, t2)
		}
		b.number++
		m := Match{
			ID:      b.matchID(r, slot),
			Number:  b.number,
			Round:   r,
			Style:   style,
			Team1:   append([]uuid.UUID(nil), t1...),
			Team2:   append([]uuid.UUID(nil), t2...),
			Status:  StatusPending,
			Balance: BalanceScore(b.ratings, t1, t2),
		}
		b.state.Record(m.Team1, m.Team2)
		if b.check != nil {
			b.check.Record(m.Team1, m.Team2)
		}
		b.sched.Matches = append(b.sched.Matches, m)
		out = append(out, m)
	}
	return out
}

// rebalance re-picks the team split of a chosen group to minimize the team
// rating difference, keeping only splits the caps allow. It must run before
// the group is recorded.
func (b *Builder) rebalance(t1, t2 []uuid.UUID) ([]uuid.UUID, []uuid.UUID) {
	bestT1, bestT2 := t1, t2
	bestDiff := math.Abs(b.ratings.sum(t1) - b.ratings.sum(t2))
	q := [MatchSize]uuid.UUID{t1[0], t1[1], t2[0], t2[1]}
	check := b.validity()
	for _, sp := range splits(q) {
		if !check.CanUse(sp[0], sp[1], true) {
			continue
		}
		if d := math.Abs(b.ratings.sum(sp[0]) - b.ratings.sum(sp[1])); d < bestDiff {
			bestT1, bestT2, bestDiff = sp[0], sp[1], d
		}
	}
	return bestT1, bestT2
}

// matchID is derived from the run's namespace, seed, round and slot so that
// regenerating a round reproduces its ids.
func (b *Builder) matchID(round, slot int) uuid.UUID {
	return uuid.NewSHA1(b.cfg.Namespace, []byte(fmt.Sprintf("%d/%d/%d", b.cfg.Seed, round, slot)))
}

func matchPlayers(ms []Match) []uuid.UUID {
	var out []uuid.UUID
	for i := range ms {
		out = append(out, ms[i].Players()...)
	}
	return out
}

func without(ids, remove []uuid.UUID) []uuid.UUID {
	drop := make(map[uuid.UUID]bool, len(remove))
	for _, id := range remove {
		drop[id] = true
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}
