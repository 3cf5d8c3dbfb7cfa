package scheduler

import (
	"math"
	"sort"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// candidate is a scored team split of four players.
type candidate struct {
	t1, t2 []uuid.UUID
	score  float64
}

func (c *candidate) players() [MatchSize]uuid.UUID {
	return [MatchSize]uuid.UUID{c.t1[0], c.t1[1], c.t2[0], c.t2[1]}
}

// splits returns the three ways to divide four players into two pairs.
func splits(q [MatchSize]uuid.UUID) [3][2][]uuid.UUID {
	return [3][2][]uuid.UUID{
		{{q[0], q[1]}, {q[2], q[3]}},
		{{q[0], q[2]}, {q[1], q[3]}},
		{{q[0], q[3]}, {q[1], q[2]}},
	}
}

// roundGenerator scores against state and validates against check. The
// two only differ when a round is regenerated mid-schedule: later rounds
// then constrain the grouping without shaping its score.
type roundGenerator struct {
	cfg     *Config
	ratings Ratings
	scorer  *Scorer
	state   *State
	check   *State
}

// generate returns up to count non-overlapping matches drawn from playing.
// It never fails; an infeasible round comes back short.
func (g *roundGenerator) generate(playing []uuid.UUID, count int, style Style) []candidate {
	if limit := len(playing) / MatchSize; count > limit {
		count = limit
	}
	if count <= 0 {
		return nil
	}

	if style == StyleUltraCompetitive {
		picked, rest := g.quarter(playing, count)
		if len(picked) < count {
			picked = append(picked, g.search(rest, count-len(picked), style)...)
		}
		return picked
	}

	if style.Homogeneous() && len(playing) >= 2*MatchSize {
		picked := g.priority(playing, count, style)
		if len(picked) == count {
			return picked
		}
		log.WithFields(log.Fields{
			"style": style, "want": count, "got": len(picked),
		}).Debug("[scheduler.round] priority assignment short, falling back to search")
		if alt := g.search(playing, count, style); better(alt, picked) {
			return alt
		}
		return picked
	}

	return g.search(playing, count, style)
}

// search runs the backtracking strategy, retrying once with the variety
// penalties relaxed when the strict pass comes back short.
func (g *roundGenerator) search(playing []uuid.UUID, count int, style Style) []candidate {
	picked := g.backtrack(playing, count, style, false)
	if len(picked) >= count {
		return picked
	}
	relaxed := g.backtrack(playing, count, style, true)
	if better(relaxed, picked) {
		log.WithFields(log.Fields{
			"style": style, "want": count, "got": len(relaxed),
		}).Debug("[scheduler.round] using relaxed variety penalties")
		return relaxed
	}
	return picked
}

// quarter groups players by straight rating order, highest first, pairing
// 1st+4th against 2nd+3rd. Quartets that break a hard cap are returned in
// rest for the regular search.
func (g *roundGenerator) quarter(playing []uuid.UUID, count int) ([]candidate, []uuid.UUID) {
	sorted := g.byRating(playing, true)
	var picked []candidate
	var rest []uuid.UUID
	for i := 0; i < count; i++ {
		q := sorted[i*MatchSize : (i+1)*MatchSize]
		t1 := []uuid.UUID{q[0], q[3]}
		t2 := []uuid.UUID{q[1], q[2]}
		if !g.check.CanUse(t1, t2, true) {
			rest = append(rest, q...)
			continue
		}
		picked = append(picked, candidate{
			t1: t1, t2: t2,
			score: g.scorer.Score(t1, t2, StyleUltraCompetitive, g.state, ScoreOptions{}),
		})
	}
	rest = append(rest, sorted[count*MatchSize:]...)
	return picked, rest
}

// priority is the player-centric assignment: rating outliers pick first,
// then whoever has the fewest usable candidates left.
func (g *roundGenerator) priority(playing []uuid.UUID, count int, style Style) []candidate {
	sorted := g.byRating(playing, false)
	n := len(sorted)
	quartile := n / 4
	median := g.ratings.Of(sorted[n/2])

	outliers := append(append([]uuid.UUID(nil), sorted[:quartile]...), sorted[n-quartile:]...)
	sort.SliceStable(outliers, func(i, j int) bool {
		return math.Abs(g.ratings.Of(outliers[i])-median) > math.Abs(g.ratings.Of(outliers[j])-median)
	})

	cands, byPlayer := g.neighbourhoodCandidates(sorted, style)

	assigned := make(map[uuid.UUID]bool, n)
	skipped := make(map[uuid.UUID]bool)
	usable := func(ci int) bool {
		for _, p := range cands[ci].players() {
			if assigned[p] {
				return false
			}
		}
		return true
	}
	remaining := func(id uuid.UUID) int {
		c := 0
		for _, ci := range byPlayer[id] {
			if usable(ci) {
				c++
			}
		}
		return c
	}

	var picked []candidate
	next := func() (uuid.UUID, bool) {
		for _, id := range outliers {
			if !assigned[id] && !skipped[id] {
				return id, true
			}
		}
		best, bestLeft, found := uuid.Nil, math.MaxInt, false
		for _, id := range sorted {
			if assigned[id] || skipped[id] {
				continue
			}
			if left := remaining(id); left < bestLeft {
				best, bestLeft, found = id, left, true
			}
		}
		return best, found
	}

	for len(picked) < count {
		id, ok := next()
		if !ok {
			break
		}
		choice := -1
		for _, ci := range byPlayer[id] {
			if usable(ci) {
				choice = ci
				break
			}
		}
		if choice < 0 {
			skipped[id] = true
			continue
		}
		for _, p := range cands[choice].players() {
			assigned[p] = true
		}
		picked = append(picked, cands[choice])
	}
	return picked
}

// neighbourhoodCandidates builds, for every player, the valid matches formed
// with its nearest-rated neighbours. The lists in byPlayer are sorted by
// score, best first.
func (g *roundGenerator) neighbourhoodCandidates(sorted []uuid.UUID, style Style) ([]candidate, map[uuid.UUID][]int) {
	k := g.cfg.CandidatePool - 1
	if k > len(sorted)-1 {
		k = len(sorted) - 1
	}

	var cands []candidate
	seen := make(map[[2]pairKey]int)
	byPlayer := make(map[uuid.UUID][]int, len(sorted))

	for idx, id := range sorted {
		neigh := g.nearest(sorted, idx, k)
		forEachCombo(len(neigh), MatchSize-1, func(c []int) {
			q := [MatchSize]uuid.UUID{id, neigh[c[0]], neigh[c[1]], neigh[c[2]]}
			for _, sp := range splits(q) {
				key := [2]pairKey{pair(sp[0][0], sp[0][1]), pair(sp[1][0], sp[1][1])}
				if key[0].a.String() > key[1].a.String() {
					key[0], key[1] = key[1], key[0]
				}
				if _, ok := seen[key]; ok {
					continue
				}
				if !g.valid(sp[0], sp[1], style, false) {
					seen[key] = -1
					continue
				}
				cands = append(cands, candidate{
					t1: sp[0], t2: sp[1],
					score: g.scorer.Score(sp[0], sp[1], style, g.state, ScoreOptions{}),
				})
				ci := len(cands) - 1
				seen[key] = ci
				for _, p := range q {
					byPlayer[p] = append(byPlayer[p], ci)
				}
			}
		})
	}

	for id, list := range byPlayer {
		sort.SliceStable(list, func(i, j int) bool { return cands[list[i]].score > cands[list[j]].score })
		byPlayer[id] = list
	}
	return cands, byPlayer
}

// nearest returns the k players closest in rating to sorted[idx].
func (g *roundGenerator) nearest(sorted []uuid.UUID, idx, k int) []uuid.UUID {
	out := make([]uuid.UUID, 0, k)
	lo, hi := idx-1, idx+1
	r := g.ratings.Of(sorted[idx])
	for len(out) < k && (lo >= 0 || hi < len(sorted)) {
		switch {
		case lo < 0:
			out = append(out, sorted[hi])
			hi++
		case hi >= len(sorted):
			out = append(out, sorted[lo])
			lo--
		case r-g.ratings.Of(sorted[lo]) <= g.ratings.Of(sorted[hi])-r:
			out = append(out, sorted[lo])
			lo--
		default:
			out = append(out, sorted[hi])
			hi++
		}
	}
	return out
}

// backtrack splits the pool into windows of at most CandidatePool players
// and solves each window exactly within the search budget.
func (g *roundGenerator) backtrack(playing []uuid.UUID, count int, style Style, relaxed bool) []candidate {
	var picked []candidate
	for _, window := range g.windows(playing, count, style) {
		need := count - len(picked)
		if need <= 0 {
			break
		}
		if w := len(window) / MatchSize; need > w {
			need = w
		}
		picked = append(picked, g.solveWindow(window, need, style, relaxed)...)
	}

	// Players stranded in different windows get pooled for another pass.
	for len(picked) < count {
		rest := g.byRating(without(playing, candidatePlayers(picked)), false)
		if len(rest) > g.cfg.CandidatePool {
			rest = rest[:g.cfg.CandidatePool]
		}
		if len(rest) < MatchSize {
			break
		}
		more := g.solveWindow(rest, min(count-len(picked), len(rest)/MatchSize), style, relaxed)
		if len(more) == 0 {
			break
		}
		picked = append(picked, more...)
	}
	return picked
}

func candidatePlayers(cs []candidate) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(cs)*MatchSize)
	for i := range cs {
		ps := cs[i].players()
		out = append(out, ps[:]...)
	}
	return out
}

// windows partitions the pool. Homogeneous rounds use contiguous rating
// bands; variety rounds deal players round-robin so that every window spans
// the full rating range.
func (g *roundGenerator) windows(playing []uuid.UUID, count int, style Style) [][]uuid.UUID {
	if len(playing) <= g.cfg.CandidatePool {
		return [][]uuid.UUID{playing}
	}
	size := (g.cfg.CandidatePool / MatchSize) * MatchSize
	sorted := g.byRating(playing, false)
	n := (len(sorted) + size - 1) / size

	out := make([][]uuid.UUID, n)
	if style == StyleVariety {
		for i, id := range sorted {
			out[i%n] = append(out[i%n], id)
		}
		return out
	}
	for i := 0; i < n; i++ {
		end := (i + 1) * size
		if end > len(sorted) {
			end = len(sorted)
		}
		out[i] = sorted[i*size : end]
	}
	return out
}

func (g *roundGenerator) solveWindow(window []uuid.UUID, k int, style Style, relaxed bool) []candidate {
	var cands []candidate
	forEachCombo(len(window), MatchSize, func(c []int) {
		q := [MatchSize]uuid.UUID{window[c[0]], window[c[1]], window[c[2]], window[c[3]]}
		for _, sp := range splits(q) {
			if !g.valid(sp[0], sp[1], style, relaxed) {
				continue
			}
			cands = append(cands, candidate{
				t1: sp[0], t2: sp[1],
				score: g.scorer.Score(sp[0], sp[1], style, g.state, ScoreOptions{Relaxed: relaxed}),
			})
		}
	})
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	s := &coverSearch{
		players: window,
		index:   make(map[uuid.UUID]int, len(window)),
		byPos:   make([][]int, len(window)),
		cands:   cands,
		used:    make([]bool, len(window)),
		k:       k,
		budget:  g.cfg.SearchBudget,
		top:     cands[0].score,
	}
	for i, id := range window {
		s.index[id] = i
	}
	for ci := range cands {
		first := len(window)
		for _, p := range cands[ci].players() {
			if i := s.index[p]; i < first {
				first = i
			}
		}
		s.byPos[first] = append(s.byPos[first], ci)
	}
	s.run(0, 0)

	out := make([]candidate, len(s.best))
	for i, ci := range s.best {
		out[i] = cands[ci]
	}
	return out
}

// valid applies the hard caps and, unless relaxed, the style's variety cap.
func (g *roundGenerator) valid(t1, t2 []uuid.UUID, style Style, relaxed bool) bool {
	if !g.check.CanUse(t1, t2, true) {
		return false
	}
	if relaxed {
		return true
	}
	limit := g.scorer.weightsFor(style).VarietyCap
	all := append(append(make([]uuid.UUID, 0, MatchSize), t1...), t2...)
	return limit <= 0 || g.state.maxTogether(all) < limit
}

func (g *roundGenerator) byRating(ids []uuid.UUID, desc bool) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := g.ratings.Of(out[i]), g.ratings.Of(out[j])
		if ri != rj {
			if desc {
				return ri > rj
			}
			return ri < rj
		}
		return out[i].String() < out[j].String()
	})
	return out
}

// coverSearch selects up to k disjoint candidates maximizing first the
// number of matches and then the total score. Each candidate is filed under
// its lowest-indexed player so every selection is visited once.
type coverSearch struct {
	players []uuid.UUID
	index   map[uuid.UUID]int
	byPos   [][]int
	cands   []candidate
	used    []bool
	k       int
	budget  int
	nodes   int
	top     float64

	chosen    []int
	best      []int
	bestScore float64
}

func (s *coverSearch) run(pos int, score float64) {
	if s.nodes >= s.budget {
		return
	}
	s.nodes++

	if len(s.chosen) > len(s.best) || len(s.chosen) == len(s.best) && len(s.best) > 0 && score > s.bestScore {
		s.best = append(s.best[:0:0], s.chosen...)
		s.bestScore = score
	}
	if len(s.chosen) == s.k {
		return
	}

	for pos < len(s.players) && s.used[pos] {
		pos++
	}
	if pos >= len(s.players) {
		return
	}

	free := 0
	for i := pos; i < len(s.players); i++ {
		if !s.used[i] {
			free++
		}
	}
	reach := len(s.chosen) + min(s.k-len(s.chosen), free/MatchSize)
	if reach < len(s.best) {
		return
	}
	if reach == len(s.best) && score+float64(reach-len(s.chosen))*s.top <= s.bestScore {
		return
	}

	for _, ci := range s.byPos[pos] {
		ps := s.cands[ci].players()
		if !s.free(ps) {
			continue
		}
		s.mark(ps, true)
		s.chosen = append(s.chosen, ci)
		s.run(pos+1, score+s.cands[ci].score)
		s.chosen = s.chosen[:len(s.chosen)-1]
		s.mark(ps, false)
	}

	// leave players[pos] out of this round
	s.used[pos] = true
	s.run(pos+1, score)
	s.used[pos] = false
}

func (s *coverSearch) free(ps [MatchSize]uuid.UUID) bool {
	for _, p := range ps {
		if s.used[s.index[p]] {
			return false
		}
	}
	return true
}

func (s *coverSearch) mark(ps [MatchSize]uuid.UUID, v bool) {
	for _, p := range ps {
		s.used[s.index[p]] = v
	}
}

// better prefers more matches, then a higher total score.
func better(a, b []candidate) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return total(a) > total(b)
}

func total(cs []candidate) float64 {
	var t float64
	for _, c := range cs {
		t += c.score
	}
	return t
}

// forEachCombo calls fn with every k-subset of [0, n) in lexicographic order.
// The slice passed to fn is reused between calls.
func forEachCombo(n, k int, fn func([]int)) {
	if k > n || k <= 0 {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
