package scheduler

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// tierFraction is the share of the pool, by rating, that is preferred to sit
// out: the bottom of the pool in homogeneous rounds, the top in variety rounds.
const tierFraction = 0.4

// Waitlist tracks how often each player sat out and picks the next waiters.
type Waitlist struct {
	counts  map[uuid.UUID]int
	ratings Ratings
	seed    int64
}

func NewWaitlist(ratings Ratings, seed int64) *Waitlist {
	return &Waitlist{
		counts:  make(map[uuid.UUID]int),
		ratings: ratings,
		seed:    seed,
	}
}

func (w *Waitlist) Count(id uuid.UUID) int { return w.counts[id] }

// Record counts ids as having sat out one round.
func (w *Waitlist) Record(ids []uuid.UUID) {
	for _, id := range ids {
		w.counts[id]++
	}
}

type waitCandidate struct {
	id        uuid.UUID
	count     int
	satisfied bool
	biased    bool
	hash      uint64
}

// Select picks n players of pool to sit out round and records them.
func (w *Waitlist) Select(pool []uuid.UUID, n, round int, style Style, satisfied func(uuid.UUID) bool) []uuid.UUID {
	if n <= 0 {
		return nil
	}
	if n >= len(pool) {
		out := append([]uuid.UUID(nil), pool...)
		w.Record(out)
		return out
	}
	out := w.rank(pool, round, style, satisfied)[:n]
	w.Record(out)
	return out
}

// rank orders pool by who should sit out first, without recording anything.
// Players with the fewest sit-outs go first; satisfied players (already at
// target games) go before others with the same count; then the style's
// skill tier; then a hash of (seed, player, round).
func (w *Waitlist) rank(pool []uuid.UUID, round int, style Style, satisfied func(uuid.UUID) bool) []uuid.UUID {
	biased := w.tier(pool, style)
	cands := make([]waitCandidate, len(pool))
	for i, id := range pool {
		cands[i] = waitCandidate{
			id:     id,
			count:  w.counts[id],
			biased: biased[id],
			hash:   w.tiebreak(id, round),
		}
		if satisfied != nil {
			cands[i].satisfied = satisfied(id)
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.count != b.count {
			return a.count < b.count
		}
		if a.satisfied != b.satisfied {
			return a.satisfied
		}
		if a.biased != b.biased {
			return a.biased
		}
		if a.hash != b.hash {
			return a.hash < b.hash
		}
		return a.id.String() < b.id.String()
	})

	out := make([]uuid.UUID, len(cands))
	for i := range cands {
		out[i] = cands[i].id
	}
	return out
}

// tier marks the players the style prefers to sit out.
func (w *Waitlist) tier(pool []uuid.UUID, style Style) map[uuid.UUID]bool {
	sorted := append([]uuid.UUID(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return w.ratings.Of(sorted[i]) < w.ratings.Of(sorted[j])
	})
	k := int(float64(len(sorted)) * tierFraction)
	out := make(map[uuid.UUID]bool, k)
	if style == StyleVariety {
		for _, id := range sorted[len(sorted)-k:] {
			out[id] = true
		}
		return out
	}
	for _, id := range sorted[:k] {
		out[id] = true
	}
	return out
}

func (w *Waitlist) tiebreak(id uuid.UUID, round int) uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(w.seed))
	copy(buf[8:], id[:])
	binary.LittleEndian.PutUint64(buf[24:], uint64(round))
	return xxhash.Sum64(buf[:])
}
