package scheduler

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// Limits are the hard caps enforced by State.
type Limits struct {
	// A pair may partner 1+MaxPartnerRepeats times.
	MaxPartnerRepeats int
	// A pair may face each other at most MaxOpponentRepeats times in total.
	MaxOpponentRepeats int
}

type pairKey struct {
	a, b uuid.UUID
}

func pair(a, b uuid.UUID) pairKey {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return pairKey{a, b}
}

type groupKey [MatchSize]uuid.UUID

func group(t1, t2 []uuid.UUID) groupKey {
	ids := make([]uuid.UUID, 0, MatchSize)
	ids = append(ids, t1...)
	ids = append(ids, t2...)
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	var k groupKey
	copy(k[:], ids)
	return k
}

// State is the constraint bookkeeping of one scheduling run. It is built
// empty, updated with Record, and can be rebuilt from any match prefix.
type State struct {
	limits    Limits
	games     map[uuid.UUID]int
	partners  map[pairKey]int
	opponents map[pairKey]int
	groups    map[groupKey]int
	together  map[pairKey]int
}

func NewState(limits Limits) *State {
	return &State{
		limits:    limits,
		games:     make(map[uuid.UUID]int),
		partners:  make(map[pairKey]int),
		opponents: make(map[pairKey]int),
		groups:    make(map[groupKey]int),
		together:  make(map[pairKey]int),
	}
}

// Rebuild replays Record over matches in order, skipping rejected ones.
func Rebuild(limits Limits, matches []Match) *State {
	s := NewState(limits)
	for i := range matches {
		if matches[i].Status == StatusRejected {
			continue
		}
		s.Record(matches[i].Team1, matches[i].Team2)
	}
	return s
}

func (s *State) Limits() Limits { return s.limits }

// CanUse reports whether the two teams respect the partner and opponent caps
// and, when checkGroup is set, whether the exact group is still unused.
func (s *State) CanUse(t1, t2 []uuid.UUID, checkGroup bool) bool {
	maxPartner := 1 + s.limits.MaxPartnerRepeats
	for _, t := range [][]uuid.UUID{t1, t2} {
		for i := 0; i < len(t); i++ {
			for j := i + 1; j < len(t); j++ {
				if s.partners[pair(t[i], t[j])] >= maxPartner {
					return false
				}
			}
		}
	}
	for _, a := range t1 {
		for _, b := range t2 {
			if s.opponents[pair(a, b)] >= s.limits.MaxOpponentRepeats {
				return false
			}
		}
	}
	if checkGroup && s.groups[group(t1, t2)] > 0 {
		return false
	}
	return true
}

// Record commits a match to the state.
func (s *State) Record(t1, t2 []uuid.UUID) {
	for _, t := range [][]uuid.UUID{t1, t2} {
		for i, a := range t {
			s.games[a]++
			for _, b := range t[i+1:] {
				s.partners[pair(a, b)]++
			}
		}
	}
	for _, a := range t1 {
		for _, b := range t2 {
			s.opponents[pair(a, b)]++
		}
	}
	s.groups[group(t1, t2)]++

	all := append(append([]uuid.UUID(nil), t1...), t2...)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			s.together[pair(all[i], all[j])]++
		}
	}
}

func (s *State) Games(id uuid.UUID) int { return s.games[id] }

func (s *State) Partnered(a, b uuid.UUID) int { return s.partners[pair(a, b)] }

func (s *State) Opposed(a, b uuid.UUID) int { return s.opponents[pair(a, b)] }

func (s *State) Together(a, b uuid.UUID) int { return s.together[pair(a, b)] }

func (s *State) GroupUsed(t1, t2 []uuid.UUID) int { return s.groups[group(t1, t2)] }

// coOccurrence sums the pairwise together counts among the given players.
func (s *State) coOccurrence(ids []uuid.UUID) int {
	n := 0
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			n += s.together[pair(ids[i], ids[j])]
		}
	}
	return n
}

func (s *State) maxTogether(ids []uuid.UUID) int {
	m := 0
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if c := s.together[pair(ids[i], ids[j])]; c > m {
				m = c
			}
		}
	}
	return m
}

func (s *State) Clone() *State {
	c := NewState(s.limits)
	for k, v := range s.games {
		c.games[k] = v
	}
	for k, v := range s.partners {
		c.partners[k] = v
	}
	for k, v := range s.opponents {
		c.opponents[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.together {
		c.together[k] = v
	}
	return c
}
