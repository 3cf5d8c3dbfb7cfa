package scheduler_test

import (
	"testing"

	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = playerID(i)
	}
	return out
}

func team(a, b uuid.UUID) []uuid.UUID { return []uuid.UUID{a, b} }

func TestState_PartnerCap(t *testing.T) {
	p := ids(8)

	t.Run("no repeats allowed", func(t *testing.T) {
		s := scheduler.NewState(scheduler.Limits{MaxOpponentRepeats: 2})
		s.Record(team(p[0], p[1]), team(p[2], p[3]))

		assert.False(t, s.CanUse(team(p[1], p[0]), team(p[4], p[5]), false), "partnership order must not matter")
		assert.True(t, s.CanUse(team(p[0], p[4]), team(p[1], p[5]), false))
		assert.Equal(t, 1, s.Partnered(p[1], p[0]))
	})

	t.Run("one repeat allowed", func(t *testing.T) {
		s := scheduler.NewState(scheduler.Limits{MaxPartnerRepeats: 1, MaxOpponentRepeats: 2})
		s.Record(team(p[0], p[1]), team(p[2], p[3]))
		require.True(t, s.CanUse(team(p[0], p[1]), team(p[4], p[5]), false))

		s.Record(team(p[0], p[1]), team(p[4], p[5]))
		assert.False(t, s.CanUse(team(p[0], p[1]), team(p[6], p[7]), false))
	})
}

func TestState_OpponentCap(t *testing.T) {
	p := ids(8)
	s := scheduler.NewState(scheduler.Limits{MaxOpponentRepeats: 2})

	s.Record(team(p[0], p[1]), team(p[2], p[3]))
	s.Record(team(p[0], p[4]), team(p[2], p[5]))
	assert.Equal(t, 2, s.Opposed(p[2], p[0]))

	assert.False(t, s.CanUse(team(p[0], p[6]), team(p[2], p[7]), false), "third meeting of 0 and 2")
	assert.True(t, s.CanUse(team(p[0], p[2]), team(p[6], p[7]), false), "partnering is not opposing")
}

func TestState_GroupCheck(t *testing.T) {
	p := ids(4)
	s := scheduler.NewState(scheduler.Limits{MaxPartnerRepeats: 1, MaxOpponentRepeats: 4})
	s.Record(team(p[0], p[1]), team(p[2], p[3]))

	other := [2][]uuid.UUID{team(p[0], p[2]), team(p[1], p[3])}
	assert.True(t, s.CanUse(other[0], other[1], false))
	assert.False(t, s.CanUse(other[0], other[1], true), "same four players in another split")
	assert.Equal(t, 1, s.GroupUsed(other[0], other[1]))
}

func TestState_RecordCounts(t *testing.T) {
	p := ids(4)
	s := scheduler.NewState(scheduler.Limits{MaxOpponentRepeats: 2})
	s.Record(team(p[0], p[1]), team(p[2], p[3]))

	for _, id := range p {
		assert.Equal(t, 1, s.Games(id))
	}
	for i := range p {
		for j := i + 1; j < len(p); j++ {
			assert.Equal(t, 1, s.Together(p[i], p[j]))
		}
	}
	assert.Equal(t, 0, s.Opposed(p[0], p[1]))
	assert.Equal(t, 0, s.Partnered(p[0], p[2]))
}

func TestRebuild_MatchesReplay(t *testing.T) {
	cfg := testConfig(3, 6)
	players := spreadRoster(14, 2.0, 4.5)
	sched := generate(t, cfg, players)

	limits := scheduler.Limits{MaxPartnerRepeats: cfg.MaxPartnerRepeats, MaxOpponentRepeats: cfg.MaxOpponentRepeats}
	for _, cut := range []int{0, 3, len(sched.Matches) / 2, len(sched.Matches)} {
		prefix := sched.Matches[:cut]
		rebuilt := scheduler.Rebuild(limits, prefix)

		replayed := scheduler.NewState(limits)
		for _, m := range prefix {
			replayed.Record(m.Team1, m.Team2)
		}

		assert.Equal(t, replayed, rebuilt, "prefix of %d matches", cut)
	}
}

func TestRebuild_SkipsRejected(t *testing.T) {
	p := ids(8)
	limits := scheduler.Limits{MaxOpponentRepeats: 2}
	matches := []scheduler.Match{
		{Team1: team(p[0], p[1]), Team2: team(p[2], p[3]), Status: scheduler.StatusApproved},
		{Team1: team(p[4], p[5]), Team2: team(p[6], p[7]), Status: scheduler.StatusRejected},
	}

	s := scheduler.Rebuild(limits, matches)
	assert.Equal(t, 1, s.Games(p[0]))
	assert.Equal(t, 0, s.Games(p[4]))
	assert.True(t, s.CanUse(team(p[4], p[5]), team(p[6], p[7]), true))
}

func TestState_Clone(t *testing.T) {
	p := ids(8)
	s := scheduler.NewState(scheduler.Limits{MaxOpponentRepeats: 2})
	s.Record(team(p[0], p[1]), team(p[2], p[3]))

	c := s.Clone()
	c.Record(team(p[4], p[5]), team(p[6], p[7]))

	assert.Equal(t, 0, s.Games(p[4]))
	assert.Equal(t, 1, c.Games(p[4]))
	assert.Equal(t, 1, c.Games(p[0]))
}
