package scheduler_test

import (
	"testing"

	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// ratedPlayers returns players whose ratings are exactly the given values.
func ratedPlayers(ratings ...float64) ([]uuid.UUID, scheduler.Ratings) {
	table := make(scheduler.Ratings, len(ratings))
	return addRated(table, 100, ratings...), table
}

func addRated(table scheduler.Ratings, base int, ratings ...float64) []uuid.UUID {
	out := make([]uuid.UUID, len(ratings))
	for i, r := range ratings {
		out[i] = playerID(base + i)
		table[out[i]] = r
	}
	return out
}

func TestScore_PrefersBalancedTeams(t *testing.T) {
	p, ratings := ratedPlayers(1200, 1300, 1400, 1500)
	s := scheduler.NewScorer(ratings)

	for _, style := range []scheduler.Style{scheduler.StyleUltraCompetitive, scheduler.StyleCompetitive, scheduler.StyleVariety} {
		t.Run(string(style), func(t *testing.T) {
			balanced := s.Score(team(p[0], p[3]), team(p[1], p[2]), style, nil, scheduler.ScoreOptions{})
			lopsided := s.Score(team(p[0], p[1]), team(p[2], p[3]), style, nil, scheduler.ScoreOptions{})
			assert.Greater(t, balanced, lopsided)
		})
	}
}

func TestScore_HomogeneityByStyle(t *testing.T) {
	ratings := scheduler.Ratings{}
	tight := addRated(ratings, 100, 1500, 1510, 1520, 1530)
	wide := addRated(ratings, 200, 1300, 1450, 1550, 1650)
	s := scheduler.NewScorer(ratings)

	score := func(g []uuid.UUID, style scheduler.Style) float64 {
		return s.Score(team(g[0], g[3]), team(g[1], g[2]), style, nil, scheduler.ScoreOptions{})
	}

	assert.Greater(t, score(tight, scheduler.StyleCompetitive), score(wide, scheduler.StyleCompetitive),
		"competitive rounds favor a tight group")
	assert.Greater(t, score(tight, scheduler.StyleUltraCompetitive), score(wide, scheduler.StyleUltraCompetitive))
	assert.Greater(t, score(wide, scheduler.StyleVariety), score(tight, scheduler.StyleVariety),
		"variety rounds favor a mixed group")
}

func TestScore_RepeatPenalties(t *testing.T) {
	p, ratings := ratedPlayers(1400, 1450, 1500, 1550)
	s := scheduler.NewScorer(ratings)
	state := scheduler.NewState(scheduler.Limits{MaxPartnerRepeats: 1, MaxOpponentRepeats: 4})

	t1, t2 := team(p[0], p[3]), team(p[1], p[2])
	fresh := s.Score(t1, t2, scheduler.StyleCompetitive, state, scheduler.ScoreOptions{})

	state.Record(team(p[0], p[1]), team(p[2], p[3]))
	strict := s.Score(t1, t2, scheduler.StyleCompetitive, state, scheduler.ScoreOptions{})
	relaxed := s.Score(t1, t2, scheduler.StyleCompetitive, state, scheduler.ScoreOptions{Relaxed: true})

	w := scheduler.WeightsFor(scheduler.StyleCompetitive)
	assert.InDelta(t, fresh-w.RepeatGroupPenalty-6*w.CoOccurrencePenalty, strict, 0.001)
	assert.InDelta(t, fresh-w.RepeatGroupPenalty, relaxed, 0.001)
}

func TestScore_NeedTerm(t *testing.T) {
	p, ratings := ratedPlayers(1400, 1450, 1500, 1550)
	s := scheduler.NewScorer(ratings)
	state := scheduler.NewState(scheduler.Limits{MaxOpponentRepeats: 2})
	opts := scheduler.ScoreOptions{TargetGames: 2}

	before := s.Score(team(p[0], p[3]), team(p[1], p[2]), scheduler.StyleCompetitive, state, opts)
	state.Record(team(p[0], p[1]), team(p[2], p[3]))
	state.Record(team(p[0], p[2]), team(p[1], p[3]))
	state.Record(team(p[0], p[3]), team(p[1], p[2]))
	after := s.Score(team(p[0], p[3]), team(p[1], p[2]), scheduler.StyleCompetitive, state, scheduler.ScoreOptions{TargetGames: 2, Relaxed: true})

	assert.Greater(t, before, after, "players over target score lower")
}

func TestScorer_WithWeights(t *testing.T) {
	p, ratings := ratedPlayers(1400, 1450, 1500, 1550)
	w := scheduler.WeightsFor(scheduler.StyleVariety)
	w.BalanceBase += 1000

	base := scheduler.NewScorer(ratings).Score(team(p[0], p[3]), team(p[1], p[2]), scheduler.StyleVariety, nil, scheduler.ScoreOptions{})
	tuned := scheduler.NewScorer(ratings).WithWeights(scheduler.StyleVariety, w).
		Score(team(p[0], p[3]), team(p[1], p[2]), scheduler.StyleVariety, nil, scheduler.ScoreOptions{})

	assert.InDelta(t, base+1000, tuned, 0.001)
}

func TestBalanceScore(t *testing.T) {
	p, ratings := ratedPlayers(1200, 1300, 1400, 1500)

	assert.InDelta(t, 150, scheduler.BalanceScore(ratings, team(p[0], p[3]), team(p[1], p[2])), 0.001)
	assert.InDelta(t, -250, scheduler.BalanceScore(ratings, team(p[0], p[1]), team(p[2], p[3])), 0.001)
}
