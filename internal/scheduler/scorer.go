package scheduler

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// BalanceTolerance is the team rating difference at which a match's balance
// score crosses zero.
const BalanceTolerance = 150.0

// SpreadTier awards Bonus when the group's rating spread is below Below.
// Tiers are checked in order and the first hit wins.
type SpreadTier struct {
	Below float64
	Bonus float64
}

// Weights is the scoring table of one round style.
type Weights struct {
	// team balance: BalanceBase - BalanceScale*|sum(t1)-sum(t2)|
	BalanceBase  float64
	BalanceScale float64

	// homogeneous styles
	SpreadTiers   []SpreadTier
	SpreadCeiling float64
	SpreadPenalty float64 // per rating point above the ceiling

	// variety style
	VarietyLow   float64
	VarietyHigh  float64
	VarietyBonus float64
	FlatFloor    float64
	FlatPenalty  float64

	// within-team spread
	TeammateGap float64 // penalty per point of teammate gap
	CarryBonus  float64 // reward per point of teammate gap
	CarryCap    float64

	BracketMatchBonus float64
	SameBracketBonus  float64

	RepeatGroupPenalty  float64
	CoOccurrencePenalty float64 // per previous co-occurrence of any pair
	// VarietyCap rejects candidates in which some pair already shared this
	// many matches. Only applied on the strict search pass.
	VarietyCap int

	NeedWeight        float64 // times deficit squared
	OverTargetPenalty float64 // per game above target
}

var competitiveWeights = Weights{
	BalanceBase:  300,
	BalanceScale: 1.0,

	SpreadTiers: []SpreadTier{
		{Below: 50, Bonus: 400},
		{Below: 100, Bonus: 250},
		{Below: 150, Bonus: 100},
	},
	SpreadCeiling: 350,
	SpreadPenalty: 2.0,

	TeammateGap: 0.3,

	BracketMatchBonus: 60,
	SameBracketBonus:  120,

	RepeatGroupPenalty:  1000,
	CoOccurrencePenalty: 15,
	VarietyCap:          4,

	NeedWeight:        25,
	OverTargetPenalty: 150,
}

var ultraCompetitiveWeights = Weights{
	BalanceBase:  300,
	BalanceScale: 1.0,

	SpreadTiers: []SpreadTier{
		{Below: 50, Bonus: 600},
		{Below: 100, Bonus: 400},
		{Below: 150, Bonus: 200},
	},
	SpreadCeiling: 250,
	SpreadPenalty: 3.0,

	TeammateGap: 0.2,

	BracketMatchBonus: 80,
	SameBracketBonus:  200,

	RepeatGroupPenalty:  1000,
	CoOccurrencePenalty: 5,
	VarietyCap:          5,

	NeedWeight:        25,
	OverTargetPenalty: 150,
}

var varietyWeights = Weights{
	BalanceBase:  300,
	BalanceScale: 1.2,

	SpreadCeiling: 600,
	SpreadPenalty: 1.0,

	VarietyLow:   150,
	VarietyHigh:  350,
	VarietyBonus: 250,
	FlatFloor:    60,
	FlatPenalty:  200,

	CarryBonus: 0.25,
	CarryCap:   400,

	BracketMatchBonus: 40,

	RepeatGroupPenalty:  1000,
	CoOccurrencePenalty: 40,
	VarietyCap:          3,

	NeedWeight:        25,
	OverTargetPenalty: 150,
}

// WeightsFor returns the default table for a style. Unspecified styles
// score like competitive rounds.
func WeightsFor(style Style) Weights {
	switch style {
	case StyleUltraCompetitive:
		return ultraCompetitiveWeights
	case StyleVariety:
		return varietyWeights
	default:
		return competitiveWeights
	}
}

// ScoreOptions tune a single Score call.
type ScoreOptions struct {
	// Relaxed drops the co-occurrence penalty.
	Relaxed bool
	// TargetGames > 0 enables the games-need term.
	TargetGames int
}

type Scorer struct {
	ratings Ratings
	weights map[Style]Weights
}

func NewScorer(ratings Ratings) *Scorer {
	return &Scorer{
		ratings: ratings,
		weights: map[Style]Weights{
			StyleUltraCompetitive: ultraCompetitiveWeights,
			StyleCompetitive:      competitiveWeights,
			StyleVariety:          varietyWeights,
		},
	}
}

// WithWeights replaces the table used for style.
func (s *Scorer) WithWeights(style Style, w Weights) *Scorer {
	s.weights[style] = w
	return s
}

func (s *Scorer) weightsFor(style Style) Weights {
	if w, ok := s.weights[style]; ok {
		return w
	}
	return WeightsFor(style)
}

// Score rates a candidate match; higher is better. state may be nil.
func (s *Scorer) Score(t1, t2 []uuid.UUID, style Style, state *State, opts ScoreOptions) float64 {
	w := s.weightsFor(style)
	all := append(append(make([]uuid.UUID, 0, MatchSize), t1...), t2...)

	score := w.BalanceBase - w.BalanceScale*math.Abs(s.ratings.sum(t1)-s.ratings.sum(t2))
	score += s.spreadTerm(w, style, s.ratings.spread(all))
	score += s.teammateTerm(w, style, t1, t2)
	score += s.bracketTerm(w, t1, t2)

	if state != nil {
		if state.GroupUsed(t1, t2) > 0 {
			score -= w.RepeatGroupPenalty
		}
		if !opts.Relaxed {
			score -= w.CoOccurrencePenalty * float64(state.coOccurrence(all))
		}
		if opts.TargetGames > 0 {
			score += needTerm(w, state, all, opts.TargetGames)
		}
	}
	return score
}

func (s *Scorer) spreadTerm(w Weights, style Style, spread float64) float64 {
	if style == StyleVariety {
		var v float64
		switch {
		case spread < w.FlatFloor:
			v -= w.FlatPenalty
		case spread >= w.VarietyLow && spread <= w.VarietyHigh:
			v += w.VarietyBonus
		case spread > w.VarietyHigh:
			v += w.VarietyBonus - (spread-w.VarietyHigh)*w.SpreadPenalty
		}
		return v
	}

	for _, tier := range w.SpreadTiers {
		if spread < tier.Below {
			return tier.Bonus
		}
	}
	if spread > w.SpreadCeiling {
		return -(spread - w.SpreadCeiling) * w.SpreadPenalty
	}
	return 0
}

func (s *Scorer) teammateTerm(w Weights, style Style, t1, t2 []uuid.UUID) float64 {
	gap := s.ratings.spread(t1) + s.ratings.spread(t2)
	if style == StyleVariety {
		return math.Min(gap, w.CarryCap) * w.CarryBonus
	}
	return -gap * w.TeammateGap
}

func (s *Scorer) bracketTerm(w Weights, t1, t2 []uuid.UUID) float64 {
	b1, b2 := s.brackets(t1), s.brackets(t2)
	var v float64
	if equalBrackets(b1, b2) {
		v += w.BracketMatchBonus
		if b1[0] == b1[len(b1)-1] && b1[0] == b2[0] {
			v += w.SameBracketBonus
		}
	}
	return v
}

func (s *Scorer) brackets(team []uuid.UUID) []Bracket {
	out := make([]Bracket, len(team))
	for i, id := range team {
		out[i] = BracketFor(s.ratings.Of(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalBrackets(a, b []Bracket) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func needTerm(w Weights, state *State, ids []uuid.UUID, target int) float64 {
	var v float64
	for _, id := range ids {
		deficit := target - state.Games(id)
		if deficit > 0 {
			v += w.NeedWeight * float64(deficit*deficit)
		} else if deficit < 0 {
			v -= w.OverTargetPenalty * float64(-deficit)
		}
	}
	return v
}

// BalanceScore is the signed balance stored on a match: positive when the
// team rating difference is below BalanceTolerance.
func BalanceScore(ratings Ratings, t1, t2 []uuid.UUID) float64 {
	return BalanceTolerance - math.Abs(ratings.sum(t1)-ratings.sum(t2))
}
