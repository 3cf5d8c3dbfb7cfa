package scheduler

import (
	"math"

	"github.com/google/uuid"
)

const (
	MinRating     = 800.0
	MaxRating     = 2200.0
	DefaultRating = 1500.0

	// skill 3.0 maps to 1200, every skill point is worth 600 rating points
	skillPivot = 3.0
	skillBase  = 1200.0
	skillScale = 600.0
)

// Rating maps a player's skill input or history onto the common scale.
func Rating(p Player) float64 {
	if p.Skill != nil {
		return clamp(skillBase+(*p.Skill-skillPivot)*skillScale, MinRating, MaxRating)
	}
	h := p.History
	if h == nil || h.Games <= 0 {
		return DefaultRating
	}

	winRate := float64(h.Wins) / float64(h.Games)
	avgDiff := h.PointDiff / float64(h.Games)

	r := DefaultRating + 200*math.Log(1+9*winRate) - 200
	if avgDiff != 0 {
		sign := 1.0
		if avgDiff < 0 {
			sign = -1.0
		}
		r += 50 * sign * math.Log(1+math.Abs(avgDiff))
	}
	return clamp(r, MinRating, MaxRating)
}

// Bracket is a discrete skill tier.
type Bracket int

const (
	BracketNovice Bracket = iota
	BracketBeginner
	BracketIntermediate
	BracketAdvanced
	BracketElite
)

var bracketNames = [...]string{"novice", "beginner", "intermediate", "advanced", "elite"}

func (b Bracket) String() string {
	if int(b) < len(bracketNames) {
		return bracketNames[b]
	}
	return "unknown"
}

// lower bounds of beginner, intermediate, advanced and elite
var bracketThresholds = [...]float64{1000, 1300, 1600, 1900}

func BracketFor(rating float64) Bracket {
	b := BracketNovice
	for _, t := range bracketThresholds {
		if rating >= t {
			b++
		}
	}
	return b
}

// Ratings is the rating table of one scheduling run.
type Ratings map[uuid.UUID]float64

func RateAll(players []Player) Ratings {
	r := make(Ratings, len(players))
	for _, p := range players {
		r[p.ID] = Rating(p)
	}
	return r
}

// Of returns the rating of id, falling back to the default for unknown ids.
func (r Ratings) Of(id uuid.UUID) float64 {
	if v, ok := r[id]; ok {
		return v
	}
	return DefaultRating
}

func (r Ratings) sum(ids []uuid.UUID) float64 {
	var s float64
	for _, id := range ids {
		s += r.Of(id)
	}
	return s
}

func (r Ratings) spread(ids []uuid.UUID) float64 {
	if len(ids) == 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, id := range ids {
		v := r.Of(id)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
