package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/dom/court-rotation/internal/service"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PlayerResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Skill       *float64 `json:"skill"`
	Rating      float64  `json:"rating"`
	Bracket     string   `json:"bracket"`
	GamesPlayed int      `json:"gamesPlayed"`
	Wins        int      `json:"wins"`
	PointDiff   float64  `json:"pointDiff"`
}

type EventResponse struct {
	ID                 string           `json:"id"`
	ShortCode          string           `json:"shortCode"`
	Name               string           `json:"name"`
	Status             string           `json:"status"`
	CreatedBy          string           `json:"createdBy"`
	Courts             int              `json:"courts"`
	TargetGames        int              `json:"targetGames"`
	MaxOpponentRepeats int              `json:"maxOpponentRepeats"`
	MaxPartnerRepeats  int              `json:"maxPartnerRepeats"`
	Seed               int64            `json:"seed"`
	CreatedAt          time.Time        `json:"createdAt"`
	GeneratedAt        *time.Time       `json:"generatedAt"`
	Players            []PlayerResponse `json:"players,omitempty"`
}

type MatchResponse struct {
	ID      string      `json:"id"`
	Number  int         `json:"number"`
	Round   int         `json:"round"`
	Style   string      `json:"style"`
	Status  string      `json:"status"`
	Balance float64     `json:"balance"`
	Team1   []PlayerRef `json:"team1"`
	Team2   []PlayerRef `json:"team2"`
}

type RoundResponse struct {
	Index    int             `json:"index"`
	Style    string          `json:"style"`
	Matches  []MatchResponse `json:"matches"`
	Waitlist []PlayerRef     `json:"waitlist"`
}

type ScheduleResponse struct {
	Event   EventResponse   `json:"event"`
	Matches int             `json:"matches"`
	Rounds  []RoundResponse `json:"rounds"`
}

type RejectResponse struct {
	Schedule    ScheduleResponse `json:"schedule"`
	Replacement *MatchResponse   `json:"replacement"`
}

type GamesEntry struct {
	Player PlayerRef `json:"player"`
	Games  int       `json:"games"`
}

type ViolationResponse struct {
	Kind    string      `json:"kind"`
	Players []PlayerRef `json:"players"`
	Count   int         `json:"count"`
	Round   *int        `json:"round,omitempty"`
}

type ReportResponse struct {
	OK              bool                `json:"ok"`
	Matches         int                 `json:"matches"`
	Rounds          int                 `json:"rounds"`
	MinGames        int                 `json:"minGames"`
	MaxGames        int                 `json:"maxGames"`
	MeanBalance     float64             `json:"meanBalance"`
	PositiveBalance float64             `json:"positiveBalance"`
	Quality         float64             `json:"quality"`
	Games           []GamesEntry        `json:"games"`
	Violations      []ViolationResponse `json:"violations"`
}

// names maps roster ids to display names.
type names map[uuid.UUID]string

func rosterNames(event *domain.Event) names {
	out := make(names, len(event.Players))
	for _, p := range event.Players {
		out[p.ID] = p.Name
	}
	return out
}

func (n names) refs(ids []uuid.UUID) []PlayerRef {
	out := make([]PlayerRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, PlayerRef{ID: id.String(), Name: n[id]})
	}
	return out
}

func toEventResponse(event *domain.Event, withPlayers bool) EventResponse {
	resp := EventResponse{
		ID:                 event.ID.String(),
		ShortCode:          event.ShortCode,
		Name:               event.Name,
		Status:             string(event.Status),
		CreatedBy:          event.CreatedBy.String(),
		Courts:             event.Courts,
		TargetGames:        event.TargetGames,
		MaxOpponentRepeats: event.MaxOpponentRepeats,
		MaxPartnerRepeats:  event.MaxPartnerRepeats,
		Seed:               event.Seed,
		CreatedAt:          event.CreatedAt,
		GeneratedAt:        event.GeneratedAt,
	}
	if withPlayers {
		for i := range event.Players {
			resp.Players = append(resp.Players, toPlayerResponse(&event.Players[i]))
		}
	}
	return resp
}

func toPlayerResponse(p *domain.EventPlayer) PlayerResponse {
	rating := scheduler.Rating(scheduler.Player{
		ID:    p.ID,
		Skill: p.Skill,
		History: &scheduler.History{
			Games:     p.GamesPlayed,
			Wins:      p.Wins,
			PointDiff: p.PointDiff,
		},
	})
	return PlayerResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Skill:       p.Skill,
		Rating:      rating,
		Bracket:     scheduler.BracketFor(rating).String(),
		GamesPlayed: p.GamesPlayed,
		Wins:        p.Wins,
		PointDiff:   p.PointDiff,
	}
}

func toMatchResponse(m *domain.ScheduledMatch, n names) (MatchResponse, error) {
	t1, err := domain.DecodeIDs(m.Team1)
	if err != nil {
		return MatchResponse{}, err
	}
	t2, err := domain.DecodeIDs(m.Team2)
	if err != nil {
		return MatchResponse{}, err
	}
	return MatchResponse{
		ID:      m.ID.String(),
		Number:  m.Number,
		Round:   m.Round,
		Style:   m.Style,
		Status:  string(m.Status),
		Balance: m.Balance,
		Team1:   n.refs(t1),
		Team2:   n.refs(t2),
	}, nil
}

func toScheduleResponse(view *service.ScheduleView) (ScheduleResponse, error) {
	n := rosterNames(view.Event)
	resp := ScheduleResponse{
		Event:   toEventResponse(view.Event, false),
		Matches: len(view.Matches),
	}

	count := len(view.Waitlists)
	for _, m := range view.Matches {
		if m.Round+1 > count {
			count = m.Round + 1
		}
	}
	resp.Rounds = make([]RoundResponse, count)
	for i := range resp.Rounds {
		resp.Rounds[i] = RoundResponse{
			Index:    i,
			Style:    string(scheduler.StyleUnspecified),
			Matches:  []MatchResponse{},
			Waitlist: []PlayerRef{},
		}
		if i < len(view.Waitlists) {
			resp.Rounds[i].Waitlist = n.refs(view.Waitlists[i])
		}
	}
	for _, m := range view.Matches {
		mr, err := toMatchResponse(m, n)
		if err != nil {
			return ScheduleResponse{}, err
		}
		round := &resp.Rounds[m.Round]
		round.Matches = append(round.Matches, mr)
		if m.Status != domain.MatchStatusRejected {
			round.Style = m.Style
		}
	}
	return resp, nil
}

func toReportResponse(report *scheduler.Report, event *domain.Event) ReportResponse {
	n := rosterNames(event)
	resp := ReportResponse{
		OK:              report.OK(),
		Matches:         report.Matches,
		Rounds:          report.Rounds,
		MinGames:        report.MinGames,
		MaxGames:        report.MaxGames,
		MeanBalance:     report.MeanBalance,
		PositiveBalance: report.PositiveBalance,
		Quality:         report.Quality(),
		Games:           make([]GamesEntry, 0, len(event.Players)),
		Violations:      make([]ViolationResponse, 0, len(report.Violations)),
	}
	// Roster order, players without a game included.
	for _, p := range event.Players {
		resp.Games = append(resp.Games, GamesEntry{
			Player: PlayerRef{ID: p.ID.String(), Name: p.Name},
			Games:  report.Games[p.ID],
		})
	}
	sort.SliceStable(resp.Games, func(i, j int) bool { return resp.Games[i].Games < resp.Games[j].Games })

	for _, v := range report.Violations {
		vr := ViolationResponse{Kind: string(v.Kind), Players: n.refs(v.Players), Count: v.Count}
		if v.Round >= 0 {
			round := v.Round
			vr.Round = &round
		}
		resp.Violations = append(resp.Violations, vr)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("[handlers.writeJSON] encode failed: %v", err)
	}
}
