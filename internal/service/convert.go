package service

import (
	"fmt"

	"github.com/dom/court-rotation/internal/config"
	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/google/uuid"
)

func toSchedulerPlayers(players []domain.EventPlayer) []scheduler.Player {
	out := make([]scheduler.Player, len(players))
	for i, p := range players {
		out[i] = scheduler.Player{ID: p.ID, Name: p.Name, Skill: p.Skill}
		if p.Skill == nil && p.GamesPlayed > 0 {
			out[i].History = &scheduler.History{
				Games:     p.GamesPlayed,
				Wins:      p.Wins,
				PointDiff: p.PointDiff,
			}
		}
	}
	return out
}

// schedulerConfig combines the event's settings with the server's search
// knobs. Match ids are derived under the event id.
func schedulerConfig(event *domain.Event, cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		TargetGames:        event.TargetGames,
		MaxOpponentRepeats: event.MaxOpponentRepeats,
		MaxPartnerRepeats:  event.MaxPartnerRepeats,
		Courts:             event.Courts,
		CandidatePool:      cfg.CandidatePool,
		SearchBudget:       cfg.SearchBudget,
		MaxRounds:          cfg.MaxRounds,
		Seed:               event.Seed,
		Namespace:          event.ID,
	}
}

func toSchedule(event *domain.Event, rows []*domain.ScheduledMatch) (*scheduler.Schedule, error) {
	waitlists, err := event.DecodeWaitlists()
	if err != nil {
		return nil, fmt.Errorf("decode waitlists: %w", err)
	}
	sched := &scheduler.Schedule{
		Matches:   make([]scheduler.Match, 0, len(rows)),
		Waitlists: waitlists,
	}
	for _, row := range rows {
		m, err := toSchedulerMatch(row)
		if err != nil {
			return nil, err
		}
		sched.Matches = append(sched.Matches, m)
	}
	return sched, nil
}

func toSchedulerMatch(row *domain.ScheduledMatch) (scheduler.Match, error) {
	t1, err := domain.DecodeIDs(row.Team1)
	if err != nil {
		return scheduler.Match{}, fmt.Errorf("decode match %s: %w", row.ID, err)
	}
	t2, err := domain.DecodeIDs(row.Team2)
	if err != nil {
		return scheduler.Match{}, fmt.Errorf("decode match %s: %w", row.ID, err)
	}
	return scheduler.Match{
		ID:      row.ID,
		Number:  row.Number,
		Round:   row.Round,
		Style:   scheduler.Style(row.Style),
		Team1:   t1,
		Team2:   t2,
		Status:  scheduler.Status(row.Status),
		Balance: row.Balance,
	}, nil
}

// toRows converts the matches of round fromRound and later.
func toRows(eventID uuid.UUID, sched *scheduler.Schedule, fromRound int) []*domain.ScheduledMatch {
	var rows []*domain.ScheduledMatch
	for _, m := range sched.Matches {
		if m.Round < fromRound {
			continue
		}
		rows = append(rows, &domain.ScheduledMatch{
			ID:      m.ID,
			EventID: eventID,
			Number:  m.Number,
			Round:   m.Round,
			Style:   string(m.Style),
			Team1:   domain.EncodeIDs(m.Team1),
			Team2:   domain.EncodeIDs(m.Team2),
			Status:  domain.MatchStatus(m.Status),
			Balance: m.Balance,
		})
	}
	return rows
}
