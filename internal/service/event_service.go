package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dom/court-rotation/internal/config"
	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/exchange"
	"github.com/dom/court-rotation/internal/repository"
	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrGenerationTimeout  = errors.New("schedule generation timed out")
	ErrInvalidMatchAction = errors.New("match cannot change to that status")
	ErrMatchNotInEvent    = errors.New("match does not belong to this event")
	ErrPlayerNotInEvent   = errors.New("player does not belong to this event")
)

// Change kinds carried by schedule notifications.
const (
	ChangeGenerated   = "generated"
	ChangeApproved    = "approved"
	ChangeReplaced    = "replaced"
	ChangeSwapped     = "swapped"
	ChangeRetyped     = "retyped"
	ChangeRegenerated = "regenerated"
	ChangeImported    = "imported"
)

// ScheduleChange describes one mutation of an event's schedule.
type ScheduleChange struct {
	EventID   uuid.UUID
	Kind      string
	FromRound int
	MatchID   *uuid.UUID
}

// Notifier is told about every persisted schedule change.
type Notifier interface {
	ScheduleChanged(change ScheduleChange)
}

type nopNotifier struct{}

func (nopNotifier) ScheduleChanged(ScheduleChange) {}

// ScheduleView is an event with its persisted schedule.
type ScheduleView struct {
	Event     *domain.Event
	Matches   []*domain.ScheduledMatch
	Waitlists [][]uuid.UUID
}

type EventService struct {
	eventRepo  repository.EventRepository
	playerRepo repository.EventPlayerRepository
	matchRepo  repository.ScheduledMatchRepository
	cfg        *config.Config

	notifierMu sync.RWMutex
	notifier   Notifier

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewEventService(
	eventRepo repository.EventRepository,
	playerRepo repository.EventPlayerRepository,
	matchRepo repository.ScheduledMatchRepository,
	cfg *config.Config,
) *EventService {
	return &EventService{
		eventRepo:  eventRepo,
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		cfg:        cfg,
		notifier:   nopNotifier{},
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetNotifier replaces the change listener. A nil notifier silences
// notifications.
func (s *EventService) SetNotifier(n Notifier) {
	s.notifierMu.Lock()
	defer s.notifierMu.Unlock()
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

func (s *EventService) notify(change ScheduleChange) {
	s.notifierMu.RLock()
	n := s.notifier
	s.notifierMu.RUnlock()
	n.ScheduleChanged(change)
}

// lock serializes mutations of one event.
func (s *EventService) lock(eventID uuid.UUID) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[eventID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[eventID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

type PlayerInput struct {
	Name        string
	Skill       *float64
	GamesPlayed int
	Wins        int
	PointDiff   float64
}

type CreateEventInput struct {
	CreatedBy          uuid.UUID
	Name               string
	Courts             int
	TargetGames        int
	MaxOpponentRepeats int
	MaxPartnerRepeats  int
	Seed               *int64
	Players            []PlayerInput
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*domain.Event, error) {
	if err := s.validateInput(&input); err != nil {
		return nil, err
	}

	seed := randomSeed()
	if input.Seed != nil {
		seed = *input.Seed
	}

	event := &domain.Event{
		ID:                 uuid.New(),
		ShortCode:          generateShortCode(),
		Name:               strings.TrimSpace(input.Name),
		CreatedBy:          input.CreatedBy,
		Status:             domain.EventStatusDraft,
		Courts:             input.Courts,
		TargetGames:        input.TargetGames,
		MaxOpponentRepeats: input.MaxOpponentRepeats,
		MaxPartnerRepeats:  input.MaxPartnerRepeats,
		Seed:               seed,
		Waitlists:          domain.EncodeIDs(nil),
	}
	for i, p := range input.Players {
		event.Players = append(event.Players, domain.EventPlayer{
			ID:          uuid.New(),
			Name:        strings.TrimSpace(p.Name),
			Skill:       p.Skill,
			GamesPlayed: p.GamesPlayed,
			Wins:        p.Wins,
			PointDiff:   p.PointDiff,
			JoinOrder:   i,
		})
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) validateInput(input *CreateEventInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidEventConfig)
	}
	if input.Courts < 1 || input.Courts > domain.MaxCourts {
		return fmt.Errorf("%w: courts must be between 1 and %d", domain.ErrInvalidEventConfig, domain.MaxCourts)
	}
	if input.TargetGames == 0 {
		input.TargetGames = s.cfg.DefaultTargetGames
	}
	if input.MaxOpponentRepeats == 0 {
		input.MaxOpponentRepeats = s.cfg.DefaultMaxOpponentRepeats
	}
	if input.TargetGames < 1 {
		return fmt.Errorf("%w: targetGames must be positive", domain.ErrInvalidEventConfig)
	}
	if input.MaxOpponentRepeats < 1 {
		return fmt.Errorf("%w: maxOpponentRepeats must be positive", domain.ErrInvalidEventConfig)
	}
	if input.MaxPartnerRepeats < 0 {
		return fmt.Errorf("%w: maxPartnerRepeats must not be negative", domain.ErrInvalidEventConfig)
	}

	n := len(input.Players)
	if n < domain.MinEventPlayers || n > domain.MaxEventPlayers {
		return fmt.Errorf("%w: need between %d and %d players, got %d",
			domain.ErrInvalidRoster, domain.MinEventPlayers, domain.MaxEventPlayers, n)
	}
	seen := make(map[string]bool, n)
	for i, p := range input.Players {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return fmt.Errorf("%w: player %d has no name", domain.ErrInvalidRoster, i)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", domain.ErrDuplicatePlayer, p.Name)
		}
		seen[name] = true
		if err := validatePlayer(p); err != nil {
			return err
		}
	}
	return nil
}

func validatePlayer(p PlayerInput) error {
	if p.Skill != nil && (*p.Skill < domain.MinSkill || *p.Skill > domain.MaxSkill) {
		return fmt.Errorf("%w: skill of %q must be between %.1f and %.1f",
			domain.ErrInvalidRoster, p.Name, domain.MinSkill, domain.MaxSkill)
	}
	if p.GamesPlayed < 0 || p.Wins < 0 || p.Wins > p.GamesPlayed {
		return fmt.Errorf("%w: history of %q is inconsistent", domain.ErrInvalidRoster, p.Name)
	}
	return nil
}

// UpdatePlayer changes a roster entry's skill or history. The name is kept.
// Existing schedules are not touched; the new rating applies to the next
// generation or edit.
func (s *EventService) UpdatePlayer(ctx context.Context, eventID, userID, playerID uuid.UUID, input PlayerInput) (*domain.EventPlayer, error) {
	unlock := s.lock(eventID)
	defer unlock()

	if _, err := s.ownedEvent(ctx, eventID, userID); err != nil {
		return nil, err
	}
	players, err := s.playerRepo.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var player *domain.EventPlayer
	for _, p := range players {
		if p.ID == playerID {
			player = p
			break
		}
	}
	if player == nil {
		return nil, ErrPlayerNotInEvent
	}

	input.Name = player.Name
	if err := validatePlayer(input); err != nil {
		return nil, err
	}
	player.Skill = input.Skill
	player.GamesPlayed = input.GamesPlayed
	player.Wins = input.Wins
	player.PointDiff = input.PointDiff
	if err := s.playerRepo.Update(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// GetEvent accepts either the event id or its short code.
func (s *EventService) GetEvent(ctx context.Context, idOrCode string) (*domain.Event, error) {
	var (
		event *domain.Event
		err   error
	)
	if id, perr := uuid.Parse(idOrCode); perr == nil {
		event, err = s.eventRepo.GetByID(ctx, id)
	} else {
		event, err = s.eventRepo.GetByShortCode(ctx, strings.ToUpper(idOrCode))
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *EventService) GetUserEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Event, error) {
	return s.eventRepo.GetByCreator(ctx, userID, limit, offset)
}

func (s *EventService) GetSchedule(ctx context.Context, eventID uuid.UUID) (*ScheduleView, error) {
	event, err := s.GetEvent(ctx, eventID.String())
	if err != nil {
		return nil, err
	}
	return s.view(ctx, event)
}

func (s *EventService) view(ctx context.Context, event *domain.Event) (*ScheduleView, error) {
	matches, err := s.matchRepo.GetByEventID(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	waitlists, err := event.DecodeWaitlists()
	if err != nil {
		return nil, err
	}
	return &ScheduleView{Event: event, Matches: matches, Waitlists: waitlists}, nil
}

// ownedEvent loads the event and checks that userID created it.
func (s *EventService) ownedEvent(ctx context.Context, eventID, userID uuid.UUID) (*domain.Event, error) {
	event, err := s.GetEvent(ctx, eventID.String())
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != userID {
		return nil, domain.ErrNotEventOwner
	}
	return event, nil
}

func (s *EventService) loadSchedule(ctx context.Context, event *domain.Event) (*scheduler.Schedule, error) {
	rows, err := s.matchRepo.GetByEventID(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNoSchedule
	}
	return toSchedule(event, rows)
}

// withTimeout runs fn on its own goroutine and gives up when the
// generation timeout or ctx expires first. An abandoned run finishes in the
// background and its result is dropped.
func (s *EventService) withTimeout(ctx context.Context, op string, fn func() (*scheduler.Schedule, error)) (*scheduler.Schedule, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	type result struct {
		sched *scheduler.Schedule
		err   error
	}
	done := make(chan result, 1)
	go func() {
		sched, err := fn()
		done <- result{sched, err}
	}()

	select {
	case r := <-done:
		return r.sched, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrGenerationTimeout, op)
		}
		return nil, ctx.Err()
	}
}

// GenerateSchedule builds a fresh schedule for the roster, replacing any
// previous one.
func (s *EventService) GenerateSchedule(ctx context.Context, eventID, userID uuid.UUID) (*ScheduleView, error) {
	unlock := s.lock(eventID)
	defer unlock()

	event, err := s.ownedEvent(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if event.Status == domain.EventStatusLocked {
		return nil, domain.ErrEventLocked
	}

	cfg := schedulerConfig(event, s.cfg)
	players := toSchedulerPlayers(event.Players)

	start := time.Now()
	sched, err := s.withTimeout(ctx, "generate", func() (*scheduler.Schedule, error) {
		return scheduler.Generate(cfg, players)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"event":   event.ID,
		"players": len(players),
		"matches": len(sched.Matches),
		"rounds":  sched.RoundCount(),
		"took":    time.Since(start),
	}).Info("[event.Generate] schedule generated")

	if err := s.matchRepo.ReplaceAll(ctx, event.ID, toRows(event.ID, sched, 0), sched.Waitlists); err != nil {
		return nil, err
	}
	event.Status = domain.EventStatusScheduled
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, err
	}

	s.notify(ScheduleChange{EventID: event.ID, Kind: ChangeGenerated})
	return s.GetSchedule(ctx, event.ID)
}

// ApproveMatch marks a pending match approved. Approved matches are frozen
// for every later edit. The event locks once nothing is left pending.
func (s *EventService) ApproveMatch(ctx context.Context, eventID, matchID, userID uuid.UUID) (*domain.ScheduledMatch, error) {
	unlock := s.lock(eventID)
	defer unlock()

	event, err := s.ownedEvent(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	match, err := s.eventMatch(ctx, event.ID, matchID)
	if err != nil {
		return nil, err
	}

	switch match.Status {
	case domain.MatchStatusApproved:
		return match, nil
	case domain.MatchStatusRejected:
		return nil, ErrInvalidMatchAction
	}
	if err := s.matchRepo.UpdateStatus(ctx, match.ID, domain.MatchStatusApproved); err != nil {
		return nil, err
	}
	match.Status = domain.MatchStatusApproved

	if err := s.lockIfComplete(ctx, event); err != nil {
		return nil, err
	}

	s.notify(ScheduleChange{EventID: event.ID, Kind: ChangeApproved, FromRound: match.Round, MatchID: &match.ID})
	return match, nil
}

func (s *EventService) lockIfComplete(ctx context.Context, event *domain.Event) error {
	rows, err := s.matchRepo.GetByEventID(ctx, event.ID)
	if err != nil {
		return err
	}
	for _, m := range rows {
		if m.Status == domain.MatchStatusPending {
			return nil
		}
	}
	event.Status = domain.EventStatusLocked
	return s.eventRepo.Update(ctx, event)
}

func (s *EventService) eventMatch(ctx context.Context, eventID, matchID uuid.UUID) (*domain.ScheduledMatch, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	if match.EventID != eventID {
		return nil, ErrMatchNotInEvent
	}
	return match, nil
}

// edit is one schedule mutation. It returns the edited schedule and the
// first round it touched.
type edit func(ed *scheduler.Editor, sched *scheduler.Schedule) (*scheduler.Schedule, int, error)

// applyEdit loads the schedule, applies fn and persists everything from the
// first touched round on in one transaction. Later rounds are not rebuilt;
// that is RegenerateFrom's job.
func (s *EventService) applyEdit(ctx context.Context, eventID, userID uuid.UUID, kind string, fn edit) (*ScheduleView, error) {
	unlock := s.lock(eventID)
	defer unlock()

	event, err := s.ownedEvent(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if event.Status == domain.EventStatusLocked {
		return nil, domain.ErrEventLocked
	}
	sched, err := s.loadSchedule(ctx, event)
	if err != nil {
		return nil, err
	}
	editor, err := scheduler.NewEditor(schedulerConfig(event, s.cfg), toSchedulerPlayers(event.Players))
	if err != nil {
		return nil, err
	}

	round := 0
	edited, err := s.withTimeout(ctx, kind, func() (*scheduler.Schedule, error) {
		out, r, err := fn(editor, sched)
		round = r
		return out, err
	})
	if err != nil {
		return nil, err
	}

	if err := s.matchRepo.ReplaceFromRound(ctx, event.ID, round, toRows(event.ID, edited, round), edited.Waitlists); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"event": event.ID, "round": round}).Infof("[event.%s] schedule edited", kind)

	s.notify(ScheduleChange{EventID: event.ID, Kind: kind, FromRound: round})
	return s.GetSchedule(ctx, event.ID)
}

// RejectMatch rejects a pending match and puts a replacement in its slot.
// Every other match is left as it was.
func (s *EventService) RejectMatch(ctx context.Context, eventID, matchID, userID uuid.UUID) (*ScheduleView, *domain.ScheduledMatch, error) {
	var replacementID uuid.UUID
	view, err := s.applyEdit(ctx, eventID, userID, ChangeReplaced,
		func(ed *scheduler.Editor, sched *scheduler.Schedule) (*scheduler.Schedule, int, error) {
			out, repl, err := ed.RejectAndReplace(sched, matchID)
			if err != nil {
				return nil, 0, err
			}
			replacementID = repl.ID
			return out, repl.Round, nil
		})
	if err != nil {
		return nil, nil, err
	}
	for _, m := range view.Matches {
		if m.ID == replacementID {
			return view, m, nil
		}
	}
	return nil, nil, fmt.Errorf("replacement %s was not persisted", replacementID)
}

func (s *EventService) SwapPlayers(ctx context.Context, eventID, userID uuid.UUID, round int, a, b uuid.UUID) (*ScheduleView, error) {
	return s.applyEdit(ctx, eventID, userID, ChangeSwapped,
		func(ed *scheduler.Editor, sched *scheduler.Schedule) (*scheduler.Schedule, int, error) {
			out, err := ed.Swap(sched, round, a, b)
			return out, round, err
		})
}

func (s *EventService) RetypeRound(ctx context.Context, eventID, userID uuid.UUID, round int, style scheduler.Style) (*ScheduleView, error) {
	return s.applyEdit(ctx, eventID, userID, ChangeRetyped,
		func(ed *scheduler.Editor, sched *scheduler.Schedule) (*scheduler.Schedule, int, error) {
			out, err := ed.Retype(sched, round, style)
			return out, round, err
		})
}

// RegenerateFrom keeps rounds 0..round and rebuilds everything after.
func (s *EventService) RegenerateFrom(ctx context.Context, eventID, userID uuid.UUID, round int) (*ScheduleView, error) {
	return s.applyEdit(ctx, eventID, userID, ChangeRegenerated,
		func(ed *scheduler.Editor, sched *scheduler.Schedule) (*scheduler.Schedule, int, error) {
			out, err := ed.RegenerateFrom(sched, round)
			return out, round + 1, err
		})
}

func (s *EventService) Validate(ctx context.Context, eventID uuid.UUID) (*scheduler.Report, error) {
	event, err := s.GetEvent(ctx, eventID.String())
	if err != nil {
		return nil, err
	}
	sched, err := s.loadSchedule(ctx, event)
	if err != nil {
		return nil, err
	}
	report := scheduler.Validate(schedulerConfig(event, s.cfg), sched.Matches)
	return &report, nil
}

func (s *EventService) Export(ctx context.Context, eventID uuid.UUID) ([]byte, error) {
	event, err := s.GetEvent(ctx, eventID.String())
	if err != nil {
		return nil, err
	}
	sched, err := s.loadSchedule(ctx, event)
	if err != nil {
		return nil, err
	}
	return exchange.Export(schedulerConfig(event, s.cfg), toSchedulerPlayers(event.Players), sched)
}

// Import replaces the event's schedule with a document exported from an
// event with the same roster names. The document's limits become the
// event's.
func (s *EventService) Import(ctx context.Context, eventID, userID uuid.UUID, data []byte) (*ScheduleView, error) {
	unlock := s.lock(eventID)
	defer unlock()

	event, err := s.ownedEvent(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if event.Status == domain.EventStatusLocked {
		return nil, domain.ErrEventLocked
	}
	imported, err := exchange.Import(data, toSchedulerPlayers(event.Players))
	if err != nil {
		return nil, err
	}

	event.TargetGames = imported.Config.TargetGames
	event.MaxOpponentRepeats = imported.Config.MaxOpponentRepeats
	event.MaxPartnerRepeats = imported.Config.MaxPartnerRepeats
	if imported.Config.Courts > 0 {
		event.Courts = imported.Config.Courts
	}
	event.Status = domain.EventStatusScheduled

	// Rows are keyed by match id, so ids colliding with another event's
	// schedule are reassigned.
	sched := imported.Schedule
	for i := range sched.Matches {
		if existing, err := s.matchRepo.GetByID(ctx, sched.Matches[i].ID); err == nil && existing.EventID != event.ID {
			sched.Matches[i].ID = uuid.New()
		}
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, err
	}
	if err := s.matchRepo.ReplaceAll(ctx, event.ID, toRows(event.ID, sched, 0), sched.Waitlists); err != nil {
		return nil, err
	}

	s.notify(ScheduleChange{EventID: event.ID, Kind: ChangeImported})
	return s.GetSchedule(ctx, event.ID)
}

func generateShortCode() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return strings.ToUpper(hex.EncodeToString(bytes))
}

func randomSeed() int64 {
	var b [8]byte
	rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}
