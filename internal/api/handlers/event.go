package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dom/court-rotation/internal/api/middleware"
	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/exchange"
	"github.com/dom/court-rotation/internal/scheduler"
	"github.com/dom/court-rotation/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const maxImportSize = 4 << 20

type EventHandler struct {
	eventService *service.EventService
}

func NewEventHandler(eventService *service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type PlayerRequest struct {
	Name        string   `json:"name"`
	Skill       *float64 `json:"skill"`
	GamesPlayed int      `json:"gamesPlayed"`
	Wins        int      `json:"wins"`
	PointDiff   float64  `json:"pointDiff"`
}

func (p PlayerRequest) input() service.PlayerInput {
	return service.PlayerInput{
		Name:        p.Name,
		Skill:       p.Skill,
		GamesPlayed: p.GamesPlayed,
		Wins:        p.Wins,
		PointDiff:   p.PointDiff,
	}
}

type CreateEventRequest struct {
	Name               string          `json:"name"`
	Courts             int             `json:"courts"`
	TargetGames        int             `json:"targetGames"`
	MaxOpponentRepeats int             `json:"maxOpponentRepeats"`
	MaxPartnerRepeats  int             `json:"maxPartnerRepeats"`
	Seed               *int64          `json:"seed"`
	Players            []PlayerRequest `json:"players"`
}

type SwapRequest struct {
	Round   int    `json:"round"`
	PlayerA string `json:"playerA"`
	PlayerB string `json:"playerB"`
}

type RetypeRequest struct {
	Style string `json:"style"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	input := service.CreateEventInput{
		CreatedBy:          userID,
		Name:               req.Name,
		Courts:             req.Courts,
		TargetGames:        req.TargetGames,
		MaxOpponentRepeats: req.MaxOpponentRepeats,
		MaxPartnerRepeats:  req.MaxPartnerRepeats,
		Seed:               req.Seed,
	}
	for _, p := range req.Players {
		input.Players = append(input.Players, p.input())
	}

	event, err := h.eventService.CreateEvent(r.Context(), input)
	if err != nil {
		writeError(w, "event.Create", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(event, true))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.GetEvent(r.Context(), chi.URLParam(r, "idOrCode"))
	if err != nil {
		writeError(w, "event.Get", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event, true))
}

func (h *EventHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	events, err := h.eventService.GetUserEvents(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, "event.ListMine", err)
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.ownerRequest(w, r, "event.UpdatePlayer")
	if !ok {
		return
	}
	playerID, err := uuid.Parse(chi.URLParam(r, "playerId"))
	if err != nil {
		http.Error(w, "Invalid player ID", http.StatusBadRequest)
		return
	}

	var req PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	player, err := h.eventService.UpdatePlayer(r.Context(), event.ID, userID, playerID, req.input())
	if err != nil {
		writeError(w, "event.UpdatePlayer", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlayerResponse(player))
}

func (h *EventHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.ownerRequest(w, r, "event.Generate")
	if !ok {
		return
	}
	view, err := h.eventService.GenerateSchedule(r.Context(), event.ID, userID)
	h.writeSchedule(w, "event.Generate", view, err)
}

func (h *EventHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.GetEvent(r.Context(), chi.URLParam(r, "idOrCode"))
	if err != nil {
		writeError(w, "event.GetSchedule", err)
		return
	}
	view, err := h.eventService.GetSchedule(r.Context(), event.ID)
	h.writeSchedule(w, "event.GetSchedule", view, err)
}

func (h *EventHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.ownerRequest(w, r, "event.Approve")
	if !ok {
		return
	}
	matchID, err := uuid.Parse(chi.URLParam(r, "matchId"))
	if err != nil {
		http.Error(w, "Invalid match ID", http.StatusBadRequest)
		return
	}

	match, err := h.eventService.ApproveMatch(r.Context(), event.ID, matchID, userID)
	if err != nil {
		writeError(w, "event.Approve", err)
		return
	}
	resp, err := toMatchResponse(match, rosterNames(event))
	if err != nil {
		writeError(w, "event.Approve", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) Reject(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.ownerRequest(w, r, "event.Reject")
	if !ok {
		return
	}
	matchID, err := uuid.Parse(chi.URLParam(r, "matchId"))
	if err != nil {
		http.Error(w, "Invalid match ID", http.StatusBadRequest)
		return
	}

	view, replacement, err := h.eventService.RejectMatch(r.Context(), event.ID, matchID, userID)
	if err != nil {
		writeError(w, "event.Reject", err)
		return
	}
	sched, err := toScheduleResponse(view)
	if err != nil {
		writeError(w, "event.Reject", err)
		return
	}
	resp := RejectResponse{Schedule: sched}
	if replacement != nil {
		mr, err := toMatchResponse(replacement, rosterNames(view.Event))
		if err != nil {
			writeError(w, "event.Reject", err)
			return
		}
		resp.Replacement = &mr
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) Swap(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.ownerRequest(w, r, "event.Swap")
	if !ok {
		return
	}

	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	a, errA := uuid.Parse(req.PlayerA)
	b, errB := uuid.Parse(req.PlayerB)
	if errA != nil || errB != nil {
		http.Error(w, "Invalid player ID", http.StatusBadRequest)
		return
	}

	view, err := h.eventService.SwapPlayers(r.Context(), event.ID, userID, req.Round, a, b)
	h.writeSchedule(w, "event.Swap", view, err)
}

func (h *EventHandler) Retype(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.ownerRequest(w, r, "event.Retype")
	if !ok {
		return
	}
	round, ok := roundParam(w, r)
	if !ok {
		return
	}

	var req RetypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	view, err := h.eventService.RetypeRound(r.Context(), event.ID, userID, round, scheduler.Style(req.Style))
	h.writeSchedule(w, "event.Retype", view, err)
}

func (h *EventHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.ownerRequest(w, r, "event.Regenerate")
	if !ok {
		return
	}
	round, ok := roundParam(w, r)
	if !ok {
		return
	}

	view, err := h.eventService.RegenerateFrom(r.Context(), event.ID, userID, round)
	h.writeSchedule(w, "event.Regenerate", view, err)
}

func (h *EventHandler) Validation(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.GetEvent(r.Context(), chi.URLParam(r, "idOrCode"))
	if err != nil {
		writeError(w, "event.Validation", err)
		return
	}
	report, err := h.eventService.Validate(r.Context(), event.ID)
	if err != nil {
		writeError(w, "event.Validation", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report, event))
}

func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.GetEvent(r.Context(), chi.URLParam(r, "idOrCode"))
	if err != nil {
		writeError(w, "event.Export", err)
		return
	}
	data, err := h.eventService.Export(r.Context(), event.ID)
	if err != nil {
		writeError(w, "event.Export", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="schedule-%s.json"`, event.ShortCode))
	w.Write(data)
}

func (h *EventHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.ownerRequest(w, r, "event.Import")
	if !ok {
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	view, err := h.eventService.Import(r.Context(), event.ID, userID, data)
	h.writeSchedule(w, "event.Import", view, err)
}

// ownerRequest resolves the event in the path and the calling user.
// Ownership itself is checked by the service.
func (h *EventHandler) ownerRequest(w http.ResponseWriter, r *http.Request, op string) (uuid.UUID, *domain.Event, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, nil, false
	}
	event, err := h.eventService.GetEvent(r.Context(), chi.URLParam(r, "idOrCode"))
	if err != nil {
		writeError(w, op, err)
		return uuid.Nil, nil, false
	}
	return userID, event, true
}

func (h *EventHandler) writeSchedule(w http.ResponseWriter, op string, view *service.ScheduleView, err error) {
	if err != nil {
		writeError(w, op, err)
		return
	}
	resp, err := toScheduleResponse(view)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func roundParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil || round < 0 {
		http.Error(w, "Invalid round", http.StatusBadRequest)
		return 0, false
	}
	return round, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// writeError maps service and scheduler errors onto HTTP status codes.
// Refused edits carry their reason in the body.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		editErr   *scheduler.EditError
		importErr *exchange.ImportError
		configErr *scheduler.ConfigError
	)

	switch {
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, service.ErrMatchNotInEvent),
		errors.Is(err, service.ErrPlayerNotInEvent),
		errors.Is(err, scheduler.ErrMatchNotFound),
		errors.Is(err, scheduler.ErrRoundNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, domain.ErrNotEventOwner):
		http.Error(w, err.Error(), http.StatusForbidden)

	case errors.Is(err, domain.ErrNoSchedule),
		errors.Is(err, domain.ErrEventLocked),
		errors.Is(err, service.ErrInvalidMatchAction),
		errors.Is(err, scheduler.ErrMatchNotEditable),
		errors.Is(err, scheduler.ErrApprovedInTail):
		http.Error(w, err.Error(), http.StatusConflict)

	case errors.Is(err, scheduler.ErrConstraintViolate),
		errors.Is(err, scheduler.ErrNoReplacement):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)

	case errors.Is(err, domain.ErrInvalidEventConfig),
		errors.Is(err, domain.ErrInvalidRoster),
		errors.Is(err, domain.ErrDuplicatePlayer),
		errors.Is(err, scheduler.ErrNotEnoughPlayers),
		errors.As(err, &editErr),
		errors.As(err, &importErr),
		errors.As(err, &configErr):
		http.Error(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, service.ErrGenerationTimeout):
		log.Warnf("[%s] %v", op, err)
		http.Error(w, err.Error(), http.StatusGatewayTimeout)

	default:
		log.Errorf("[%s] %v", op, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
