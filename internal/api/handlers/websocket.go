package handlers

import (
	"errors"
	"net/http"

	"github.com/dom/court-rotation/internal/api/middleware"
	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/service"
	"github.com/dom/court-rotation/internal/websocket"
	ws "github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers only receive updates
	},
}

// WebSocketHandler upgrades live-view connections. Operators connect with
// an access token and may subscribe to any event. Anyone holding a short
// code may connect without a token by naming the event in ?event=; such a
// viewer is subscribed straight away and stays on that event.
type WebSocketHandler struct {
	hub          *websocket.Hub
	eventService *service.EventService
}

func NewWebSocketHandler(hub *websocket.Hub, eventService *service.EventService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		eventService: eventService,
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	userID, operator := middleware.GetUserID(r.Context())
	idOrCode := r.URL.Query().Get("event")
	if !operator && idOrCode == "" {
		http.Error(w, "Token or event required", http.StatusUnauthorized)
		return
	}

	// The event is resolved before the upgrade so a bad code gets a plain
	// HTTP error.
	var event *domain.Event
	if idOrCode != "" {
		var err error
		event, err = h.eventService.GetEvent(r.Context(), idOrCode)
		if errors.Is(err, domain.ErrEventNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Errorf("[handlers.WebSocket] resolve %q: %v", idOrCode, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[handlers.WebSocket] upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, userID)
	h.hub.Register(client)
	if event != nil {
		h.hub.Watch(client, event)
	}
	log.WithFields(log.Fields{
		"anonymous": client.Anonymous(),
		"event":     idOrCode,
	}).Debug("[handlers.WebSocket] viewer connected")

	go client.WritePump()
	go client.ReadPump()
}
