package websocket

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/repository"
	"github.com/dom/court-rotation/internal/service"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const lookupTimeout = 5 * time.Second

// Hub fans schedule changes out to the clients watching an event.
// It implements service.Notifier.
type Hub struct {
	clients    map[*Client]bool
	events     map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	join       chan *subscription
	leave      chan *Client
	broadcast  chan service.ScheduleChange
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopped    bool
	stopOnce   sync.Once
	eventRepo  repository.EventRepository
	mu         sync.RWMutex
}

type subscription struct {
	client *Client
	event  *domain.Event
}

var _ service.Notifier = (*Hub)(nil)

func NewHub(eventRepo repository.EventRepository) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		events:     make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan *subscription),
		leave:      make(chan *Client),
		broadcast:  make(chan service.ScheduleChange, 64),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		eventRepo:  eventRepo,
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.events = make(map[uuid.UUID]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.detach(client)
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()

		case sub := <-h.join:
			h.handleJoin(sub)

		case client := <-h.leave:
			h.mu.Lock()
			h.detach(client)
			h.mu.Unlock()

		case change := <-h.broadcast:
			h.handleBroadcast(change)
		}
	}
}

// Stop shuts the hub down and closes every client. It blocks until Run()
// has exited.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister is safe to call after the hub stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ScheduleChanged queues a SCHEDULE_UPDATED broadcast for the event's
// subscribers.
func (h *Hub) ScheduleChanged(change service.ScheduleChange) {
	select {
	case h.broadcast <- change:
	case <-h.done:
	}
}

// Subscribers returns the number of clients watching an event.
func (h *Hub) Subscribers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}

// resolve looks an event up by id or short code.
func (h *Hub) resolve(ctx context.Context, idOrCode string) (*domain.Event, error) {
	if id, err := uuid.Parse(idOrCode); err == nil {
		return h.eventRepo.GetByID(ctx, id)
	}
	return h.eventRepo.GetByShortCode(ctx, strings.ToUpper(idOrCode))
}

// Watch subscribes a registered client to an already resolved event.
func (h *Hub) Watch(c *Client, event *domain.Event) {
	select {
	case h.join <- &subscription{client: c, event: event}:
	case <-h.done:
	}
}

// subscribe resolves the event on the client's goroutine so that database
// lookups never block the hub loop.
func (h *Hub) subscribe(c *Client, idOrCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	event, err := h.resolve(ctx, idOrCode)
	if err != nil {
		log.Debugf("[ws.subscribe] event %q not found: %v", idOrCode, err)
		c.sendError("EVENT_NOT_FOUND", "Event does not exist")
		return
	}
	h.Watch(c, event)
}

func (h *Hub) unsubscribe(c *Client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

func (h *Hub) handleJoin(sub *subscription) {
	h.mu.Lock()
	if !h.clients[sub.client] {
		h.mu.Unlock()
		return
	}
	h.detach(sub.client)
	watchers, ok := h.events[sub.event.ID]
	if !ok {
		watchers = make(map[*Client]bool)
		h.events[sub.event.ID] = watchers
	}
	watchers[sub.client] = true
	sub.client.setEventID(sub.event.ID)
	count := len(watchers)
	h.mu.Unlock()

	log.WithFields(log.Fields{
		"event": sub.event.ID,
		"user":  sub.client.userID,
	}).Debug("[ws.join] client subscribed")

	msg, err := NewMessage(MessageTypeSubscribed, SubscribedPayload{
		EventID:     sub.event.ID.String(),
		ShortCode:   sub.event.ShortCode,
		Name:        sub.event.Name,
		Subscribers: count,
	})
	if err != nil {
		log.Errorf("[ws.join] failed to build message: %v", err)
		return
	}
	sub.client.Send(msg)
}

// detach removes the client from its event. Callers hold h.mu.
func (h *Hub) detach(c *Client) {
	id := c.EventID()
	if id == uuid.Nil {
		return
	}
	if watchers, ok := h.events[id]; ok {
		delete(watchers, c)
		if len(watchers) == 0 {
			delete(h.events, id)
		}
	}
	c.setEventID(uuid.Nil)
}

func (h *Hub) handleBroadcast(change service.ScheduleChange) {
	payload := ScheduleUpdatedPayload{
		EventID:   change.EventID.String(),
		Kind:      change.Kind,
		FromRound: change.FromRound,
	}
	if change.MatchID != nil {
		id := change.MatchID.String()
		payload.MatchID = &id
	}
	msg, err := NewMessage(MessageTypeScheduleUpdated, payload)
	if err != nil {
		log.Errorf("[ws.broadcast] failed to build message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.events[change.EventID] {
		client.Send(msg)
	}
}
