package repository

import (
	"context"
	"time"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
}

// SessionRepository holds operator refresh sessions. An operator may be
// signed in on several devices at once.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.UserSession, error)
	Rotate(ctx context.Context, oldID uuid.UUID, next *domain.UserSession) error
	DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type EventRepository interface {
	// Create stores the event together with its players.
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	GetByShortCode(ctx context.Context, code string) (*domain.Event, error)
	Update(ctx context.Context, event *domain.Event) error
	GetByCreator(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Event, error)
}

type EventPlayerRepository interface {
	GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*domain.EventPlayer, error)
	Update(ctx context.Context, player *domain.EventPlayer) error
}

type ScheduledMatchRepository interface {
	GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*domain.ScheduledMatch, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledMatch, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MatchStatus) error
	// ReplaceFromRound deletes the event's matches of round fromRound and
	// later, inserts the given ones and stores the waitlists on the event,
	// all in one transaction.
	ReplaceFromRound(ctx context.Context, eventID uuid.UUID, fromRound int, matches []*domain.ScheduledMatch, waitlists [][]uuid.UUID) error
	ReplaceAll(ctx context.Context, eventID uuid.UUID, matches []*domain.ScheduledMatch, waitlists [][]uuid.UUID) error
}

type Repositories struct {
	User           UserRepository
	Session        SessionRepository
	Event          EventRepository
	EventPlayer    EventPlayerRepository
	ScheduledMatch ScheduledMatchRepository
}
