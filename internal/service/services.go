package service

import (
	"github.com/dom/court-rotation/internal/config"
	"github.com/dom/court-rotation/internal/repository"
)

type Services struct {
	Auth  *AuthService
	Event *EventService
}

func NewServices(repos *repository.Repositories, cfg *config.Config) *Services {
	return &Services{
		Auth:  NewAuthService(repos.User, repos.Session, cfg),
		Event: NewEventService(repos.Event, repos.EventPlayer, repos.ScheduledMatch, cfg),
	}
}
