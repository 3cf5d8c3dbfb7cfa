package postgres

import (
	"context"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *eventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		players := event.Players
		event.Players = nil
		defer func() { event.Players = players }()

		if err := tx.Create(event).Error; err != nil {
			return err
		}
		for i := range players {
			players[i].EventID = event.ID
		}
		if len(players) == 0 {
			return nil
		}
		return tx.Create(&players).Error
	})
}

func (r *eventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var event domain.Event
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("join_order")
		}).
		First(&event, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) GetByShortCode(ctx context.Context, code string) (*domain.Event, error) {
	var event domain.Event
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("join_order")
		}).
		First(&event, "short_code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Update saves the event's own columns. Players are left alone, and the
// waitlists and generation time belong to the match repository.
func (r *eventRepository) Update(ctx context.Context, event *domain.Event) error {
	return r.db.WithContext(ctx).Omit("Players", "Creator", "Waitlists", "GeneratedAt").Save(event).Error
}

func (r *eventRepository) GetByCreator(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
