package postgres

import (
	"context"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type eventPlayerRepository struct {
	db *gorm.DB
}

func NewEventPlayerRepository(db *gorm.DB) *eventPlayerRepository {
	return &eventPlayerRepository{db: db}
}

func (r *eventPlayerRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*domain.EventPlayer, error) {
	var players []*domain.EventPlayer
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("join_order").
		Find(&players).Error
	if err != nil {
		return nil, err
	}
	return players, nil
}

func (r *eventPlayerRepository) Update(ctx context.Context, player *domain.EventPlayer) error {
	return r.db.WithContext(ctx).Save(player).Error
}
