package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type scheduledMatchRepository struct {
	db *gorm.DB
}

func NewScheduledMatchRepository(db *gorm.DB) *scheduledMatchRepository {
	return &scheduledMatchRepository{db: db}
}

func (r *scheduledMatchRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*domain.ScheduledMatch, error) {
	var matches []*domain.ScheduledMatch
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("round, number").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *scheduledMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledMatch, error) {
	var match domain.ScheduledMatch
	err := r.db.WithContext(ctx).First(&match, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *scheduledMatchRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MatchStatus) error {
	res := r.db.WithContext(ctx).
		Model(&domain.ScheduledMatch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *scheduledMatchRepository) ReplaceFromRound(ctx context.Context, eventID uuid.UUID, fromRound int, matches []*domain.ScheduledMatch, waitlists [][]uuid.UUID) error {
	if waitlists == nil {
		waitlists = [][]uuid.UUID{}
	}
	encoded, err := json.Marshal(waitlists)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("event_id = ? AND round >= ?", eventID, fromRound).
			Delete(&domain.ScheduledMatch{}).Error
		if err != nil {
			return err
		}

		for _, m := range matches {
			m.EventID = eventID
		}
		if len(matches) > 0 {
			if err := tx.CreateInBatches(matches, 100).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		return tx.Model(&domain.Event{}).
			Where("id = ?", eventID).
			Updates(map[string]interface{}{
				"waitlists":    datatypes.JSON(encoded),
				"generated_at": &now,
				"updated_at":   now,
			}).Error
	})
}

func (r *scheduledMatchRepository) ReplaceAll(ctx context.Context, eventID uuid.UUID, matches []*domain.ScheduledMatch, waitlists [][]uuid.UUID) error {
	return r.ReplaceFromRound(ctx, eventID, 0, matches, waitlists)
}
