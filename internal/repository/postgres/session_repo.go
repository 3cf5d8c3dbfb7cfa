package postgres

import (
	"context"
	"time"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sessionRepository stores operator refresh sessions, one per signed-in
// device.
type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.UserSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.UserSession, error) {
	var session domain.UserSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Rotate replaces session oldID with next in one transaction. It returns
// gorm.ErrRecordNotFound when oldID is already gone, so each refresh token
// is honored once.
func (r *sessionRepository) Rotate(ctx context.Context, oldID uuid.UUID, next *domain.UserSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.UserSession{}, "id = ?", oldID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(next).Error
	})
}

// DeleteExpired drops the operator's sessions that lapsed before now and
// reports how many went.
func (r *sessionRepository) DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&domain.UserSession{}, "user_id = ? AND expires_at < ?", userID, now)
	return res.RowsAffected, res.Error
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.UserSession{}, "user_id = ?", userID).Error
}
