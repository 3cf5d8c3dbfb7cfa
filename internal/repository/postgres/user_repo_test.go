package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/repository/postgres"
	"github.com/dom/court-rotation/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_Operators(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewUserRepository(db)
		ctx := context.Background()

		organizer := &domain.User{DisplayName: "organizer", PasswordHash: "hash"}
		require.NoError(t, repo.Create(ctx, organizer))
		assert.NotEqual(t, uuid.Nil, organizer.ID, "ids are assigned on create")

		err := repo.Create(ctx, &domain.User{DisplayName: "organizer", PasswordHash: "other"})
		assert.Error(t, err, "display names are unique")

		tests := []struct {
			name    string
			get     func() (*domain.User, error)
			wantErr bool
		}{
			{"by id", func() (*domain.User, error) { return repo.GetByID(ctx, organizer.ID) }, false},
			{"by display name", func() (*domain.User, error) { return repo.GetByDisplayName(ctx, "organizer") }, false},
			{"unknown id", func() (*domain.User, error) { return repo.GetByID(ctx, uuid.New()) }, true},
			{"unknown display name", func() (*domain.User, error) { return repo.GetByDisplayName(ctx, "Organizer") }, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := tt.get()
				if tt.wantErr {
					assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, organizer.ID, got.ID)
				assert.Equal(t, "hash", got.PasswordHash)
			})
		}
	})
}

func TestSessionRepository(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewSessionRepository(db)
		ctx := context.Background()
		now := time.Now()

		operator, _ := testutil.NewUserBuilder().Build(t, db)
		other, _ := testutil.NewUserBuilder().Build(t, db)

		session := func(user *domain.User, expires time.Time) *domain.UserSession {
			s := &domain.UserSession{UserID: user.ID, RefreshTokenHash: "hash", ExpiresAt: expires}
			require.NoError(t, repo.Create(ctx, s))
			return s
		}
		laptop := session(operator, now.Add(time.Hour))
		phone := session(operator, now.Add(time.Hour))
		stale := session(operator, now.Add(-time.Hour))
		elsewhere := session(other, now.Add(-time.Hour))

		t.Run("rotate", func(t *testing.T) {
			next := &domain.UserSession{UserID: operator.ID, RefreshTokenHash: "next", ExpiresAt: now.Add(2 * time.Hour)}
			require.NoError(t, repo.Rotate(ctx, laptop.ID, next))

			_, err := repo.GetByID(ctx, laptop.ID)
			assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
			got, err := repo.GetByID(ctx, next.ID)
			require.NoError(t, err)
			assert.Equal(t, "next", got.RefreshTokenHash)

			// A rotated session cannot be rotated again
			again := &domain.UserSession{UserID: operator.ID, RefreshTokenHash: "again", ExpiresAt: now.Add(time.Hour)}
			assert.ErrorIs(t, repo.Rotate(ctx, laptop.ID, again), gorm.ErrRecordNotFound)
			_, err = repo.GetByID(ctx, again.ID)
			assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "the replacement is rolled back")

			_, err = repo.GetByID(ctx, phone.ID)
			assert.NoError(t, err, "other devices keep their session")
		})

		t.Run("delete expired", func(t *testing.T) {
			n, err := repo.DeleteExpired(ctx, operator.ID, now)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			_, err = repo.GetByID(ctx, stale.ID)
			assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
			_, err = repo.GetByID(ctx, elsewhere.ID)
			assert.NoError(t, err, "only the named operator is pruned")
		})

		t.Run("delete by user", func(t *testing.T) {
			require.NoError(t, repo.DeleteByUserID(ctx, operator.ID))
			_, err := repo.GetByID(ctx, phone.ID)
			assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
			_, err = repo.GetByID(ctx, elsewhere.ID)
			assert.NoError(t, err)
		})
	})
}
