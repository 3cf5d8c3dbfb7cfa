package postgres_test

import (
	"context"
	"testing"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/repository/postgres"
	"github.com/dom/court-rotation/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// backends runs fn against a PostgreSQL container and an SQLite file.
func backends(t *testing.T, fn func(t *testing.T, db *gorm.DB)) {
	t.Run("postgres", func(t *testing.T) {
		if testing.Short() {
			t.Skip("container backend skipped in short mode")
		}
		fn(t, testutil.NewTestDB(t).DB)
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, testutil.NewSQLiteDB(t).DB)
	})
}

func TestEventRepository_CreateAndGet(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewEventRepository(db)
		ctx := context.Background()

		user, _ := testutil.NewUserBuilder().Build(t, db)
		skill := 3.5
		event := &domain.Event{
			ShortCode:          "ABC123",
			Name:               "Thursday open play",
			CreatedBy:          user.ID,
			Status:             domain.EventStatusDraft,
			Courts:             2,
			TargetGames:        6,
			MaxOpponentRepeats: 2,
			Seed:               99,
			Waitlists:          datatypes.JSON("[]"),
			Players: []domain.EventPlayer{
				{ID: uuid.New(), Name: "Cara", Skill: &skill, JoinOrder: 1},
				{ID: uuid.New(), Name: "Abe", GamesPlayed: 12, Wins: 7, PointDiff: 20, JoinOrder: 0},
			},
		}
		require.NoError(t, repo.Create(ctx, event))
		assert.NotEqual(t, uuid.Nil, event.ID)
		assert.Len(t, event.Players, 2, "players are restored on the struct after create")

		tests := []struct {
			name string
			get  func() (*domain.Event, error)
		}{
			{"by id", func() (*domain.Event, error) { return repo.GetByID(ctx, event.ID) }},
			{"by short code", func() (*domain.Event, error) { return repo.GetByShortCode(ctx, "ABC123") }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := tt.get()
				require.NoError(t, err)
				assert.Equal(t, event.Name, got.Name)
				assert.Equal(t, int64(99), got.Seed)
				require.NotNil(t, got.Creator)
				assert.Equal(t, user.DisplayName, got.Creator.DisplayName)

				require.Len(t, got.Players, 2)
				assert.Equal(t, "Abe", got.Players[0].Name, "players come back in join order")
				assert.Nil(t, got.Players[0].Skill)
				assert.Equal(t, 7, got.Players[0].Wins)
				require.NotNil(t, got.Players[1].Skill)
				assert.Equal(t, 3.5, *got.Players[1].Skill)
			})
		}

		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		_, err = repo.GetByShortCode(ctx, "NOPE00")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestEventRepository_Update(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewEventRepository(db)
		matches := postgres.NewScheduledMatchRepository(db)
		ctx := context.Background()

		event := testutil.NewEventBuilder().WithPlayers(4, 2, 4).Build(t, db)
		waiter := event.Players[0].ID
		require.NoError(t, matches.ReplaceAll(ctx, event.ID, nil, [][]uuid.UUID{{waiter}}))

		// A stale copy must not clobber the stored waitlists
		event.Status = domain.EventStatusScheduled
		event.Courts = 3
		require.NoError(t, repo.Update(ctx, event))

		got, err := repo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EventStatusScheduled, got.Status)
		assert.Equal(t, 3, got.Courts)
		assert.NotNil(t, got.GeneratedAt)
		waitlists, err := got.DecodeWaitlists()
		require.NoError(t, err)
		assert.Equal(t, [][]uuid.UUID{{waiter}}, waitlists)
		assert.Len(t, got.Players, 4)
	})
}

func TestEventRepository_GetByCreator(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewEventRepository(db)
		ctx := context.Background()

		user, _ := testutil.NewUserBuilder().Build(t, db)
		other, _ := testutil.NewUserBuilder().Build(t, db)
		for i := 0; i < 3; i++ {
			testutil.NewEventBuilder().WithCreator(user).WithPlayers(4, 2, 4).Build(t, db)
		}
		testutil.NewEventBuilder().WithCreator(other).WithPlayers(4, 2, 4).Build(t, db)

		events, err := repo.GetByCreator(ctx, user.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, events, 3)
		for _, e := range events {
			assert.Equal(t, user.ID, e.CreatedBy)
		}

		page, err := repo.GetByCreator(ctx, user.ID, 2, 2)
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})
}

func TestEventPlayerRepository(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewEventPlayerRepository(db)
		ctx := context.Background()

		event := testutil.NewEventBuilder().WithPlayers(5, 2, 4).Build(t, db)

		players, err := repo.GetByEventID(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, players, 5)
		for i, p := range players {
			assert.Equal(t, i, p.JoinOrder)
		}

		players[2].Skill = nil
		players[2].GamesPlayed = 9
		players[2].Wins = 4
		require.NoError(t, repo.Update(ctx, players[2]))

		again, err := repo.GetByEventID(ctx, event.ID)
		require.NoError(t, err)
		assert.Nil(t, again[2].Skill)
		assert.Equal(t, 9, again[2].GamesPlayed)
		assert.Equal(t, 4, again[2].Wins)
	})
}
