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
	"gorm.io/gorm"
)

// roundsOf builds rounds of matches over the event's first four players.
func roundsOf(event *domain.Event, rounds, perRound int) []*domain.ScheduledMatch {
	p := event.Players
	var out []*domain.ScheduledMatch
	number := 1
	for r := 0; r < rounds; r++ {
		for i := 0; i < perRound; i++ {
			out = append(out, &domain.ScheduledMatch{
				ID:      uuid.New(),
				Number:  number,
				Round:   r,
				Style:   "competitive",
				Team1:   domain.EncodeIDs([]uuid.UUID{p[0].ID, p[1].ID}),
				Team2:   domain.EncodeIDs([]uuid.UUID{p[2].ID, p[3].ID}),
				Status:  domain.MatchStatusPending,
				Balance: 12.5,
			})
			number++
		}
	}
	return out
}

func TestScheduledMatchRepository_ReplaceAll(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewScheduledMatchRepository(db)
		ctx := context.Background()

		event := testutil.NewEventBuilder().WithPlayers(4, 2, 4).Build(t, db)
		matches := roundsOf(event, 3, 2)
		waitlists := [][]uuid.UUID{{}, {}, {event.Players[0].ID}}

		require.NoError(t, repo.ReplaceAll(ctx, event.ID, matches, waitlists))

		got, err := repo.GetByEventID(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, got, 6)
		for i, m := range got {
			assert.Equal(t, i+1, m.Number, "ordered by round then number")
			assert.Equal(t, event.ID, m.EventID)
		}
		team1, err := domain.DecodeIDs(got[0].Team1)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{event.Players[0].ID, event.Players[1].ID}, team1)
		assert.Equal(t, 12.5, got[0].Balance)

		stored, err := postgres.NewEventRepository(db).GetByID(ctx, event.ID)
		require.NoError(t, err)
		decoded, err := stored.DecodeWaitlists()
		require.NoError(t, err)
		assert.Len(t, decoded, 3)
		assert.Equal(t, []uuid.UUID{event.Players[0].ID}, decoded[2])

		// A second call replaces everything
		require.NoError(t, repo.ReplaceAll(ctx, event.ID, roundsOf(event, 1, 1), nil))
		got, err = repo.GetByEventID(ctx, event.ID)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestScheduledMatchRepository_ReplaceFromRound(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewScheduledMatchRepository(db)
		ctx := context.Background()

		event := testutil.NewEventBuilder().WithPlayers(4, 2, 4).Build(t, db)
		other := testutil.NewEventBuilder().WithPlayers(4, 2, 4).Build(t, db)
		original := roundsOf(event, 3, 2)
		require.NoError(t, repo.ReplaceAll(ctx, event.ID, original, nil))
		require.NoError(t, repo.ReplaceAll(ctx, other.ID, roundsOf(other, 2, 1), nil))

		tail := roundsOf(event, 3, 1)[1:] // rounds 1 and 2, one match each
		require.NoError(t, repo.ReplaceFromRound(ctx, event.ID, 1, tail, nil))

		got, err := repo.GetByEventID(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, original[0].ID, got[0].ID)
		assert.Equal(t, original[1].ID, got[1].ID)
		assert.Equal(t, tail[0].ID, got[2].ID)
		assert.Equal(t, tail[1].ID, got[3].ID)

		untouched, err := repo.GetByEventID(ctx, other.ID)
		require.NoError(t, err)
		assert.Len(t, untouched, 2, "other events keep their matches")
	})
}

func TestScheduledMatchRepository_UpdateStatus(t *testing.T) {
	backends(t, func(t *testing.T, db *gorm.DB) {
		repo := postgres.NewScheduledMatchRepository(db)
		ctx := context.Background()

		event := testutil.NewEventBuilder().WithPlayers(4, 2, 4).Build(t, db)
		matches := roundsOf(event, 1, 1)
		require.NoError(t, repo.ReplaceAll(ctx, event.ID, matches, nil))

		tests := []struct {
			name    string
			id      uuid.UUID
			status  domain.MatchStatus
			wantErr error
		}{
			{"approve", matches[0].ID, domain.MatchStatusApproved, nil},
			{"unknown match", uuid.New(), domain.MatchStatusApproved, gorm.ErrRecordNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := repo.UpdateStatus(ctx, tt.id, tt.status)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					return
				}
				require.NoError(t, err)

				got, err := repo.GetByID(ctx, tt.id)
				require.NoError(t, err)
				assert.Equal(t, tt.status, got.Status)
			})
		}
	})
}
