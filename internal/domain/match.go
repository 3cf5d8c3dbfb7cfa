package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusApproved MatchStatus = "approved"
	MatchStatusRejected MatchStatus = "rejected"
)

// ScheduledMatch is a persisted 2v2 match of an event's schedule. The id is
// assigned by the scheduler.
type ScheduledMatch struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	EventID   uuid.UUID      `json:"eventId" gorm:"type:uuid;not null;index"`
	Number    int            `json:"number" gorm:"not null"`
	Round     int            `json:"round" gorm:"not null;index"`
	Style     string         `json:"style" gorm:"type:varchar(30);not null;default:'unspecified'"`
	Team1     datatypes.JSON `json:"team1" gorm:"type:jsonb;not null"` // [playerId, playerId]
	Team2     datatypes.JSON `json:"team2" gorm:"type:jsonb;not null"`
	Status    MatchStatus    `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Balance   float64        `json:"balance" gorm:"not null;default:0"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (ScheduledMatch) TableName() string {
	return "scheduled_matches"
}

// EncodeIDs marshals a list of player ids for a JSON column.
func EncodeIDs(ids []uuid.UUID) datatypes.JSON {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	data, _ := json.Marshal(ids)
	return datatypes.JSON(data)
}

// DecodeIDs is the inverse of EncodeIDs.
func DecodeIDs(data datatypes.JSON) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(data) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
