package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventStatus is the lifecycle of an event's schedule
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"     // roster only, nothing generated
	EventStatusScheduled EventStatus = "scheduled" // schedule generated, open for review
	EventStatusLocked    EventStatus = "locked"    // every match approved
)

const (
	MinEventPlayers = 4
	MaxEventPlayers = 200
	MaxCourts       = 32

	// accepted range for an explicit skill input
	MinSkill = 0.0
	MaxSkill = 7.0
)

// Event is one session of round-based play on a set of courts.
type Event struct {
	ID                 uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	ShortCode          string         `json:"shortCode" gorm:"uniqueIndex;size:10;not null"`
	Name               string         `json:"name" gorm:"not null"`
	CreatedBy          uuid.UUID      `json:"createdBy" gorm:"type:uuid;not null;index"`
	Status             EventStatus    `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	Courts             int            `json:"courts" gorm:"not null"`
	TargetGames        int            `json:"targetGames" gorm:"not null"`
	MaxOpponentRepeats int            `json:"maxOpponentRepeats" gorm:"not null"`
	MaxPartnerRepeats  int            `json:"maxPartnerRepeats" gorm:"not null;default:0"`
	Seed               int64          `json:"seed" gorm:"not null;default:0"`
	Waitlists          datatypes.JSON `json:"waitlists" gorm:"type:jsonb;default:'[]'"` // [[playerId, ...], ...] per round
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	GeneratedAt        *time.Time     `json:"generatedAt"`

	// Relations
	Creator *User         `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Players []EventPlayer `json:"players,omitempty" gorm:"foreignKey:EventID"`
}

func (Event) TableName() string {
	return "events"
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// DecodeWaitlists parses the stored per-round waitlists.
func (e *Event) DecodeWaitlists() ([][]uuid.UUID, error) {
	if len(e.Waitlists) == 0 {
		return nil, nil
	}
	var out [][]uuid.UUID
	if err := json.Unmarshal(e.Waitlists, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventPlayer is a roster entry. Skill is optional; without it the rating
// comes from the recorded history.
type EventPlayer struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	EventID     uuid.UUID `json:"eventId" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"not null"`
	Skill       *float64  `json:"skill"`
	GamesPlayed int       `json:"gamesPlayed" gorm:"not null;default:0"`
	Wins        int       `json:"wins" gorm:"not null;default:0"`
	PointDiff   float64   `json:"pointDiff" gorm:"not null;default:0"`
	JoinOrder   int       `json:"joinOrder" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (EventPlayer) TableName() string {
	return "event_players"
}

func (p *EventPlayer) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
