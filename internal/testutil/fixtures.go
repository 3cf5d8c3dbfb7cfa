package testutil

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dom/court-rotation/internal/domain"
	"github.com/dom/court-rotation/internal/service"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	displayName string
	password    string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		displayName: fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password:    "testpassword123",
	}
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BuildAndAuthenticate creates a user via API and returns the user and access token
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	reqBody := map[string]string{
		"displayName": b.displayName,
		"password":    b.password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:          userID,
		DisplayName: authResp.User.DisplayName,
	}

	return user, authResp.AccessToken
}

// EventBuilder creates test events with a builder pattern
type EventBuilder struct {
	creator  *domain.User
	name     string
	courts   int
	target   int
	maxOpp   int
	maxPart  int
	seed     int64
	players  int
	skillLo  float64
	skillHi  float64
	noSkills bool
}

// NewEventBuilder creates a new EventBuilder with default values: 16
// players rated 2.5 to 4.75 on 4 courts, 8 games each.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		name:    fmt.Sprintf("event_%s", uuid.New().String()[:8]),
		courts:  4,
		target:  8,
		maxOpp:  2,
		seed:    42,
		players: 16,
		skillLo: 2.5,
		skillHi: 4.75,
	}
}

// WithCreator sets the event owner
func (b *EventBuilder) WithCreator(user *domain.User) *EventBuilder {
	b.creator = user
	return b
}

func (b *EventBuilder) WithName(name string) *EventBuilder {
	b.name = name
	return b
}

func (b *EventBuilder) WithCourts(courts int) *EventBuilder {
	b.courts = courts
	return b
}

func (b *EventBuilder) WithTargetGames(target int) *EventBuilder {
	b.target = target
	return b
}

func (b *EventBuilder) WithLimits(maxOpponent, maxPartner int) *EventBuilder {
	b.maxOpp = maxOpponent
	b.maxPart = maxPartner
	return b
}

func (b *EventBuilder) WithSeed(seed int64) *EventBuilder {
	b.seed = seed
	return b
}

// WithPlayers sets the roster size and the evenly spread skill range
func (b *EventBuilder) WithPlayers(n int, lo, hi float64) *EventBuilder {
	b.players = n
	b.skillLo = lo
	b.skillHi = hi
	return b
}

// WithoutSkills leaves every skill empty so ratings come from history
func (b *EventBuilder) WithoutSkills() *EventBuilder {
	b.noSkills = true
	return b
}

// PlayerInputs returns the roster as service input
func (b *EventBuilder) PlayerInputs() []service.PlayerInput {
	out := make([]service.PlayerInput, b.players)
	for i := range out {
		out[i] = service.PlayerInput{Name: fmt.Sprintf("Player %02d", i+1)}
		if b.noSkills {
			out[i].GamesPlayed = 10
			out[i].Wins = i % 10
			out[i].PointDiff = float64(i - b.players/2)
			continue
		}
		skill := b.skillLo
		if b.players > 1 {
			skill += (b.skillHi - b.skillLo) * float64(i) / float64(b.players-1)
		}
		out[i].Skill = &skill
	}
	return out
}

// Input returns the event as service input. The creator must be set.
func (b *EventBuilder) Input() service.CreateEventInput {
	input := service.CreateEventInput{
		Name:               b.name,
		Courts:             b.courts,
		TargetGames:        b.target,
		MaxOpponentRepeats: b.maxOpp,
		MaxPartnerRepeats:  b.maxPart,
		Seed:               &b.seed,
		Players:            b.PlayerInputs(),
	}
	if b.creator != nil {
		input.CreatedBy = b.creator.ID
	}
	return input
}

// Build creates the event and its roster in the database
func (b *EventBuilder) Build(t *testing.T, db *gorm.DB) *domain.Event {
	t.Helper()

	if b.creator == nil {
		b.creator, _ = NewUserBuilder().Build(t, db)
	}

	event := &domain.Event{
		ID:                 uuid.New(),
		ShortCode:          generateShortCode(),
		Name:               b.name,
		CreatedBy:          b.creator.ID,
		Status:             domain.EventStatusDraft,
		Courts:             b.courts,
		TargetGames:        b.target,
		MaxOpponentRepeats: b.maxOpp,
		MaxPartnerRepeats:  b.maxPart,
		Seed:               b.seed,
		Waitlists:          datatypes.JSON("[]"),
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	for i, in := range b.PlayerInputs() {
		player := domain.EventPlayer{
			ID:          uuid.New(),
			EventID:     event.ID,
			Name:        in.Name,
			Skill:       in.Skill,
			GamesPlayed: in.GamesPlayed,
			Wins:        in.Wins,
			PointDiff:   in.PointDiff,
			JoinOrder:   i,
		}
		if err := db.Create(&player).Error; err != nil {
			t.Fatalf("failed to create player: %v", err)
		}
		event.Players = append(event.Players, player)
	}

	return event
}

func generateShortCode() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return strings.ToUpper(hex.EncodeToString(bytes))
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}
