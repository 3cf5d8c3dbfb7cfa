package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// Response types matching backend

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Event struct {
	ID          string `json:"id"`
	ShortCode   string `json:"shortCode"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Courts      int    `json:"courts"`
	TargetGames int    `json:"targetGames"`
	Seed        int64  `json:"seed"`
}

type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Match struct {
	ID      string      `json:"id"`
	Number  int         `json:"number"`
	Round   int         `json:"round"`
	Style   string      `json:"style"`
	Status  string      `json:"status"`
	Balance float64     `json:"balance"`
	Team1   []PlayerRef `json:"team1"`
	Team2   []PlayerRef `json:"team2"`
}

type Round struct {
	Index    int         `json:"index"`
	Style    string      `json:"style"`
	Matches  []Match     `json:"matches"`
	Waitlist []PlayerRef `json:"waitlist"`
}

type Schedule struct {
	Event   Event   `json:"event"`
	Matches int     `json:"matches"`
	Rounds  []Round `json:"rounds"`
}

type Report struct {
	OK              bool    `json:"ok"`
	Matches         int     `json:"matches"`
	Rounds          int     `json:"rounds"`
	MinGames        int     `json:"minGames"`
	MaxGames        int     `json:"maxGames"`
	MeanBalance     float64 `json:"meanBalance"`
	PositiveBalance float64 `json:"positiveBalance"`
	Violations      []struct {
		Kind string `json:"kind"`
	} `json:"violations"`
}

// RegisterUser creates a new user account
func (c *APIClient) RegisterUser(baseName string) (*User, string, error) {
	displayName := fmt.Sprintf("%s_%d", baseName, time.Now().UnixNano()%100000)

	body := map[string]string{
		"displayName": displayName,
		"password":    "testpassword123",
	}

	var result AuthResponse
	if err := c.do("POST", "/auth/register", body, "", http.StatusOK, &result); err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}
	return &result.User, result.AccessToken, nil
}

// CreateEvent creates an event with the given roster
func (c *APIClient) CreateEvent(token, name string, courts, target int, seed int64, roster []rosterEntry) (*Event, error) {
	body := map[string]interface{}{
		"name":        name,
		"courts":      courts,
		"targetGames": target,
		"seed":        seed,
		"players":     roster,
	}

	var event Event
	if err := c.do("POST", "/events", body, token, http.StatusCreated, &event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &event, nil
}

// GenerateSchedule asks the server to build the event's schedule
func (c *APIClient) GenerateSchedule(token, eventID string) (*Schedule, error) {
	var sched Schedule
	if err := c.do("POST", "/events/"+eventID+"/schedule", nil, token, http.StatusOK, &sched); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return &sched, nil
}

func (c *APIClient) GetValidation(eventID string) (*Report, error) {
	var report Report
	if err := c.do("GET", "/events/"+eventID+"/validation", nil, "", http.StatusOK, &report); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	return &report, nil
}

// ApproveMatch approves one match
func (c *APIClient) ApproveMatch(token, eventID, matchID string) error {
	if err := c.do("POST", "/events/"+eventID+"/matches/"+matchID+"/approve", nil, token, http.StatusOK, nil); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

// do sends a JSON request and decodes the response into out when it is not
// nil.
func (c *APIClient) do(method, path string, body interface{}, token string, want int, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(bodyBytes))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
