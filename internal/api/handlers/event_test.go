package handlers_test

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/dom/court-rotation/internal/api/handlers"
	"github.com/dom/court-rotation/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, method, url string, body interface{}, token string) *http.Response {
	t.Helper()
	req := testutil.CreateAuthenticatedRequest(t, method, url, body, token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createEventRequest(b *testutil.EventBuilder) map[string]interface{} {
	input := b.Input()
	players := make([]map[string]interface{}, len(input.Players))
	for i, p := range input.Players {
		players[i] = map[string]interface{}{"name": p.Name, "skill": p.Skill}
	}
	return map[string]interface{}{
		"name":               input.Name,
		"courts":             input.Courts,
		"targetGames":        input.TargetGames,
		"maxOpponentRepeats": input.MaxOpponentRepeats,
		"seed":               *input.Seed,
		"players":            players,
	}
}

// scheduledEvent creates an event over the API and generates its schedule.
func scheduledEvent(t *testing.T, ts *testutil.TestServer, token string) handlers.ScheduleResponse {
	t.Helper()

	resp := do(t, "POST", ts.APIURL("/events"), createEventRequest(testutil.NewEventBuilder()), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var event handlers.EventResponse
	testutil.AssertJSONResponse(t, resp, &event)

	resp = do(t, "POST", ts.APIURL("/events/"+event.ID+"/schedule"), nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sched handlers.ScheduleResponse
	testutil.AssertJSONResponse(t, resp, &sched)
	require.NotEmpty(t, sched.Rounds)
	return sched
}

func TestEventHandler_Create(t *testing.T) {
	ts := testutil.NewSQLiteTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	duplicate := createEventRequest(testutil.NewEventBuilder())
	dupPlayers := duplicate["players"].([]map[string]interface{})
	dupPlayers[1]["name"] = "PLAYER 01"

	tests := []struct {
		name           string
		token          string
		body           interface{}
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name:           "successful creation",
			token:          token,
			body:           createEventRequest(testutil.NewEventBuilder().WithName("Tuesday ladder")),
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var event handlers.EventResponse
				testutil.AssertJSONResponse(t, resp, &event)
				assert.Equal(t, "Tuesday ladder", event.Name)
				assert.Equal(t, "draft", event.Status)
				assert.Len(t, event.ShortCode, 6)
				require.Len(t, event.Players, 16)
				for _, p := range event.Players {
					assert.NotEmpty(t, p.Bracket)
					assert.Greater(t, p.Rating, 0.0)
				}
			},
		},
		{
			name:           "duplicate player names",
			token:          token,
			body:           duplicate,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "too few players",
			token:          token,
			body:           createEventRequest(testutil.NewEventBuilder().WithPlayers(3, 2, 4)),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unauthorized",
			token:          "",
			body:           createEventRequest(testutil.NewEventBuilder()),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, "POST", ts.APIURL("/events"), tt.body, tt.token)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}

	t.Run("listed for the creator", func(t *testing.T) {
		resp := do(t, "GET", ts.APIURL("/users/me/events"), nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var events []handlers.EventResponse
		testutil.AssertJSONResponse(t, resp, &events)
		require.Len(t, events, 1)
		assert.Empty(t, events[0].Players)
	})
}

func TestEventHandler_Get(t *testing.T) {
	ts := testutil.NewSQLiteTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	sched := scheduledEvent(t, ts, token)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"by id", "/events/" + sched.Event.ID, http.StatusOK},
		{"by short code", "/events/" + sched.Event.ShortCode, http.StatusOK},
		{"schedule by short code", "/events/" + strings.ToLower(sched.Event.ShortCode) + "/schedule", http.StatusOK},
		{"unknown event", "/events/" + uuid.New().String(), http.StatusNotFound},
		{"unknown schedule", "/events/NOPE00/schedule", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Viewers need no token
			resp := do(t, "GET", ts.APIURL(tt.path), nil, "")
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestEventHandler_ScheduleLifecycle(t *testing.T) {
	ts := testutil.NewSQLiteTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	_, otherToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	sched := scheduledEvent(t, ts, token)
	base := "/events/" + sched.Event.ID
	round0 := sched.Rounds[0]
	require.GreaterOrEqual(t, len(round0.Matches), 2)

	t.Run("validation report", func(t *testing.T) {
		resp := do(t, "GET", ts.APIURL(base+"/validation"), nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var report handlers.ReportResponse
		testutil.AssertJSONResponse(t, resp, &report)
		assert.Equal(t, sched.Matches, report.Matches)
		assert.Len(t, report.Games, 16)
		assert.LessOrEqual(t, report.MaxGames, 8)
	})

	t.Run("only the owner edits", func(t *testing.T) {
		resp := do(t, "POST", ts.APIURL(base+"/schedule"), nil, otherToken)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	approvedID := round0.Matches[0].ID
	t.Run("approve", func(t *testing.T) {
		resp := do(t, "POST", ts.APIURL(base+"/matches/"+approvedID+"/approve"), nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var match handlers.MatchResponse
		testutil.AssertJSONResponse(t, resp, &match)
		assert.Equal(t, "approved", match.Status)
		assert.Len(t, match.Team1, 2)
		assert.NotEmpty(t, match.Team1[0].Name)
	})

	t.Run("approved match cannot be rejected", func(t *testing.T) {
		resp := do(t, "POST", ts.APIURL(base+"/matches/"+approvedID+"/reject"), nil, token)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("reject", func(t *testing.T) {
		rejected := round0.Matches[1]
		resp := do(t, "POST", ts.APIURL(base+"/matches/"+rejected.ID+"/reject"), nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result handlers.RejectResponse
		testutil.AssertJSONResponse(t, resp, &result)
		require.NotNil(t, result.Replacement)
		assert.Equal(t, rejected.Number, result.Replacement.Number)
		assert.NotEqual(t, rejected.ID, result.Replacement.ID)
	})

	t.Run("bad ids", func(t *testing.T) {
		resp := do(t, "POST", ts.APIURL(base+"/matches/not-a-uuid/approve"), nil, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = do(t, "POST", ts.APIURL(base+"/matches/"+uuid.New().String()+"/approve"), nil, token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("swap refusals", func(t *testing.T) {
		p := round0.Matches[1].Team1[0].ID
		resp := do(t, "POST", ts.APIURL(base+"/swap"), map[string]interface{}{"round": 0, "playerA": p, "playerB": p}, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = do(t, "POST", ts.APIURL(base+"/swap"), map[string]interface{}{"round": 0, "playerA": "x", "playerB": p}, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("retype", func(t *testing.T) {
		resp := do(t, "PUT", ts.APIURL(base+"/rounds/2/style"), map[string]string{"style": "variety"}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var after handlers.ScheduleResponse
		testutil.AssertJSONResponse(t, resp, &after)
		assert.Equal(t, "variety", after.Rounds[2].Style)

		resp = do(t, "PUT", ts.APIURL(base+"/rounds/2/style"), map[string]string{"style": "chaotic"}, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = do(t, "PUT", ts.APIURL(base+"/rounds/99/style"), map[string]string{"style": "variety"}, token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("regenerate", func(t *testing.T) {
		resp := do(t, "POST", ts.APIURL(base+"/rounds/1/regenerate"), nil, token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = do(t, "POST", ts.APIURL(base+"/rounds/x/regenerate"), nil, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestEventHandler_ValidationWithoutSchedule(t *testing.T) {
	ts := testutil.NewSQLiteTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := do(t, "POST", ts.APIURL("/events"), createEventRequest(testutil.NewEventBuilder()), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var event handlers.EventResponse
	testutil.AssertJSONResponse(t, resp, &event)

	resp = do(t, "GET", ts.APIURL("/events/"+event.ID+"/validation"), nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, "GET", ts.APIURL("/events/"+event.ID+"/schedule"), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sched handlers.ScheduleResponse
	testutil.AssertJSONResponse(t, resp, &sched)
	assert.Equal(t, 0, sched.Matches)
}

func TestEventHandler_UpdatePlayer(t *testing.T) {
	ts := testutil.NewSQLiteTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := do(t, "POST", ts.APIURL("/events"), createEventRequest(testutil.NewEventBuilder()), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var event handlers.EventResponse
	testutil.AssertJSONResponse(t, resp, &event)
	player := event.Players[0]

	path := fmt.Sprintf("/events/%s/players/%s", event.ShortCode, player.ID)
	resp = do(t, "PUT", ts.APIURL(path), map[string]interface{}{"skill": 6.0}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated handlers.PlayerResponse
	testutil.AssertJSONResponse(t, resp, &updated)
	require.NotNil(t, updated.Skill)
	assert.Equal(t, 6.0, *updated.Skill)
	assert.Greater(t, updated.Rating, player.Rating)

	resp = do(t, "PUT", ts.APIURL(path), map[string]interface{}{"skill": 99.0}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventHandler_ExportImport(t *testing.T) {
	ts := testutil.NewSQLiteTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	sched := scheduledEvent(t, ts, token)

	resp := do(t, "GET", ts.APIURL("/events/"+sched.Event.ShortCode+"/export"), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), sched.Event.ShortCode)
	doc, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	resp = do(t, "POST", ts.APIURL("/events"), createEventRequest(testutil.NewEventBuilder()), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var target handlers.EventResponse
	testutil.AssertJSONResponse(t, resp, &target)

	req, err := http.NewRequest("POST", ts.APIURL("/events/"+target.ID+"/import"), bytes.NewReader(doc))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	importResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer importResp.Body.Close()

	require.Equal(t, http.StatusOK, importResp.StatusCode)
	var imported handlers.ScheduleResponse
	testutil.AssertJSONResponse(t, importResp, &imported)
	assert.Equal(t, sched.Matches, imported.Matches)
	assert.Equal(t, "scheduled", imported.Event.Status)

	req, err = http.NewRequest("POST", ts.APIURL("/events/"+target.ID+"/import"), strings.NewReader("not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	badResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}
