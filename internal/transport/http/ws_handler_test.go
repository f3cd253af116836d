package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"sat-daily-quiz/internal/app"
	"sat-daily-quiz/internal/domain"
)

type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsEnvelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func TestSessionSocketFlow(t *testing.T) {
	env := newTestEnv(t, testPool())
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()

	conn := dial(t, srv, "/ws/daily?client=tab-1")

	msg := readMessage(t, conn)
	require.Equal(t, "state", msg.Type)
	var view app.SessionView
	require.NoError(t, json.Unmarshal(msg.Payload, &view))
	require.Equal(t, app.SessionLimitSeconds, view.RemainingSeconds)
	first := view.Questions[0].ID

	send(t, conn, "answer", answerRequest{QuestionID: first, Value: "a"})
	msg = readMessage(t, conn)
	require.Equal(t, "state", msg.Type)
	require.NoError(t, json.Unmarshal(msg.Payload, &view))
	require.Equal(t, "a", view.Answers[first])

	env.ticks <- time.Now()
	msg = readMessage(t, conn)
	require.Equal(t, "tick", msg.Type)
	var tick tickPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &tick))
	require.Equal(t, app.SessionLimitSeconds-1, tick.RemainingSeconds)

	// hidden views do not consume time; the error reply orders the read loop
	send(t, conn, "visibility", visibilityPayload{Visible: false})
	send(t, conn, "bogus", nil)
	msg = readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	env.ticks <- time.Now()

	send(t, conn, "answer", answerRequest{QuestionID: "missing", Value: "A"})
	msg = readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	require.Contains(t, string(msg.Payload), domain.ErrQuestionNotFound.Error())

	send(t, conn, "submit", nil)
	msg = readMessage(t, conn)
	require.Equal(t, "result", msg.Type)
	require.NoError(t, json.Unmarshal(msg.Payload, &view))
	require.True(t, view.Submitted)
	require.Equal(t, 1, view.Result.Score, "answers match case-insensitively")
	require.Equal(t, 1, view.Result.ElapsedSeconds)
}

func TestSessionSocketRejectsMissingClient(t *testing.T) {
	env := newTestEnv(t, testPool())
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/daily"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaderboardSocketPushesSnapshots(t *testing.T) {
	env := newTestEnv(t, testPool())
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()

	// no date means today
	conn := dial(t, srv, "/ws/leaderboard")
	msg := readMessage(t, conn)
	require.Equal(t, "leaderboard", msg.Type)
	var lb domain.Leaderboard
	require.NoError(t, json.Unmarshal(msg.Payload, &lb))
	require.Equal(t, "2024-03-15", lb.Date)
	require.Zero(t, lb.Total)

	raw, err := json.Marshal(validSubmission("Dana", 8))
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/leaderboard", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg = readMessage(t, conn)
	require.Equal(t, "leaderboard", msg.Type)
	require.NoError(t, json.Unmarshal(msg.Payload, &lb))
	require.Equal(t, 1, lb.Total)
	require.Equal(t, "Dana", lb.Entries[0].DisplayName)
}

func TestLeaderboardSocketInvalidDate(t *testing.T) {
	env := newTestEnv(t, testPool())
	srv := httptest.NewServer(env.api.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leaderboard?date=yesterday"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
