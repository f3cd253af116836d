package http

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"sat-daily-quiz/internal/app"
)

// WSHandler serves the live session timer and leaderboard feeds.
type WSHandler struct {
	sessions    *app.SessionManager
	leaderboard *app.LeaderboardService
	log         *logrus.Entry
	upgrader    websocket.Upgrader
}

func NewWSHandler(sessions *app.SessionManager, leaderboard *app.LeaderboardService, log *logrus.Entry) *WSHandler {
	return &WSHandler{
		sessions:    sessions,
		leaderboard: leaderboard,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

var timeNow = time.Now

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type visibilityPayload struct {
	Visible bool `json:"visible"`
}

type tickPayload struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeSession upgrades to a websocket bound to the caller's daily session.
// The countdown only runs while at least one connected view reports itself visible.
func (h *WSHandler) ServeSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionOwner(r)
	if !ok {
		http.Error(w, "missing or invalid client id", http.StatusBadRequest)
		return
	}
	session, err := h.sessions.Open(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	var visible atomic.Bool
	visible.Store(true)
	detach := session.Attach(app.ForegroundFunc(visible.Load))
	defer detach()

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write failed")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		last := -1
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				msg := outboundMessage[any]{Type: "state", Payload: view}
				switch {
				case view.Submitted:
					msg.Type = "result"
				case last >= 0 && view.RemainingSeconds != last:
					msg = outboundMessage[any]{Type: "tick", Payload: tickPayload{RemainingSeconds: view.RemainingSeconds}}
				}
				last = view.RemainingSeconds
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "visibility":
			var payload visibilityPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(errorMessage("invalid visibility payload"))
				continue
			}
			visible.Store(payload.Visible)
		case "answer":
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(errorMessage("invalid answer payload"))
				continue
			}
			if _, err := session.RecordAnswer(payload.QuestionID, payload.Value); err != nil {
				reply(errorMessage(err.Error()))
			}
		case "flag":
			var payload flagRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(errorMessage("invalid flag payload"))
				continue
			}
			if _, err := session.ToggleFlag(payload.QuestionID); err != nil {
				reply(errorMessage(err.Error()))
			}
		case "submit":
			session.Submit()
		default:
			reply(errorMessage("unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// ServeLeaderboard streams ranked snapshots for a date and optional grade.
func (h *WSHandler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = app.DailySeed(timeNow())
	}
	updates, cancel, err := h.leaderboard.Subscribe(r.Context(), date, q.Get("grade"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	// The feed is server-push only; reading detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: lb}); err != nil {
				h.log.WithError(err).Debug("ws write failed")
				return
			}
		case <-gone:
			return
		}
	}
}
