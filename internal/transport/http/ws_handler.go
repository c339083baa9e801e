package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"quizhost-service/internal/app"
	"quizhost-service/internal/domain"
)

// NoticeSource is the subscription side of the state-notice broker.
type NoticeSource interface {
	Subscribe(quizID string) chan app.StateNotice
	Unsubscribe(quizID string, ch chan app.StateNotice)
}

type WSHandler struct {
	service  *app.Service
	notices  NoticeSource
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service, notices NoticeSource) *WSHandler {
	return &WSHandler{
		service: service,
		notices: notices,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	PriorText string `json:"priorText,omitempty"`
}

type answerPayload struct {
	Text string `json:"text"`
}

type answerAccepted struct {
	TourIdx int     `json:"tourIdx"`
	QwIdx   int     `json:"qwIdx"`
	Points  float64 `json:"points"`
}

type teamJoined struct {
	TeamID    string  `json:"teamId"`
	Name      string  `json:"name"`
	SessionID string  `json:"sessionId"`
	Points    float64 `json:"points"`
}

// ServeTeamWS connects a team client: it claims the single active session,
// streams state notices, and accepts answer submissions. A stale session is
// terminal; the client must reconnect to reactivate.
func (h *WSHandler) ServeTeamWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	teamID := r.URL.Query().Get("teamId")
	entryToken := r.URL.Query().Get("token")
	if quizID == "" || teamID == "" || entryToken == "" {
		http.Error(w, "missing quizId, teamId, or token", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID, team, err := h.service.ClaimSession(r.Context(), quizID, teamID, entryToken)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send, stopWriter := h.startWriter(conn)
	defer stopWriter()

	updates := h.notices.Subscribe(quizID)
	defer h.notices.Unsubscribe(quizID, updates)
	stopForwarder := h.forwardNotices(updates, send)
	defer stopForwarder()

	send <- outboundMessage[any]{Type: "joined", Payload: teamJoined{
		TeamID:    team.Descriptor.TeamID,
		Name:      team.Descriptor.Name,
		SessionID: sessionID,
		Points:    team.Points(),
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			updated, key, err := h.service.SubmitAnswer(r.Context(), quizID, teamID, sessionID, payload.Text)
			if errors.Is(err, domain.ErrSessionNotActive) {
				send <- outboundMessage[any]{Type: "sessionNotActive", Payload: errorPayload{Message: err.Error()}}
				return
			}
			if err != nil {
				payload := errorPayload{Message: err.Error()}
				var conflict domain.AlreadyAnsweredError
				if errors.As(err, &conflict) {
					payload.PriorText = conflict.PriorText
				}
				send <- outboundMessage[any]{Type: "error", Payload: payload}
				continue
			}
			send <- outboundMessage[any]{Type: "answerAccepted", Payload: answerAccepted{
				TourIdx: key.TourIdx,
				QwIdx:   key.QwIdx,
				Points:  updated.Points(),
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

type producerCommand struct {
	Status      domain.QuizStatus `json:"status,omitempty"`
	QuestionIdx int               `json:"questionIdx,omitempty"`
}

// ServeProducerWS connects the producer console. Commands drive the tour
// state machine; each accepted command is answered with a quiz snapshot and
// fans out to teams through the publisher.
func (h *WSHandler) ServeProducerWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	adminToken := r.URL.Query().Get("token")
	if quizID == "" || adminToken == "" {
		http.Error(w, "missing quizId or token", http.StatusBadRequest)
		return
	}

	quiz, err := h.service.GetQuiz(r.Context(), quizID)
	if err != nil || quiz.Descriptor.AdminToken != adminToken {
		http.Error(w, "unknown quiz or bad token", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send, stopWriter := h.startWriter(conn)
	defer stopWriter()

	updates := h.notices.Subscribe(quizID)
	defer h.notices.Unsubscribe(quizID, updates)
	stopForwarder := h.forwardNotices(updates, send)
	defer stopForwarder()

	send <- outboundMessage[any]{Type: "quiz", Payload: quiz}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		var cmd producerCommand
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &cmd); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid command payload"}}
				continue
			}
		}

		var updated domain.Quiz
		switch inbound.Type {
		case "setStatus":
			updated, err = h.service.SetQuizStatus(r.Context(), quizID, cmd.Status)
		case "startCountdown":
			updated, err = h.service.StartCountdown(r.Context(), quizID)
		case "pauseCountdown":
			updated, err = h.service.PauseCountdown(r.Context(), quizID)
		case "settle":
			updated, err = h.service.SettleTour(r.Context(), quizID)
		case "next":
			updated, err = h.service.NextTour(r.Context(), quizID)
		case "setQuestionIdx":
			updated, err = h.service.SetQuestionIdx(r.Context(), quizID, cmd.QuestionIdx)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
			continue
		}
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			continue
		}
		send <- outboundMessage[any]{Type: "quiz", Payload: updated}
	}
}

// startWriter serializes all writes to the connection through one goroutine.
func (h *WSHandler) startWriter(conn *websocket.Conn) (chan outboundMessage[any], func()) {
	send := make(chan outboundMessage[any], 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()
	return send, func() {
		close(send)
		<-done
	}
}

// forwardNotices pumps broker notices into the send channel.
func (h *WSHandler) forwardNotices(updates chan app.StateNotice, send chan outboundMessage[any]) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case notice, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: notice}:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}
