package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	contractx "github.com/sivanlv/pharmassist/agent/contract"
	sessionx "github.com/sivanlv/pharmassist/agent/session"
)

type inboundMessage struct {
	Text string `json:"text"`
}

// handleWS runs the connection's chat loop: one inbound message per turn,
// events streamed back until final or error. A turn-fatal error keeps the
// connection usable for the next turn; only transport loss ends the session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	sess := sessionx.New(s.window)

	for {
		// Read the raw frame first: a malformed payload on a healthy
		// connection is a turn error, not transport loss.
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var in inboundMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			if writeErr := conn.WriteJSON(contractx.ErrorEvent("Invalid message; expected a JSON object with a text field.")); writeErr != nil {
				return
			}
			continue
		}

		finalText := ""
		emit := func(ev contractx.Event) error {
			if ev.Type == contractx.EventFinal {
				finalText = ev.Text
			}
			return conn.WriteJSON(ev)
		}

		if err := s.runner.RunTurn(ctx, sess.Window(), in.Text, emit); err != nil {
			if writeErr := conn.WriteJSON(contractx.ErrorEvent(turnErrorMessage(err))); writeErr != nil {
				return
			}
			continue
		}

		sess.Append(strings.TrimSpace(in.Text), finalText)
	}
}

func turnErrorMessage(err error) string {
	switch {
	case errors.Is(err, contractx.ErrEmptyMessage):
		return "Empty message."
	case errors.Is(err, contractx.ErrRoundLimit):
		return "The assistant could not complete this request; please try again."
	default:
		log.Error().Err(err).Msg("turn failed")
		return "Server error: " + err.Error()
	}
}
