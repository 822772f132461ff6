package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/glunkad/caresimplfyservice/internal/domain"
	"github.com/glunkad/caresimplfyservice/internal/llm"
)

// streamRequest is one chat turn sent by the client.
type streamRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// streamFrame is a server-to-client message on the stream socket.
// Types: "delta" (Content), "done" (Answer, Seq), "error" (Kind, Message).
type streamFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Answer  string `json:"answer,omitempty"`
	Seq     int    `json:"seq,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleChatStream upgrades to WebSocket and answers chat turns with
// streamed deltas. The connection stays open for follow-up questions;
// each request frame is one turn.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(64 * 1024)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("chat stream connected")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("remote", r.RemoteAddr).Msg("chat stream closed")
			} else {
				s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("chat stream read error")
			}
			return
		}

		var req streamRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.writeStreamError(conn, domain.NewValidation("malformed request frame"))
			continue
		}

		s.streamTurn(r.Context(), conn, req)
	}
}

// streamTurn runs one chat turn, forwarding deltas as they arrive.
func (s *Server) streamTurn(ctx context.Context, conn *websocket.Conn, req streamRequest) {
	ctx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	result, err := s.runner.ChatStream(ctx, req.SessionID, req.Question, func(evt llm.StreamEvent) {
		if evt.Type == "delta" {
			conn.WriteJSON(streamFrame{Type: "delta", Content: evt.Content})
		}
	})
	if err != nil {
		s.writeStreamError(conn, err)
		return
	}

	conn.WriteJSON(streamFrame{
		Type:   "done",
		Answer: result.Answer,
		Seq:    result.Seq,
	})
}

func (s *Server) writeStreamError(conn *websocket.Conn, err error) {
	kind := domain.KindOf(err)
	msg := err.Error()
	var derr *domain.Error
	if errors.As(err, &derr) {
		msg = derr.Message
	}
	conn.WriteJSON(streamFrame{Type: "error", Kind: string(kind), Message: msg})
}
