package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/glunkad/caresimplfyservice/internal/agent"
	"github.com/glunkad/caresimplfyservice/internal/domain"
)

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/upload", s.handleUpload)
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("POST /api/v1/end_session", s.handleEndSession)
	mux.HandleFunc("GET /api/v1/chat/stream", s.handleChatStream)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// errorShape is the JSON error body: {"error": {"kind": ..., "message": ...}}.
type errorShape struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": agent.WelcomeMessage})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// handleUpload accepts a multipart PDF upload, simplifies it, and opens a
// session seeded with the result.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, domain.NewValidation("expected a multipart upload"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, domain.NewValidation("missing file field"))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		s.writeError(w, domain.NewValidation("only PDF files are allowed"))
		return
	}

	pdf, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, domain.NewDocument("reading upload", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	result, err := s.runner.Upload(ctx, pdf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Seq       int    `json:"seq"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeChatRequest(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	result, err := s.runner.Chat(ctx, req.SessionID, req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: result.SessionID,
		Answer:    result.Answer,
		Seq:       result.Seq,
	})
}

// decodeChatRequest reads session/question from the JSON body, falling
// back to query parameters for clients that send them that way.
func decodeChatRequest(r *http.Request, req *chatRequest) error {
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
			return domain.NewValidation("malformed request body")
		}
	}
	if req.SessionID == "" {
		req.SessionID = r.URL.Query().Get("session_id")
	}
	if req.Question == "" {
		req.Question = r.URL.Query().Get("question")
	}
	return nil
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, domain.NewValidation("malformed request body"))
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = r.URL.Query().Get("session_id")
	}

	msg, err := s.runner.End(r.Context(), req.SessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// writeError maps domain error kinds onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case domain.KindValidation, domain.KindDocument:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindGateway:
		status = http.StatusBadGateway
	case domain.KindExhausted:
		status = http.StatusServiceUnavailable
	}

	var derr *domain.Error
	msg := err.Error()
	if errors.As(err, &derr) {
		msg = derr.Message
	}

	if status >= 500 {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	} else {
		s.log.Debug().Err(err).Str("kind", string(kind)).Msg("request rejected")
	}

	writeJSON(w, status, map[string]errorShape{
		"error": {Kind: string(kind), Message: msg},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
