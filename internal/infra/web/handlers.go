package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cyber-research-service/internal/domain"
	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/repository"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "research session not found")
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "research queue is full, retry later")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.auth.Authenticate(req.Username, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not mint session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// sessionView is the status payload; the result body is intentionally not
// embedded here.
type sessionView struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStep  string `json:"current_step"`
	ErrorMessage string `json:"error_message,omitempty"`
	Topic        string `json:"topic"`
	OutputFormat string `json:"output_format"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toSessionView(s *model.ResearchSession) sessionView {
	return sessionView{
		SessionID:    s.ID,
		Status:       string(s.Status),
		Progress:     s.Progress,
		CurrentStep:  s.CurrentStep,
		ErrorMessage: s.ErrorMessage,
		Topic:        s.Request.Topic,
		OutputFormat: string(s.Request.OutputFormat),
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req model.ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := s.uc.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSessionView(sess))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.uc.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(sess))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.uc.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.uc.Workflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	f := repository.SessionFilter{
		Status: model.Status(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		f.Offset, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}

	sessions, total, err := s.uc.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, toSessionView(sess))
	}
	writeJSON(w, http.StatusOK, struct {
		Sessions []sessionView `json:"sessions"`
		Total    int           `json:"total"`
	}{Sessions: views, Total: total})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
