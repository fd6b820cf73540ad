package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cyber-research-service/internal/domain"
	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/repository"
	"cyber-research-service/internal/infra/fanout"
)

// fakeResearchUC is a hand-rolled stand-in for the use case layer.
type fakeResearchUC struct {
	sessions  map[string]*model.ResearchSession
	submitErr error
}

func newFakeUC() *fakeResearchUC {
	return &fakeResearchUC{sessions: map[string]*model.ResearchSession{}}
}

func (f *fakeResearchUC) Submit(_ context.Context, req model.ResearchRequest) (*model.ResearchSession, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if req.Topic == "" {
		return nil, fmt.Errorf("%w: topic missing", domain.ErrInvalidArgument)
	}
	sess := model.NewResearchSession(req)
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeResearchUC) Status(_ context.Context, id string) (*model.ResearchSession, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (f *fakeResearchUC) Result(_ context.Context, id string) (*model.ResearchResult, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if sess.Status != model.StatusCompleted || sess.Result == nil {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrNotReady, sess.Status)
	}
	return sess.Result, nil
}

func (f *fakeResearchUC) Workflow(_ context.Context, id string) (*model.WorkflowMetadata, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if sess.Workflow == nil {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrNotReady, sess.Status)
	}
	return sess.Workflow, nil
}

func (f *fakeResearchUC) List(context.Context, repository.SessionFilter) ([]*model.ResearchSession, int, error) {
	out := make([]*model.ResearchSession, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (f *fakeResearchUC) Delete(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func newTestServer(uc *fakeResearchUC) (*Server, http.Handler) {
	log := zerolog.Nop()
	auth := NewAuthManager("test-secret", "admin", "hunter2", false, time.Hour)
	srv := NewServer(uc, fanout.NewHub(), auth, nil, 10, &log)
	return srv, srv.Router()
}

func submitBody() *bytes.Buffer {
	b, _ := json.Marshal(map[string]any{
		"topic":                      "Ransomware Defense",
		"content_directions":         "practical focus",
		"output_format":              "short_form",
		"target_audience":            "executives",
		"technical_depth":            "beginner",
		"include_historical_context": true,
	})
	return bytes.NewBuffer(b)
}

func adminToken(t *testing.T, srv *Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	token, err := srv.auth.Mint(rec)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestSubmitEndpoint(t *testing.T) {
	_, router := newTestServer(newFakeUC())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/research/", submitBody())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var view sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.SessionID == "" || view.Status != "pending" {
		t.Errorf("unexpected view: %+v", view)
	}
}

func TestSubmitEndpointErrors(t *testing.T) {
	uc := newFakeUC()
	_, router := newTestServer(uc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/research/", bytes.NewBufferString("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/research/", bytes.NewBufferString(`{"topic":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid request status = %d, want 400", rec.Code)
	}

	uc.submitErr = domain.ErrQueueFull
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/research/", submitBody()))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("queue full status = %d, want 503", rec.Code)
	}
}

func TestStatusAndResultEndpoints(t *testing.T) {
	uc := newFakeUC()
	_, router := newTestServer(uc)

	sess := model.NewResearchSession(model.ResearchRequest{Topic: "DNS Security", OutputFormat: model.FormatShortForm})
	uc.sessions[sess.ID] = sess

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/research/"+sess.ID+"/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/research/"+sess.ID+"/result", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("result before completion = %d, want 409", rec.Code)
	}

	sess.Status = model.StatusCompleted
	sess.Result = &model.ResearchResult{SessionID: sess.ID, Title: "DNS Security Essentials", Content: "body"}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/research/"+sess.ID+"/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("result after completion = %d, want 200", rec.Code)
	}
	var res model.ResearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Title != "DNS Security Essentials" {
		t.Errorf("result title = %q", res.Title)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/research/nope/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	uc := newFakeUC()
	srv, router := newTestServer(uc)

	sess := model.NewResearchSession(model.ResearchRequest{Topic: "SOC Automation"})
	uc.sessions[sess.ID] = sess

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/research/"+sess.ID, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated delete = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/research/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d, want 401", rec.Code)
	}

	token := adminToken(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/research/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated list = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/research/"+sess.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated delete = %d, want 200", rec.Code)
	}
	if _, ok := uc.sessions[sess.ID]; ok {
		t.Error("delete did not remove the session")
	}
}

func TestLoginEndpoint(t *testing.T) {
	_, router := newTestServer(newFakeUC())

	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "wrong"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBuffer(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad credentials = %d, want 401", rec.Code)
	}

	body, _ = json.Marshal(loginRequest{Username: "admin", Password: "hunter2"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBuffer(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp["token"] == "" {
		t.Error("login must return a token")
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestServer(newFakeUC())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d, want 200", rec.Code)
	}
}
