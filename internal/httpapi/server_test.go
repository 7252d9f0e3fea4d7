// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/contentforge/internal/publish"
	"github.com/pdiddy/contentforge/internal/workflow"
	"github.com/pdiddy/contentforge/pkg/types"
)

type stubService struct {
	result     workflow.Result
	publishErr error
	generated  int
	gotReq     workflow.Request
	gotDest    publish.Destination
	deadline   bool
}

func (s *stubService) Generate(ctx context.Context, req workflow.Request) workflow.Result {
	s.generated++
	s.gotReq = req
	_, s.deadline = ctx.Deadline()
	return s.result
}

func (s *stubService) Publish(_ context.Context, r *types.Report, dest publish.Destination) error {
	s.gotDest = dest
	if s.publishErr != nil {
		return s.publishErr
	}
	r.SharePointURL = "https://sp.example/doc"
	r.TeamsMessageURL = "https://teams.example/msg"
	return nil
}

func newTestServer(t *testing.T, svc *stubService) *Server {
	return New(svc, Config{
		Version:        "v1.2.3",
		RequestTimeout: time.Minute,
		Publish:        publish.Destination{Folder: "Reports", Channel: "team/general"},
		Gatherer:       prometheus.NewRegistry(),
	}, zaptest.NewLogger(t))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, &stubService{}), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"v1.2.3"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "contentforge_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := New(&stubService{}, Config{Gatherer: reg}, nil)
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contentforge_test_total 1")
}

func TestGenerateSuccess(t *testing.T) {
	r := types.NewReport("Cloud Cost Review", types.ContentReport, "Review our cloud spend", types.StyleAPA)
	svc := &stubService{result: workflow.Result{Success: true, Report: r, Message: "Successfully generated 1 sections with 0 citations"}}
	s := newTestServer(t, svc)

	rec := do(t, s, http.MethodPost, "/api/v1/content/generate",
		`{"prompt":"Review our cloud spend","content_type":"article","citation_format":"mla","max_words":800,"include_citations":false,"tags":["finance"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res workflow.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	require.NotNil(t, res.Report)
	assert.Equal(t, r.ID, res.Report.ID)

	assert.Equal(t, types.ContentArticle, svc.gotReq.ContentType)
	assert.Equal(t, types.StyleMLA, svc.gotReq.CitationStyle)
	assert.Equal(t, 800, svc.gotReq.MaxWords)
	require.NotNil(t, svc.gotReq.IncludeCitations)
	assert.False(t, *svc.gotReq.IncludeCitations)
	assert.True(t, svc.deadline, "request timeout applied")
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"malformed", `{"prompt":`, "malformed request body"},
		{"short prompt", `{"prompt":"hi"}`, "prompt"},
		{"max words", `{"prompt":"Review our cloud spend","max_words":50}`, "max_words"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			rec := do(t, newTestServer(t, svc), http.MethodPost, "/api/v1/content/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var res workflow.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.want)
			assert.Zero(t, svc.generated)
		})
	}
}

func TestGenerateFailure(t *testing.T) {
	svc := &stubService{result: workflow.Result{Error: "planning failed: boom", Message: "Content generation failed. Please try again."}}
	rec := do(t, newTestServer(t, svc), http.MethodPost, "/api/v1/content/generate", `{"prompt":"Review our cloud spend"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Content generation failed")
}

func TestPublishUsesDefaults(t *testing.T) {
	svc := &stubService{}
	body := `{"report":{"id":"r1","title":"Cloud Cost Review","status":"completed","document":"# Cloud"}}`
	rec := do(t, newTestServer(t, svc), http.MethodPost, "/api/v1/publish", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res PublishResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "https://sp.example/doc", res.SharePointURL)
	assert.Equal(t, "https://teams.example/msg", res.TeamsMessageURL)
	assert.Equal(t, publish.Destination{Folder: "Reports", Channel: "team/general"}, svc.gotDest)
}

func TestPublishErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &types.ValidationError{Field: "status", Constraint: "cannot publish a draft report"}, http.StatusBadRequest},
		{"no publisher", workflow.ErrNoPublisher, http.StatusServiceUnavailable},
		{"collaborator", &types.CollaboratorError{Service: "graph", Op: "publish_document", Kind: types.KindAuth, Err: errors.New("denied")}, http.StatusBadGateway},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{publishErr: tt.err}
			body := `{"report":{"id":"r1","title":"T"},"folder":"X","channel":"a/b"}`
			rec := do(t, newTestServer(t, svc), http.MethodPost, "/api/v1/publish", body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, publish.Destination{Folder: "X", Channel: "a/b"}, svc.gotDest)
		})
	}

	rec := do(t, newTestServer(t, &stubService{}), http.MethodPost, "/api/v1/publish", `{"folder":"X"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
