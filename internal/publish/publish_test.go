// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/contentforge/internal/httputil"
	"github.com/pdiddy/contentforge/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

func finishedReport(t *testing.T) *types.Report {
	r := types.NewReport("Q3 Cloud Spend: Review & Outlook", types.ContentReport, "analyze cloud spend", types.StyleAPA)
	r.CreatedAt = time.Date(2025, 9, 30, 8, 0, 0, 0, time.UTC)
	require.NoError(t, r.Transition(types.StatusGenerating))
	require.NoError(t, r.AddSection(types.ContentSection{Title: "Overview", Content: "Spend rose **12%**."}))
	r.ExecutiveSummary = "Spend <rose>."
	r.Document = "# Q3 Cloud Spend\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	require.NoError(t, r.Transition(types.StatusCompleted))
	return r
}

// --- helpers ---

func TestSlugAndFileName(t *testing.T) {
	assert.Equal(t, "q3-cloud-spend-review-outlook", Slug("Q3 Cloud Spend: Review & Outlook"))
	assert.Equal(t, "untitled", Slug("!!!"))
	assert.Equal(t, "q3-cloud-spend-review-outlook-20250930.md", FileName(finishedReport(t)))
}

func TestRenderHTMLSupportsTables(t *testing.T) {
	out, err := RenderHTML("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<table>")
}

func TestAnnouncementEscapes(t *testing.T) {
	r := finishedReport(t)
	msg := Announcement(r, "https://x/doc?a=1&b=2")
	assert.Contains(t, msg, "<h2>Q3 Cloud Spend: Review &amp; Outlook</h2>")
	assert.Contains(t, msg, "<p>Spend &lt;rose&gt;.</p>")
	assert.Contains(t, msg, `href="https://x/doc?a=1&amp;b=2"`)
	assert.Contains(t, msg, "1 sections, 0 citations")
}

// --- filesystem ---

func TestFilesystemPublishReport(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFilesystem(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	r := finishedReport(t)
	require.NoError(t, Report(context.Background(), fs, r, Destination{Folder: "reports/2025", Channel: "team/general"}))

	assert.Equal(t, types.StatusPublished, r.Status)
	require.NotNil(t, r.PublishedAt)
	assert.True(t, strings.HasPrefix(r.SharePointURL, "file://"))
	assert.True(t, strings.HasPrefix(r.TeamsMessageURL, "file://"))

	mdPath := filepath.Join(dir, "reports", "2025", FileName(r))
	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Equal(t, r.Document, string(data))

	html, err := os.ReadFile(strings.TrimSuffix(mdPath, ".md") + ".html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")

	msgs, err := os.ReadDir(filepath.Join(dir, "outbox", "team-general"))
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	last := r.AgentSteps[len(r.AgentSteps)-1]
	assert.Equal(t, types.StepPublishing, last.Kind)
	assert.False(t, last.Failed())
}

func TestFilesystemRejectsEscapes(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir(), nil)
	require.NoError(t, err)

	var ve *types.ValidationError
	_, err = fs.PublishDocument(context.Background(), "x.md", "body", "../outside")
	assert.ErrorAs(t, err, &ve)
	_, err = fs.PublishDocument(context.Background(), "../x.md", "body", "")
	assert.ErrorAs(t, err, &ve)
	_, err = fs.PostMessage(context.Background(), " ", "hi")
	assert.ErrorAs(t, err, &ve)
}

func TestReportRequiresFinishedStatus(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir(), nil)
	require.NoError(t, err)
	r := types.NewReport("Draft", types.ContentReport, "p", types.StyleAPA)
	r.Document = "body"

	var ve *types.ValidationError
	require.ErrorAs(t, Report(context.Background(), fs, r, Destination{}), &ve)
	assert.Equal(t, "status", ve.Field)
}

// --- graph ---

type graphServer struct {
	tokens   int32
	uploads  int32
	messages int32
	upload   func(w http.ResponseWriter, r *http.Request)
	message  func(w http.ResponseWriter, r *http.Request)
}

func withGraph(t *testing.T, gs *graphServer) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gs.tokens, 1)
		assert.Equal(t, "contentforge/test", r.Header.Get("User-Agent"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "s3cret", r.PostForm.Get("client_secret"))
		assert.Equal(t, graphScope, r.PostForm.Get("scope"))
		io.WriteString(w, `{"access_token":"tok-1","expires_in":3600}`)
	})
	mux.HandleFunc("/drives/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gs.uploads, 1)
		gs.upload(w, r)
	})
	mux.HandleFunc("/teams/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gs.messages, 1)
		gs.message(w, r)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	oldAPI, oldAuth := graphAPIURL, graphAuthURL
	graphAPIURL, graphAuthURL = ts.URL, ts.URL
	t.Cleanup(func() { graphAPIURL, graphAuthURL = oldAPI, oldAuth })
}

func newTestGraph(t *testing.T) *Graph {
	g, err := NewGraph(GraphConfig{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		DriveID:      "drive-1",
		UserAgent:    "contentforge/test",
		Retries:      1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return g
}

func TestGraphPublishReport(t *testing.T) {
	gs := &graphServer{
		upload: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.Equal(t, "contentforge/test", r.Header.Get("User-Agent"))
			assert.Equal(t, "/drives/drive-1/root:/Reports/Q3/q3-cloud-spend-review-outlook-20250930.md:/content", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), "# Q3 Cloud Spend")
			io.WriteString(w, `{"id":"item-9","name":"q3.md","webUrl":"https://sp.example/q3.md"}`)
		},
		message: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/teams/team-a/channels/chan-b/messages", r.URL.Path)
			var msg chatMessage
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
			assert.Equal(t, "html", msg.Body.ContentType)
			assert.Contains(t, msg.Body.Content, `href="https://sp.example/q3.md"`)
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"id":"msg-1","webUrl":"https://teams.example/msg-1"}`)
		},
	}
	withGraph(t, gs)
	g := newTestGraph(t)

	r := finishedReport(t)
	require.NoError(t, Report(context.Background(), g, r, Destination{Folder: "Reports/Q3", Channel: "team-a/chan-b"}))
	assert.Equal(t, types.StatusPublished, r.Status)
	assert.Equal(t, "https://sp.example/q3.md", r.SharePointURL)
	assert.Equal(t, "https://teams.example/msg-1", r.TeamsMessageURL)
	assert.Equal(t, int32(1), gs.tokens, "token is cached across calls")
}

func TestGraphClassifiesErrors(t *testing.T) {
	tests := []struct {
		status int
		kind   types.ErrorKind
	}{
		{http.StatusForbidden, types.KindAuth},
		{http.StatusNotFound, types.KindPermanent},
		{http.StatusServiceUnavailable, types.KindTransient},
	}
	for _, tt := range tests {
		gs := &graphServer{upload: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			io.WriteString(w, `{"error":{"code":"x","message":"nope"}}`)
		}}
		withGraph(t, gs)
		_, err := newTestGraph(t).PublishDocument(context.Background(), "a.md", "body", "")

		var ce *types.CollaboratorError
		require.ErrorAs(t, err, &ce, "status %d", tt.status)
		assert.Equal(t, tt.kind, ce.Kind, "status %d", tt.status)
		assert.Equal(t, "publish_document", ce.Op)
		assert.Contains(t, ce.Error(), "nope")
	}
}

func TestGraphTokenFailureIsAuth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid_client","error_description":"bad secret"}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	old := graphAuthURL
	graphAuthURL = ts.URL
	defer func() { graphAuthURL = old }()

	_, err := newTestGraph(t).PublishDocument(context.Background(), "a.md", "body", "")
	var ce *types.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, types.KindAuth, ce.Kind)
	assert.Contains(t, ce.Error(), "bad secret")
}

func TestGraphCancelledContext(t *testing.T) {
	var tokens int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&tokens, 1)
		io.WriteString(w, `{"access_token":"tok-1","expires_in":3600}`)
	}))
	defer ts.Close()
	old := graphAuthURL
	graphAuthURL = ts.URL
	defer func() { graphAuthURL = old }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestGraph(t).PublishDocument(ctx, "a.md", "body", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var ce *types.CollaboratorError
	assert.False(t, errors.As(err, &ce), "cancellation is not a collaborator failure")
	assert.Zero(t, atomic.LoadInt32(&tokens))
}

func TestGraphPostMessageValidatesChannel(t *testing.T) {
	_, err := newTestGraph(t).PostMessage(context.Background(), "no-slash", "<p>x</p>")
	var ve *types.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestReportRecordsFailedStep(t *testing.T) {
	gs := &graphServer{upload: func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}}
	withGraph(t, gs)
	r := finishedReport(t)
	err := Report(context.Background(), newTestGraph(t), r, Destination{})
	require.Error(t, err)
	assert.Equal(t, types.StatusCompleted, r.Status)
	require.Len(t, r.FailedSteps(), 1)
	assert.Equal(t, types.StepPublishing, r.FailedSteps()[0].Kind)
}

func TestNewSelectsPublisher(t *testing.T) {
	cfg := types.DefaultConfig().Publish
	cfg.Dir = t.TempDir()
	p, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Filesystem{}, p)

	cfg.TenantID, cfg.ClientID, cfg.ClientSecret = "t", "c", "s"
	p, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Graph{}, p)
}
