// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

// scripted answers each request with the next status in codes, repeating
// the last one once the script runs out. It records every request body.
type scripted struct {
	mu     sync.Mutex
	codes  []int
	bodies []string
}

func (s *scripted) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	n := len(s.bodies)
	s.bodies = append(s.bodies, string(data))
	s.mu.Unlock()
	if n >= len(s.codes) {
		n = len(s.codes) - 1
	}
	w.WriteHeader(s.codes[n])
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		codes      []int
		maxRetries int
		wantStatus int
		wantCalls  int
	}{
		{"first attempt succeeds", []int{200}, 5, 200, 1},
		{"rate limited then ok", []int{429, 429, 200}, 5, 200, 3},
		{"graph throttling exhausts retries", []int{429}, 3, 429, 4},
		{"zero means default retries", []int{503}, 0, 503, 4},
		{"no retries makes one attempt", []int{503}, NoRetries, 503, 1},
		{"gateway timeout then ok", []int{504, 200}, 2, 200, 2},
		{"internal error is not retried", []int{500}, 5, 500, 1},
		{"unauthorized is not retried", []int{401}, 5, 401, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &scripted{codes: tt.codes}
			ts := httptest.NewServer(srv)
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)
			resp, err := DoWithRetry(context.Background(), ts.Client(), req, tt.maxRetries)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, srv.calls())
		})
	}
}

func TestDoWithRetryReplaysBody(t *testing.T) {
	srv := &scripted{codes: []int{502, 200}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	payload := `{"model":"claude","max_tokens":10}`
	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(payload))
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), nil, req, 2)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{payload, payload}, srv.bodies)
}

func TestDoWithRetryStopsOnCancel(t *testing.T) {
	ts := httptest.NewServer(&scripted{codes: []int{503}})
	defer ts.Close()

	old := RetryBaseDelay
	RetryBaseDelay = time.Second
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, ts.Client(), req, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
		ok     bool
	}{
		{"", 0, false},
		{"3", 3 * time.Second, true},
		{"0", 0, true},
		{"9999", maxRetryAfter, true},
		{"-1", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
	}
	for _, tt := range tests {
		resp := &http.Response{Header: http.Header{}}
		if tt.header != "" {
			resp.Header.Set("Retry-After", tt.header)
		}
		d, ok := retryAfter(resp)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, d, tt.header)
	}
}
