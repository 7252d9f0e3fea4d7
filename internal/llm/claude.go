// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/contentforge/internal/httputil"
	"github.com/pdiddy/contentforge/pkg/types"
)

// claudeAPIURL is the default Claude API endpoint. Package-level var for
// test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// claudeDefaultMaxTokens applies when a request leaves MaxTokens unset;
// the Messages API requires it.
const claudeDefaultMaxTokens = 4096

// Claude calls the Claude Messages API.
type Claude struct {
	APIKey string
	Model  string
	Client *http.Client

	// BaseURL replaces the Messages API endpoint when set (proxies, gateways).
	BaseURL string

	// UserAgent is sent as the User-Agent header when set.
	UserAgent string

	// HTTPRetries is passed to httputil.DoWithRetry for 429 and gateway
	// responses. Zero makes one attempt per call and leaves retries to
	// Retrying.
	HTTPRetries int
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
	Usage   claudeUsage     `json:"usage"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Name identifies the backend in logs and errors.
func (c *Claude) Name() string { return "claude" }

// Generate implements Generator. System messages are joined into the
// top-level system field.
func (c *Claude) Generate(ctx context.Context, req Request) (Response, error) {
	body := claudeRequest{Model: c.Model, MaxTokens: req.MaxTokens}
	if body.MaxTokens <= 0 {
		body.MaxTokens = claudeDefaultMaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Temperature = &t
	}
	var system []string
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, claudeMessage{Role: string(m.Role), Content: m.Content})
	}
	body.System = strings.Join(system, "\n\n")

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := claudeAPIURL
	if c.BaseURL != "" {
		endpoint = c.BaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	retries := c.HTTPRetries
	if retries == 0 {
		retries = httputil.NoRetries
	}
	resp, err := httputil.DoWithRetry(ctx, c.Client, httpReq, retries)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Response{}, err
		}
		return Response{}, c.fail(types.KindTransient, 0, fmt.Errorf("calling Claude API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, c.fail(types.KindForStatus(resp.StatusCode), resp.StatusCode,
			fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return Response{}, c.fail(types.KindTransient, 0, fmt.Errorf("decoding Claude response: %w", err))
	}

	var text strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, c.fail(types.KindTransient, 0, errors.New("no text content in Claude API response"))
	}
	return Response{
		Text:       text.String(),
		TokensUsed: cResp.Usage.InputTokens + cResp.Usage.OutputTokens,
	}, nil
}

func (c *Claude) fail(kind types.ErrorKind, status int, err error) error {
	return &types.CollaboratorError{Service: c.Name(), Op: "generate", Kind: kind, StatusCode: status, Err: err}
}
