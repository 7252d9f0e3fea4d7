// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/internal/httputil"
	"github.com/pdiddy/contentforge/pkg/types"
)

// Endpoints are variables so tests can point them at httptest servers.
var (
	graphAPIURL  = "https://graph.microsoft.com/v1.0"
	graphAuthURL = "https://login.microsoftonline.com"
)

const (
	graphScope = "https://graph.microsoft.com/.default"

	// tokenRefreshMargin renews a token this long before it expires.
	tokenRefreshMargin = 5 * time.Minute
)

// GraphConfig holds Microsoft Graph application credentials.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// DriveID is the SharePoint document library receiving uploads.
	DriveID string

	HTTPClient *http.Client

	// UserAgent is sent on every token and API request when set.
	UserAgent string

	// Retries bounds HTTP retries on 429 and 5xx gateway errors. Zero uses
	// the httputil default.
	Retries int
}

// Graph publishes to SharePoint and Teams through Microsoft Graph using the
// client-credentials flow. Tokens are cached until shortly before expiry.
type Graph struct {
	cfg    GraphConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewGraph creates a Graph publisher.
func NewGraph(cfg GraphConfig, logger *zap.Logger) (*Graph, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph credentials missing; set publish.tenant_id, publish.client_id and .secrets/graph-client-secret")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{cfg: cfg, client: client, logger: logger, now: time.Now}, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// accessToken returns a cached token or acquires a new one.
func (g *Graph) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" && g.now().Before(g.expires) {
		return g.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"scope":         {graphScope},
	}
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", graphAuthURL, url.PathEscape(g.cfg.TenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	g.setUserAgent(req)

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.cfg.Retries)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &types.CollaboratorError{Service: "graph", Op: "token", Kind: types.KindTransient, Err: err}
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil && resp.StatusCode == http.StatusOK {
		return "", &types.CollaboratorError{Service: "graph", Op: "token", Kind: types.KindTransient, Err: fmt.Errorf("decoding token response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		kind := types.KindForStatus(resp.StatusCode)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusOK {
			kind = types.KindAuth
		}
		return "", &types.CollaboratorError{
			Service:    "graph",
			Op:         "token",
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("authentication failed: %s", firstNonEmpty(tr.ErrorDescription, tr.Error, resp.Status)),
		}
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	g.token = tr.AccessToken
	g.expires = g.now().Add(expiresIn - tokenRefreshMargin)
	g.logger.Debug("acquired graph access token", zap.Duration("expires_in", expiresIn))
	return g.token, nil
}

func (g *Graph) setUserAgent(req *http.Request) {
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call sends an authenticated request and decodes a JSON response into out.
func (g *Graph) call(ctx context.Context, op, method, path string, body []byte, contentType string, out any) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, graphAPIURL+"/"+strings.TrimPrefix(path, "/"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	g.setUserAgent(req)

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.cfg.Retries)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &types.CollaboratorError{Service: "graph", Op: op, Kind: types.KindTransient, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.CollaboratorError{Service: "graph", Op: op, Kind: types.KindTransient, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		var ge graphError
		_ = json.Unmarshal(data, &ge)
		msg := fmt.Sprintf("graph API HTTP error: %d", resp.StatusCode)
		if ge.Error.Message != "" {
			msg += " - " + ge.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized {
			g.mu.Lock()
			g.token = ""
			g.mu.Unlock()
		}
		return &types.CollaboratorError{
			Service:    "graph",
			Op:         op,
			Kind:       types.KindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", msg),
		}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &types.CollaboratorError{Service: "graph", Op: op, Kind: types.KindPermanent, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}

type driveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	WebURL string `json:"webUrl"`
}

// PublishDocument uploads content to the configured drive at
// destination/name.
func (g *Graph) PublishDocument(ctx context.Context, name, content, destination string) (DocumentRef, error) {
	if g.cfg.DriveID == "" {
		return DocumentRef{}, &types.ValidationError{Field: "publish.drive_id", Constraint: "must be set for SharePoint uploads"}
	}
	itemPath := escapePath(strings.Trim(destination+"/"+name, "/"))
	path := fmt.Sprintf("drives/%s/root:/%s:/content", url.PathEscape(g.cfg.DriveID), itemPath)

	var item driveItem
	if err := g.call(ctx, "publish_document", http.MethodPut, path, []byte(content), "text/markdown; charset=utf-8", &item); err != nil {
		return DocumentRef{}, err
	}
	g.logger.Info("published to sharepoint", zap.String("name", name), zap.String("url", item.WebURL))
	return DocumentRef{ID: item.ID, Name: firstNonEmpty(item.Name, name), WebURL: item.WebURL}, nil
}

type chatMessage struct {
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

// PostMessage posts HTML content to a Teams channel. destination is
// "<team-id>/<channel-id>".
func (g *Graph) PostMessage(ctx context.Context, destination, content string) (MessageRef, error) {
	team, channel, ok := strings.Cut(destination, "/")
	if !ok || team == "" || channel == "" {
		return MessageRef{}, &types.ValidationError{Field: "channel", Constraint: `must be "<team-id>/<channel-id>"`}
	}

	var msg chatMessage
	msg.Body.ContentType = "html"
	msg.Body.Content = content
	body, err := json.Marshal(msg)
	if err != nil {
		return MessageRef{}, fmt.Errorf("encoding message: %w", err)
	}

	var out struct {
		ID     string `json:"id"`
		WebURL string `json:"webUrl"`
	}
	path := fmt.Sprintf("teams/%s/channels/%s/messages", url.PathEscape(team), url.PathEscape(channel))
	if err := g.call(ctx, "post_message", http.MethodPost, path, body, "application/json", &out); err != nil {
		return MessageRef{}, err
	}
	g.logger.Info("posted to teams", zap.String("message_id", out.ID))
	return MessageRef{ID: out.ID, WebURL: out.WebURL}, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// New builds the configured publisher: Graph when credentials are present,
// otherwise the filesystem.
func New(cfg types.PublishConfig, logger *zap.Logger) (Publisher, error) {
	if cfg.Graph() {
		return NewGraph(GraphConfig{
			TenantID:     cfg.TenantID,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			DriveID:      cfg.DriveID,
			HTTPClient:   &http.Client{Timeout: cfg.Timeout},
			UserAgent:    cfg.UserAgent,
		}, logger)
	}
	return NewFilesystem(cfg.Dir, logger)
}
