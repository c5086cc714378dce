// Package cli implements registryctl, the command-line client of the
// registry HTTP API.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/talentboard/internal/adapters/http/api"
	"github.com/okian/talentboard/internal/adapters/http/auth"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/internal/domain/types"
)

// ErrStatus marks a response outside 2xx.
var ErrStatus = errors.New("unexpected status")

// StatusError is a non-2xx answer decoded from the API error body.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers match ErrStatus.
func (e *StatusError) Unwrap() error { return ErrStatus }

// Client calls the registry API. Mutations are signed with tokens issued
// for the acting identity from the shared secret.
type Client struct {
	baseURL string
	http    *http.Client
	secret  []byte
	ttl     time.Duration
}

// NewClient returns a Client for baseURL.
func NewClient(baseURL string, secret []byte, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		secret:  secret,
		ttl:     5 * time.Minute,
	}
}

// Token issues a bearer token for caller.
func (c *Client) Token(caller model.Identity) (string, error) {
	return auth.IssueToken(c.secret, caller, c.ttl, time.Now())
}

// Call identifies one request.
type Call struct {
	As             model.Identity // zero for anonymous reads
	IdempotencyKey string
}

// Health returns nil when /healthz answers 200.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", Call{}, nil, nil)
}

// Stats fetches /stats.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/stats", Call{}, nil, &out)
	return out, err
}

// RegisterTalent registers call.As.
func (c *Client) RegisterTalent(ctx context.Context, call Call, p api.ProfileRequest) (types.TalentView, error) {
	var out types.TalentView
	err := c.do(ctx, http.MethodPost, "/talents", call, p, &out)
	return out, err
}

// UpdateTalent replaces call.As's profile.
func (c *Client) UpdateTalent(ctx context.Context, call Call, p api.ProfileRequest) (types.TalentView, error) {
	var out types.TalentView
	err := c.do(ctx, http.MethodPut, "/talents/me", call, p, &out)
	return out, err
}

// VerifyTalent verifies target as call.As.
func (c *Client) VerifyTalent(ctx context.Context, call Call, target model.Identity) (types.TalentView, error) {
	var out types.TalentView
	err := c.do(ctx, http.MethodPost, "/talents/"+target.String()+"/verify", call, nil, &out)
	return out, err
}

// Talent reads one talent.
func (c *Client) Talent(ctx context.Context, id model.Identity) (types.TalentView, error) {
	var out types.TalentView
	err := c.do(ctx, http.MethodGet, "/talents/"+id.String(), Call{}, nil, &out)
	return out, err
}

// SearchTalents queries the directory with raw query parameters.
func (c *Client) SearchTalents(ctx context.Context, q url.Values) (types.Page[types.TalentView], error) {
	var out types.Page[types.TalentView]
	err := c.do(ctx, http.MethodGet, withQuery("/talents", q), Call{}, nil, &out)
	return out, err
}

// CreateProject creates a project owned by call.As.
func (c *Client) CreateProject(ctx context.Context, call Call, req api.CreateProjectRequest) (types.ProjectView, error) {
	var out types.ProjectView
	err := c.do(ctx, http.MethodPost, "/projects", call, req, &out)
	return out, err
}

// AssignProject assigns talent to project id.
func (c *Client) AssignProject(ctx context.Context, call Call, id uint64, talent model.Identity) (types.ProjectView, error) {
	var out types.ProjectView
	err := c.do(ctx, http.MethodPost, projectPath(id)+"/assign", call, api.AssignRequest{Talent: talent.String()}, &out)
	return out, err
}

// CloseProject closes project id.
func (c *Client) CloseProject(ctx context.Context, call Call, id uint64) (types.ProjectView, error) {
	var out types.ProjectView
	err := c.do(ctx, http.MethodPost, projectPath(id)+"/close", call, nil, &out)
	return out, err
}

// Project reads one project.
func (c *Client) Project(ctx context.Context, id uint64) (types.ProjectView, error) {
	var out types.ProjectView
	err := c.do(ctx, http.MethodGet, projectPath(id), Call{}, nil, &out)
	return out, err
}

// Projects lists projects with raw query parameters.
func (c *Client) Projects(ctx context.Context, q url.Values) (types.Page[types.ProjectView], error) {
	var out types.Page[types.ProjectView]
	err := c.do(ctx, http.MethodGet, withQuery("/projects", q), Call{}, nil, &out)
	return out, err
}

// Events pages the event log.
func (c *Client) Events(ctx context.Context, after uint64, limit int) (types.EventPage, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatUint(after, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out types.EventPage
	err := c.do(ctx, http.MethodGet, withQuery("/events", q), Call{}, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, call Call, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !call.As.IsZero() {
		tok, err := c.Token(call.As)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if call.IdempotencyKey != "" {
		req.Header.Set(api.HeaderIdempotencyKey, call.IdempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Status: resp.StatusCode}
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			se.Code, se.Message = e.Code, e.Message
		}
		return se
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Code returns the API error code carried by err, or "".
func Code(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func projectPath(id uint64) string {
	return "/projects/" + strconv.FormatUint(id, 10)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
