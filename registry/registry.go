// Package registry is the HTTP client for the remote profile registry.
//
// The client owns transport plumbing only: the signature protocol lives in
// package profile, and the registry consumes its output (a profile whose
// metadata.signature is populated). Timeouts and retry policy belong to the
// caller via the injected http.Client and context.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"aieos.dev/identity/profile"
)

// Record is the registry's stable boundary type for a stored profile.
type Record struct {
	EntityID   string          `json:"entity_id"`
	Alias      string          `json:"alias,omitempty"`
	Registered bool            `json:"registered"`
	Profile    profile.Profile `json:"profile"`
}

// ErrUnsignedProfile is returned when a submission's signature does not
// verify locally. The client refuses to send profiles the registry would
// reject anyway.
var ErrUnsignedProfile = errors.New("registry: profile signature does not verify")

// StatusError reports a non-2xx registry response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("registry: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("registry: status %d: %s", e.Status, e.Message)
}

// Client talks to a profile registry over HTTP.
type Client struct {
	// BaseURL is the registry root, e.g. "https://registry.example.com".
	BaseURL string

	// HTTPClient is used for all requests. nil means http.DefaultClient.
	HTTPClient *http.Client

	// UserAgent overrides the default User-Agent when non-empty.
	UserAgent string
}

// NewClient returns a Client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Register submits a signed profile with POST /agents and returns the
// registry's record (including the server-assigned entity id).
func (c *Client) Register(ctx context.Context, p profile.Profile) (*Record, error) {
	if !profile.Verify(p) {
		return nil, ErrUnsignedProfile
	}
	return c.submit(ctx, http.MethodPost, "/agents", p)
}

// Update replaces a registered profile with PUT /agents/{entity_id}.
func (c *Client) Update(ctx context.Context, entityID string, p profile.Profile) (*Record, error) {
	if entityID == "" {
		return nil, errors.New("registry: entity id is required")
	}
	if !profile.Verify(p) {
		return nil, ErrUnsignedProfile
	}
	return c.submit(ctx, http.MethodPut, "/agents/"+url.PathEscape(entityID), p)
}

// Lookup fetches a record with GET /agents/{entity_id} and reports whether
// the returned profile's signature verifies. Callers must treat verified ==
// false as an unauthenticated record, not a transport failure.
func (c *Client) Lookup(ctx context.Context, entityID string) (rec *Record, verified bool, err error) {
	if entityID == "" {
		return nil, false, errors.New("registry: entity id is required")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/agents/"+url.PathEscape(entityID), nil)
	if err != nil {
		return nil, false, err
	}
	rec, err = c.do(req)
	if err != nil {
		return nil, false, err
	}
	return rec, profile.Verify(rec.Profile), nil
}

func (c *Client) submit(ctx context.Context, method, path string, p profile.Profile) (*Record, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("registry: encode profile: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.BaseURL == "" {
		return nil, errors.New("registry: base URL is required")
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	ua := c.UserAgent
	if ua == "" {
		ua = "aieos-identity-go"
	}
	req.Header.Set("User-Agent", ua)
	return req, nil
}

func (c *Client) do(req *http.Request) (*Record, error) {
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("registry: decode response: %w", err)
	}
	return &rec, nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to raw text.
func errorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(b))
}
