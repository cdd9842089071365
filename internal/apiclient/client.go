// Package apiclient is the authenticated JSON transport shared by the
// storage and sync clients. It gates every call on connectivity, attaches
// the bearer token and maps failures into a small set of error kinds.
//
// Nothing in this package retries: each failure is classified once and
// returned to the caller.
package apiclient

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
	"time"

	"github.com/mrlokans/librarysync/internal/connectivity"
	"github.com/mrlokans/librarysync/internal/oauth2"
)

const (
	defaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client performs authenticated metadata requests against the remote API.
type Client struct {
	checker    connectivity.Checker
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for metadata requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the metadata request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient creates a new API client
func NewClient(checker connectivity.Checker, tokens oauth2.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		checker: checker,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session carries what a single authenticated call needs.
type Session struct {
	BaseURL string
	Token   string
}

// Preflight checks, in order, network reachability, endpoint configuration
// and authentication. It performs no network I/O.
func (c *Client) Preflight(ctx context.Context) (*Session, error) {
	if c.checker == nil || !c.checker.Online() {
		return nil, &Error{Kind: KindOffline, Message: ErrOffline.Message}
	}
	baseURL, ok := c.checker.BaseURL()
	if !ok {
		return nil, &Error{Kind: KindAPIUnavailable, Message: ErrAPIUnavailable.Message}
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{BaseURL: baseURL, Token: token}, nil
}

// UserID resolves the identity that namespaces storage keys.
func (c *Client) UserID(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", &Error{Kind: KindUnauthenticated, Message: ErrUnauthenticated.Message}
	}
	userID, err := c.tokens.UserID(ctx)
	if err != nil || userID == "" {
		return "", &Error{Kind: KindUnauthenticated, Message: ErrUnauthenticated.Message, Err: err}
	}
	return userID, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", &Error{Kind: KindUnauthenticated, Message: ErrUnauthenticated.Message}
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, oauth2.ErrUnauthenticated) {
			return "", &Error{Kind: KindUnauthenticated, Message: ErrUnauthenticated.Message, Err: err}
		}
		if errors.Is(err, oauth2.ErrRefreshFailed) {
			return "", FromTransport(ctx, err)
		}
		return "", &Error{Kind: KindUnknown, Message: "failed to get access token", Err: err}
	}
	if token == "" {
		return "", &Error{Kind: KindUnauthenticated, Message: ErrUnauthenticated.Message}
	}
	return token, nil
}

// Endpoint joins the base URL, a path and an optional query.
func Endpoint(s *Session, path string, query url.Values) string {
	endpoint := s.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

// DoJSON sends body as JSON with the session's bearer token and decodes a
// 2xx response into out. out may be nil.
func (c *Client) DoJSON(ctx context.Context, s *Session, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindUnknown, Message: "failed to marshal request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &Error{Kind: KindAPIUnavailable, Message: "invalid API URL", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FromTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ErrorFromResponse(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) {
			return &Error{Kind: KindUnknown, StatusCode: resp.StatusCode, Message: "failed to decode response", Err: err}
		}
		return FromTransport(ctx, err)
	}
	return nil
}

// errorEnvelope is the remote error body: {"error": "..."}
type errorEnvelope struct {
	Error string `json:"error"`
}

// ErrorFromResponse reads the error envelope of a non-2xx response, falling
// back to the HTTP status text when the body is not parseable.
func ErrorFromResponse(resp *http.Response) *Error {
	message := http.StatusText(resp.StatusCode)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		message = envelope.Error
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return FromStatus(resp.StatusCode, message)
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
