// Package oauth2 adapts session providers to the bearer-token contract used
// by the storage and sync clients.
package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	xoauth2 "golang.org/x/oauth2"
)

// TokenSource supplies the current bearer token of the signed-in user.
type TokenSource interface {
	// Token returns a valid access token or ErrUnauthenticated
	Token(ctx context.Context) (string, error)

	// UserID returns the identity that namespaces remote storage keys
	UserID(ctx context.Context) (string, error)
}

// Authenticated reports whether the source currently yields a token.
func Authenticated(ctx context.Context, ts TokenSource) bool {
	if ts == nil {
		return false
	}
	token, err := ts.Token(ctx)
	return err == nil && token != ""
}

// StaticTokenSource provides a fixed access token without refresh capability
type StaticTokenSource struct {
	mu          sync.RWMutex
	accessToken string
	userID      string
}

// NewStaticTokenSource creates a TokenSource with a fixed token. An empty
// token behaves as a signed-out session.
func NewStaticTokenSource(accessToken, userID string) *StaticTokenSource {
	return &StaticTokenSource{
		accessToken: accessToken,
		userID:      userID,
	}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" {
		return "", ErrUnauthenticated
	}
	return s.accessToken, nil
}

func (s *StaticTokenSource) UserID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" {
		return "", ErrUnauthenticated
	}
	if s.userID == "" {
		return "", ErrNoUserID
	}
	return s.userID, nil
}

// SetSession replaces the session, e.g. after a sign-in or sign-out.
func (s *StaticTokenSource) SetSession(accessToken, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.userID = userID
}

// ProviderTokenSource adapts x/oauth2 token sources, which handle refresh,
// to TokenSource. A valid token is cached until it expires; a refresh runs
// under the caller's context.
type ProviderTokenSource struct {
	mu     sync.Mutex
	token  *xoauth2.Token
	source func(ctx context.Context, last *xoauth2.Token) xoauth2.TokenSource
	userID string
}

// NewProviderTokenSource wraps a source that does not take a context.
func NewProviderTokenSource(src xoauth2.TokenSource, userID string) *ProviderTokenSource {
	return &ProviderTokenSource{
		source: func(context.Context, *xoauth2.Token) xoauth2.TokenSource { return src },
		userID: userID,
	}
}

func (p *ProviderTokenSource) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token.Valid() {
		return p.token.AccessToken, nil
	}
	token, err := p.source(ctx, p.token).Token()
	if err != nil {
		var retrieveErr *xoauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrRefreshFailed, ctxErr)
		}
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if !token.Valid() {
		return "", ErrUnauthenticated
	}
	p.token = token
	return token.AccessToken, nil
}

func (p *ProviderTokenSource) UserID(ctx context.Context) (string, error) {
	if _, err := p.Token(ctx); err != nil {
		return "", err
	}
	if p.userID == "" {
		return "", ErrNoUserID
	}
	return p.userID, nil
}

// NewRefreshTokenSource exchanges refreshToken at tokenURL whenever the
// cached access token has expired. An HTTP client set on ctx with
// xoauth2.HTTPClient is used for refreshes unless the caller's context
// carries its own.
func NewRefreshTokenSource(ctx context.Context, clientID, tokenURL, refreshToken, userID string) *ProviderTokenSource {
	conf := &xoauth2.Config{
		ClientID: clientID,
		Endpoint: xoauth2.Endpoint{TokenURL: tokenURL, AuthStyle: xoauth2.AuthStyleInParams},
	}
	client, _ := ctx.Value(xoauth2.HTTPClient).(*http.Client)

	return &ProviderTokenSource{
		token: &xoauth2.Token{RefreshToken: refreshToken},
		source: func(callCtx context.Context, last *xoauth2.Token) xoauth2.TokenSource {
			if client != nil && callCtx.Value(xoauth2.HTTPClient) == nil {
				callCtx = context.WithValue(callCtx, xoauth2.HTTPClient, client)
			}
			return conf.TokenSource(callCtx, last)
		},
		userID: userID,
	}
}
