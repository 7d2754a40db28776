// Package gateway is the single HTTP entry point for authenticated upstream
// calls. It attaches a bearer token, refreshes and retries exactly once on an
// expired session, and on terminal failure tears the session down once no
// matter how many callers hit the wall at the same time.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/timeback/rosterdash/internal/auth/events"
	"github.com/timeback/rosterdash/internal/auth/token"
)

var (
	// ErrAuthRequired means no provider has a usable token; the caller should
	// send the user to login. No network call was made.
	ErrAuthRequired = errors.New("authentication required")

	// ErrSessionExpired means a 401 could not be recovered by refresh. The
	// session has been cleared and logout broadcast.
	ErrSessionExpired = errors.New("session expired")
)

// NetworkError wraps a transport-level failure so the UI can show a
// connectivity hint instead of a generic error.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error calling %s: %v", e.URL, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// Refresher exchanges a refresh token for a rotated set. False means the
// session is unrecoverable.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (token.Set, bool)
}

type Gateway struct {
	httpc     *http.Client
	store     token.Store
	refresher Refresher
	events    *events.Broadcaster
	logger    *slog.Logger

	// Guards the terminal teardown so concurrent 401s clear and broadcast
	// exactly once. The refresh-and-retry path is not guarded; racing
	// refreshes just replace tokens idempotently.
	tearingDown atomic.Bool
}

type Option func(*Gateway)

func WithHTTPClient(h *http.Client) Option { return func(g *Gateway) { g.httpc = h } }
func WithLogger(l *slog.Logger) Option     { return func(g *Gateway) { g.logger = l } }

func New(store token.Store, refresher Refresher, bus *events.Broadcaster, opts ...Option) *Gateway {
	g := &Gateway{
		httpc:     http.DefaultClient,
		store:     store,
		refresher: refresher,
		events:    bus,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Do sends req with a bearer token resolved from the store in provider
// preference order. Callers must set req.GetBody (http.NewRequest does for
// byte readers) if the request has a body, so the one retry can replay it.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	return g.do(req, false)
}

func (g *Gateway) do(req *http.Request, isRetry bool) (*http.Response, error) {
	set, ok := g.currentToken()
	if !ok {
		return nil, ErrAuthRequired
	}
	req.Header.Set("Authorization", "Bearer "+set.Access)

	resp, err := g.httpc.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: req.URL.String(), Err: err}
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if !isRetry {
		if fresh, ok := g.tryRefresh(req.Context()); ok {
			g.store.Put(token.ProviderIDP, fresh)
			retry, err := cloneRequest(req)
			if err != nil {
				return nil, err
			}
			return g.do(retry, true)
		}
	}

	g.teardown(req.Context())
	return nil, ErrSessionExpired
}

func (g *Gateway) currentToken() (token.Set, bool) {
	for _, p := range token.Preference {
		if s, ok := g.store.Get(p); ok {
			return s, true
		}
	}
	return token.Set{}, false
}

func (g *Gateway) tryRefresh(ctx context.Context) (token.Set, bool) {
	if g.refresher == nil {
		return token.Set{}, false
	}
	set, ok := g.store.Get(token.ProviderIDP)
	if !ok || set.Refresh == "" {
		return token.Set{}, false
	}
	return g.refresher.Refresh(ctx, set.Refresh)
}

// teardown clears all providers and broadcasts logout. Only the first caller
// through performs the side effects; the rest observe the cleared state.
func (g *Gateway) teardown(ctx context.Context) {
	if !g.tearingDown.CompareAndSwap(false, true) {
		return
	}
	defer g.tearingDown.Store(false)

	g.logger.InfoContext(ctx, "session expired, clearing tokens")
	g.store.ClearAll()
	if g.events != nil {
		g.events.EmitLogout()
	}
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("gateway: request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

// GetJSON issues an authenticated GET and decodes a 2xx JSON body into v.
func (g *Gateway) GetJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return g.doJSON(req, v)
}

// PostJSON issues an authenticated POST with a JSON body and decodes the
// response into v when v is non-nil.
func (g *Gateway) PostJSON(ctx context.Context, url string, in, v any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return g.doJSON(req, v)
}

func (g *Gateway) doJSON(req *http.Request, v any) error {
	resp, err := g.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL, resp.StatusCode, bytes.TrimSpace(b))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
