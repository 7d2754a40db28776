package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeback/rosterdash/internal/auth/events"
	"github.com/timeback/rosterdash/internal/auth/token"
)

type fakeRefresher struct {
	calls atomic.Int32
	set   token.Set
	ok    bool
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (token.Set, bool) {
	f.calls.Add(1)
	return f.set, f.ok
}

func seedIDP(store token.Store) {
	store.Put(token.ProviderIDP, token.Set{Access: "old-access", ID: "id", Refresh: "refresh"})
}

func TestNoTokenIsAuthRequiredWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	g := New(token.NewMemStore(), nil, nil)
	err := g.GetJSON(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Zero(t, hits.Load())
}

func TestBearerComesFromPreferredProvider(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := token.NewMemStore()
	seedIDP(store)
	store.Put(token.ProviderSSO, token.Set{Access: "sso-access", ID: "i", Refresh: "r"})

	g := New(store, nil, nil)
	require.NoError(t, g.GetJSON(context.Background(), srv.URL, nil))
	assert.Equal(t, "Bearer sso-access", got)
}

func TestRefreshAndRetryOnce(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		tokens = append(tokens, auth)
		if auth != "Bearer new-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer srv.Close()

	store := token.NewMemStore()
	seedIDP(store)
	ref := &fakeRefresher{set: token.Set{Access: "new-access", ID: "id2", Refresh: "refresh2"}, ok: true}
	g := New(store, ref, events.NewBroadcaster())

	var out map[string]string
	require.NoError(t, g.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "yes", out["ok"])
	assert.Equal(t, []string{"Bearer old-access", "Bearer new-access"}, tokens)
	assert.Equal(t, int32(1), ref.calls.Load())

	// The rotated set was persisted.
	set, ok := store.Get(token.ProviderIDP)
	require.True(t, ok)
	assert.Equal(t, "new-access", set.Access)
}

func TestRetryReplaysRequestBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if r.Header.Get("Authorization") != "Bearer new-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := token.NewMemStore()
	seedIDP(store)
	ref := &fakeRefresher{set: token.Set{Access: "new-access", ID: "i", Refresh: "r"}, ok: true}
	g := New(store, ref, nil)

	require.NoError(t, g.PostJSON(context.Background(), srv.URL, map[string]string{"k": "v"}, nil))
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Contains(t, bodies[1], `"k":"v"`)
}

func TestUnrecoverable401TearsDownOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := token.NewMemStore()
	seedIDP(store)
	bus := events.NewBroadcaster()
	logouts := 0
	bus.OnLogout(func() { logouts++ })
	g := New(store, &fakeRefresher{ok: false}, bus)

	err := g.GetJSON(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, logouts)
	_, ok := store.Get(token.ProviderIDP)
	assert.False(t, ok)
}

func TestRetryThatStill401sTearsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := token.NewMemStore()
	seedIDP(store)
	ref := &fakeRefresher{set: token.Set{Access: "new", ID: "i", Refresh: "r"}, ok: true}
	g := New(store, ref, nil)

	err := g.GetJSON(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
	// Exactly one refresh: the retry's 401 is terminal.
	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestConcurrentTerminal401sBroadcastOnce(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	const callers = 8

	store := token.NewMemStore()
	seedIDP(store)
	bus := events.NewBroadcaster()

	// The winning teardown is held open until every other caller has hit the
	// wall, so each of them races the CAS guard while it is taken.
	var logouts, finished atomic.Int32
	done := make(chan struct{})
	bus.OnLogout(func() {
		logouts.Add(1)
		<-done
	})
	g := New(store, &fakeRefresher{ok: false}, bus)

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = g.GetJSON(context.Background(), srv.URL, nil)
			if finished.Add(1) == callers-1 {
				close(done)
			}
		}(i)
	}
	close(release)
	wg.Wait()

	for _, err := range errs {
		// Callers that arrive after the teardown see the cleared store.
		assert.True(t, err == ErrSessionExpired || err == ErrAuthRequired, "got %v", err)
	}
	assert.Equal(t, int32(1), logouts.Load())
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	store := token.NewMemStore()
	seedIDP(store)
	g := New(store, nil, nil)

	err := g.GetJSON(context.Background(), "http://127.0.0.1:1", nil)
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.NotEmpty(t, nerr.URL)
}

func TestNon2xxBodySurfacesInError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	store := token.NewMemStore()
	seedIDP(store)
	g := New(store, nil, nil)

	err := g.GetJSON(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "nope")
}
