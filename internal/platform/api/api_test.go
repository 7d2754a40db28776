package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeback/rosterdash/internal/assessment"
	"github.com/timeback/rosterdash/internal/auth/events"
	"github.com/timeback/rosterdash/internal/auth/gateway"
	"github.com/timeback/rosterdash/internal/auth/idp"
	"github.com/timeback/rosterdash/internal/auth/sso"
	"github.com/timeback/rosterdash/internal/auth/token"
	"github.com/timeback/rosterdash/internal/platform/authsvc"
	"github.com/timeback/rosterdash/internal/platform/db"
	"github.com/timeback/rosterdash/internal/platform/seed"
	"github.com/timeback/rosterdash/internal/platform/storage"
	"github.com/timeback/rosterdash/internal/qti"
	"github.com/timeback/rosterdash/internal/roster"
)

const seedPassword = "TestPassword123!"

type platformFixture struct {
	srv *httptest.Server
	db  *sql.DB
}

// newPlatform stands up the whole dev backend over a throwaway sqlite file
// and blob dir, so the client packages can be driven against it for real.
func newPlatform(t *testing.T) *platformFixture {
	t.Helper()
	ctx := context.Background()

	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	// The blob store needs the server URL for signed links, and the server
	// needs the blob store; start with a swappable handler.
	var handler http.Handler = http.NotFoundHandler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	blobs, err := storage.NewFSStore(t.TempDir(), srv.URL, "test-secret")
	require.NoError(t, err)

	tokens := authsvc.NewTokenService("test-secret", time.Hour)
	handler = NewServer(dbh, tokens, blobs, slog.Default()).Routes([]string{"*"})

	require.NoError(t, seed.Run(ctx, dbh, blobs, seedPassword))
	return &platformFixture{srv: srv, db: dbh}
}

func (p *platformFixture) clients(t *testing.T) (token.Store, *gateway.Gateway, *idp.Client, *sso.Client) {
	t.Helper()
	store := token.NewMemStore()
	idpc := idp.New(p.srv.URL+"/idp", "test-client", seedPassword)
	gw := gateway.New(store, idpc, events.NewBroadcaster())
	return store, gw, idpc, sso.New(p.srv.URL, gw, store)
}

func TestSignUpConfirmLoginFlow(t *testing.T) {
	p := newPlatform(t)
	store, _, idpc, _ := p.clients(t)
	ctx := context.Background()
	email := "newkid@example.edu"

	// First sight: the login transparently signs the user up.
	res, err := idpc.Login(ctx, email)
	require.NoError(t, err)
	require.True(t, res.NeedsConfirmation)

	// The confirmation code is delivered out of band; read it where the
	// provider stored it.
	var code string
	require.NoError(t, p.db.QueryRow(
		`SELECT confirm_code FROM accounts WHERE email=$1`, email).Scan(&code))
	require.NoError(t, idpc.Confirm(ctx, email, code))

	// Repeating the confirm is harmless.
	require.NoError(t, idpc.Confirm(ctx, email, code))

	res, err = idpc.Login(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	require.True(t, res.Tokens.Valid())
	store.Put(token.ProviderIDP, *res.Tokens)
}

func TestIDPLoginWrongCodeRejected(t *testing.T) {
	p := newPlatform(t)
	_, _, idpc, _ := p.clients(t)
	ctx := context.Background()

	res, err := idpc.Login(ctx, "pending@example.edu")
	require.NoError(t, err)
	require.True(t, res.NeedsConfirmation)

	err = idpc.Confirm(ctx, "pending@example.edu", "000000")
	var perr *idp.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "CodeMismatchException", perr.Type)
}

func TestIDPRefreshRotatesAccessToken(t *testing.T) {
	p := newPlatform(t)
	_, _, idpc, _ := p.clients(t)
	ctx := context.Background()

	res, err := idpc.Login(ctx, "ana.diaz@lakeview.example.edu")
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)

	fresh, ok := idpc.Refresh(ctx, res.Tokens.Refresh)
	require.True(t, ok)
	assert.True(t, fresh.Valid())
	// The provider omits the refresh token on refresh; it carries over.
	assert.Equal(t, res.Tokens.Refresh, fresh.Refresh)
}

func TestSSOLoginMeLogout(t *testing.T) {
	p := newPlatform(t)
	store, _, _, ssoc := p.clients(t)
	ctx := context.Background()

	user, err := ssoc.Login(ctx, "ana.diaz@lakeview.example.edu", seedPassword)
	require.NoError(t, err)
	assert.Equal(t, "teacher", user.Role)
	_, ok := store.Get(token.ProviderSSO)
	require.True(t, ok)

	me, err := ssoc.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana.diaz@lakeview.example.edu", me.Email)

	require.NoError(t, ssoc.Logout(ctx, true))
	_, ok = store.Get(token.ProviderSSO)
	assert.False(t, ok)
}

func TestSSOLoginWrongPassword(t *testing.T) {
	p := newPlatform(t)
	_, _, _, ssoc := p.clients(t)

	_, err := ssoc.Login(context.Background(), "ana.diaz@lakeview.example.edu", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestSessionCheckAfterRegistration(t *testing.T) {
	p := newPlatform(t)
	_, _, _, ssoc := p.clients(t)
	ctx := context.Background()

	_, err := ssoc.Login(ctx, "bo.chen@lakeview.example.edu", seedPassword)
	require.NoError(t, err)
	require.NoError(t, ssoc.RegisterSession(ctx, "fp-abc", "localhost"))

	// A fresh client with the same fingerprint is recognized and re-issued
	// a full triple.
	freshStore, _, _, freshSSO := p.clients(t)
	check, err := freshSSO.CheckSession(ctx, "fp-abc", "localhost")
	require.NoError(t, err)
	require.True(t, check.Authenticated)
	set, ok := freshStore.Get(token.ProviderSSO)
	require.True(t, ok)
	assert.True(t, set.Valid())

	// Logout with revocation invalidates the server-side session.
	require.NoError(t, freshSSO.Logout(ctx, true))
	miss, err := freshSSO.CheckSession(ctx, "fp-abc", "localhost")
	require.NoError(t, err)
	assert.False(t, miss.Authenticated)
}

func TestRosterEndpointsServeSeedData(t *testing.T) {
	p := newPlatform(t)
	_, gw, _, ssoc := p.clients(t)
	ctx := context.Background()

	_, err := ssoc.Login(ctx, "admin@lakeview.example.edu", seedPassword)
	require.NoError(t, err)
	rc := roster.New(p.srv.URL+"/ims/oneroster/rostering/v1p2", gw)

	orgs, err := rc.Orgs(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 2)

	students, err := rc.Users(ctx, "student")
	require.NoError(t, err)
	require.Len(t, students, 2)
	for _, s := range students {
		assert.Equal(t, "student", s.Role)
	}

	classes, err := rc.ClassesForSchool(ctx, orgSchoolID(t, orgs))
	require.NoError(t, err)
	assert.Len(t, classes, 2)

	teachers, err := rc.TeachersForClass(ctx, classes[0].SourcedID)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "Diaz", teachers[0].FamilyName)
}

func orgSchoolID(t *testing.T, orgs []roster.Org) string {
	t.Helper()
	for _, o := range orgs {
		if o.Type == "school" {
			return o.SourcedID
		}
	}
	t.Fatal("no school in seed data")
	return ""
}

func TestRosterRequiresBearer(t *testing.T) {
	p := newPlatform(t)
	resp, err := http.Get(p.srv.URL + "/ims/oneroster/rostering/v1p2/orgs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAssessmentEndToEnd(t *testing.T) {
	p := newPlatform(t)
	_, gw, _, ssoc := p.clients(t)
	ctx := context.Background()

	_, err := ssoc.Login(ctx, "bo.chen@lakeview.example.edu", seedPassword)
	require.NoError(t, err)

	f := assessment.New(p.srv.URL+"/ims/qti/v3p0", gw)
	parts, err := f.Load(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	items := parts[0].Sections[0].Items
	require.Len(t, items, 3)

	// The seeded choice item resolves, parses and renders.
	require.NoError(t, items[0].Err)
	parsed := qti.Parse(items[0].XMLContent, items[0].InteractionType)
	require.Equal(t, qti.KindChoice, parsed.Kind)
	assert.Len(t, parsed.Choices, 4)
	html, err := qti.Render(parsed, 0, items[0].ID)
	require.NoError(t, err)
	assert.Contains(t, string(html), `name="question_`+items[0].ID+`"`)

	// The textEntry item carries its expectedLength through.
	require.NoError(t, items[1].Err)
	entry := qti.Parse(items[1].XMLContent, items[1].InteractionType)
	require.Equal(t, qti.KindTextEntry, entry.Kind)
	require.NotNil(t, entry.Constraints)
	assert.Equal(t, 20, entry.Constraints.ExpectedLength)

	// The item seeded without content degrades item-level, not page-level.
	assert.ErrorIs(t, items[2].Err, assessment.ErrContentUnavailable)
}

func TestBlobLinkExpiresAndRejectsTampering(t *testing.T) {
	p := newPlatform(t)
	_, gw, _, ssoc := p.clients(t)
	ctx := context.Background()

	_, err := ssoc.Login(ctx, "admin@lakeview.example.edu", seedPassword)
	require.NoError(t, err)

	var details struct {
		Item struct {
			XMLURL string `json:"xmlUrl"`
		} `json:"item"`
	}
	require.NoError(t, gw.GetJSON(ctx, p.srv.URL+"/ims/qti/v3p0/assessment-items/item-1", &details))
	require.NotEmpty(t, details.Item.XMLURL)

	resp, err := http.Get(details.Item.XMLURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(details.Item.XMLURL + "tampered")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
