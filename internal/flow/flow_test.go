package flow

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func TestRequireMissingFlow(t *testing.T) {
	state := NewState()

	_, err := state.Require(KindRegistration)
	assert.ErrorIs(t, err, ErrFlowStateMissing)
}

func TestRequireIncompleteEntry(t *testing.T) {
	state := NewState()
	state.Flows[KindLogin] = &Pending{UserID: "u1"}

	_, err := state.Require(KindLogin)
	assert.ErrorIs(t, err, ErrFlowStateMissing)
}

func TestFlowsAreIndependent(t *testing.T) {
	state := NewState()
	state.Begin(KindLogin, "u1", "one@example.com", "", now)
	state.Begin(KindPasswordReset, "u2", "two@example.com", "", now)

	state.Clear(KindPasswordReset)

	p, err := state.Require(KindLogin)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)

	_, err = state.Require(KindPasswordReset)
	assert.ErrorIs(t, err, ErrFlowStateMissing)
}

func TestBeginReplacesEarlierEntry(t *testing.T) {
	state := NewState()
	state.Begin(KindPasswordReset, "u1", "old@example.com", "", now)
	require.NoError(t, state.MarkVerified(KindPasswordReset))

	state.Begin(KindPasswordReset, "u1", "new@example.com", "", now)

	p, err := state.Require(KindPasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", p.Email)
	assert.False(t, p.Verified)
}

func TestRequireVerified(t *testing.T) {
	state := NewState()

	_, err := state.RequireVerified(KindPasswordReset)
	assert.ErrorIs(t, err, ErrFlowStateMissing)

	state.Begin(KindPasswordReset, "u1", "one@example.com", "", now)
	_, err = state.RequireVerified(KindPasswordReset)
	assert.ErrorIs(t, err, ErrFlowNotVerified)

	require.NoError(t, state.MarkVerified(KindPasswordReset))
	p, err := state.RequireVerified(KindPasswordReset)
	require.NoError(t, err)
	assert.True(t, p.Verified)
}

func TestMarkVerifiedWithoutFlow(t *testing.T) {
	state := NewState()
	assert.ErrorIs(t, state.MarkVerified(KindLogin), ErrFlowStateMissing)
}

func TestRequireSong(t *testing.T) {
	state := NewState()
	state.Begin(KindSongDeletion, "u1", "one@example.com", "song-1", now)

	_, err := state.RequireSong("song-1")
	assert.NoError(t, err)

	_, err = state.RequireSong("song-2")
	assert.ErrorIs(t, err, ErrFlowStateMissing)
}

func TestKindFromPath(t *testing.T) {
	tests := []struct {
		segment string
		want    Kind
	}{
		{"signup", KindRegistration},
		{"login", KindLogin},
		{"password-reset", KindPasswordReset},
		{"username-recovery", KindUsernameRecovery},
	}
	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			kind, err := KindFromPath(tt.segment)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, "/accounts/"+tt.segment+"/verify", kind.VerifyPath(""))
		})
	}

	_, err := KindFromPath("song-deletion")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/accounts/signup", KindRegistration.EntryPoint(""))
	assert.Equal(t, "/accounts/login", KindLogin.EntryPoint(""))
	assert.Equal(t, "/accounts/password-reset", KindPasswordReset.EntryPoint(""))
	assert.Equal(t, "/accounts/username-recovery", KindUsernameRecovery.EntryPoint(""))
	assert.Equal(t, "/songs/abc/delete", KindSongDeletion.EntryPoint("abc"))
	assert.Equal(t, "/dashboard", KindSongDeletion.EntryPoint(""))
	assert.Equal(t, "/songs/abc/delete/verify", KindSongDeletion.VerifyPath("abc"))
}

func roundTrip(t *testing.T, store *Store, state *State) (*http.Cookie, *State) {
	t.Helper()

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, state))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	return cookies[0], store.Load(req)
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore("flow-secret", 30*time.Minute, false)

	state := NewState()
	state.Begin(KindPasswordReset, "u1", "one@example.com", "", now)
	require.NoError(t, state.MarkVerified(KindPasswordReset))
	state.Begin(KindSongDeletion, "u1", "one@example.com", "song-1", now)

	cookie, loaded := roundTrip(t, store, state)
	assert.Equal(t, CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)

	p, err := loaded.RequireVerified(KindPasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "one@example.com", p.Email)

	_, err = loaded.RequireSong("song-1")
	assert.NoError(t, err)
}

func TestStoreSaveEmptyClearsCookie(t *testing.T) {
	store := NewStore("flow-secret", 30*time.Minute, false)

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, NewState()))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestStoreRejectsTamperedCookie(t *testing.T) {
	store := NewStore("flow-secret", 30*time.Minute, false)
	other := NewStore("another-secret", 30*time.Minute, false)

	state := NewState()
	state.Begin(KindLogin, "u1", "one@example.com", "", now)

	rec := httptest.NewRecorder()
	require.NoError(t, other.Save(rec, state))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])

	loaded := store.Load(req)
	assert.True(t, loaded.Empty())
}

func TestStoreLoadWithoutCookie(t *testing.T) {
	store := NewStore("flow-secret", 0, false)
	loaded := store.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, loaded.Empty())
}
