package handler_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mp3 is the smallest body that passes audio sniffing.
var mp3 = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

func signupForm(username string) url.Values {
	return url.Values{
		"username":   {username},
		"email":      {username + "@example.com"},
		"password1":  {testutil.TestPassword},
		"password2":  {testutil.TestPassword},
		"first_name": {"Nadia"},
		"last_name":  {"Rahman"},
		"city":       {"Lahore"},
	}
}

// wrongCode returns a well-formed code that differs from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func login(t *testing.T, env *testutil.Env, user *model.User) *testutil.Client {
	t.Helper()

	client := testutil.NewClient(t, env.Handler)
	res := client.Post("/accounts/login", url.Values{
		"username": {user.Username},
		"password": {testutil.TestPassword},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	require.Equal(t, "/dashboard", res.Redirect)
	require.NotEmpty(t, client.Cookie("auth_token"))
	return client
}

func TestSignupVerification(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	client := testutil.NewClient(t, env.Handler)
	email := "nightingale@example.com"

	res := client.Post("/accounts/signup", signupForm("nightingale"))
	require.Equal(t, http.StatusCreated, res.Code, res.Message)
	assert.Equal(t, "/accounts/signup/verify", res.Redirect)
	assert.NotEmpty(t, client.Cookie("flow_state"))

	user, err := env.App.UserService.ByUsername(t.Context(), "nightingale")
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	code := env.Mailer.LastCode(email)
	require.Len(t, code, 6)

	var status struct {
		Email            string `json:"email"`
		MinutesRemaining int    `json:"minutes_remaining"`
	}
	res = client.Get("/accounts/signup/verify")
	require.Equal(t, http.StatusOK, res.Code)
	res.Decode(t, &status)
	assert.Equal(t, email, status.Email)
	assert.Equal(t, 15, status.MinutesRemaining)

	// A wrong code is rejected without touching the live record.
	env.Clock.Advance(time.Second)
	res = client.Post("/accounts/signup/verify", url.Values{"code": {wrongCode(code)}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.False(t, res.Success)

	live, err := env.App.VerificationService.LiveCode(t.Context(), user, email, model.VerificationTypeRegistration)
	require.NoError(t, err)
	assert.Equal(t, 0, live.Attempts)

	env.Clock.Advance(time.Second)
	res = client.Post("/accounts/signup/verify", url.Values{"code": {code}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.True(t, res.Success)
	assert.Equal(t, "/dashboard", res.Redirect)
	assert.NotEmpty(t, client.Cookie("auth_token"))
	assert.Empty(t, client.Cookie("flow_state"))

	user, err = env.App.UserService.ByUsername(t.Context(), "nightingale")
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	_, err = env.App.VerificationService.LiveCode(t.Context(), user, email, model.VerificationTypeRegistration)
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)

	res = client.Get("/dashboard")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestSignupValidation(t *testing.T) {
	env := testutil.NewEnv(t, nil)

	t.Run("password mismatch", func(t *testing.T) {
		form := signupForm("lark")
		form.Set("password2", "Different-2026!")
		res := testutil.NewClient(t, env.Handler).Post("/accounts/signup", form)
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("duplicate username", func(t *testing.T) {
		existing := testutil.CreateTestUser(t, env.DB)
		form := signupForm(existing.Username)
		form.Set("email", "other@example.com")
		res := testutil.NewClient(t, env.Handler).Post("/accounts/signup", form)
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	assert.Empty(t, env.Mailer.Messages())
}

func TestVerifyWithoutFlow(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	client := testutil.NewClient(t, env.Handler)

	res := client.Post("/accounts/signup/verify", url.Values{"code": {"123456"}})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/accounts/signup", res.Header.Get("Location"))

	res = client.Post("/accounts/bogus/verify", url.Values{"code": {"123456"}})
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestLogin(t *testing.T) {
	env := testutil.NewEnv(t, nil)

	t.Run("active account", func(t *testing.T) {
		user := testutil.CreateTestUser(t, env.DB)
		login(t, env, user)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		user := testutil.CreateTestUser(t, env.DB)
		client := testutil.NewClient(t, env.Handler)
		res := client.Post("/accounts/login", url.Values{
			"username": {user.Username},
			"password": {"not-the-password"},
		})
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Empty(t, client.Cookie("auth_token"))
	})

	t.Run("inactive account gets a code", func(t *testing.T) {
		user := testutil.CreateTestUser(t, env.DB, testutil.Inactive)
		client := testutil.NewClient(t, env.Handler)

		res := client.Post("/accounts/login", url.Values{
			"username": {user.Username},
			"password": {testutil.TestPassword},
		})
		require.Equal(t, http.StatusOK, res.Code, res.Message)
		assert.Equal(t, "/accounts/login/verify", res.Redirect)
		assert.Empty(t, client.Cookie("auth_token"))

		code := env.Mailer.LastCode(user.Email)
		require.NotEmpty(t, code)

		res = client.Post("/accounts/login/verify", url.Values{"code": {code}})
		require.Equal(t, http.StatusOK, res.Code, res.Message)
		assert.Equal(t, "/dashboard", res.Redirect)
		assert.NotEmpty(t, client.Cookie("auth_token"))

		reloaded, err := env.App.UserService.ByID(t.Context(), user.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsActive)
	})

	t.Run("signed in users cannot log in again", func(t *testing.T) {
		user := testutil.CreateTestUser(t, env.DB)
		client := login(t, env, user)
		res := client.Post("/accounts/login", url.Values{
			"username": {user.Username},
			"password": {testutil.TestPassword},
		})
		assert.NotEqual(t, http.StatusOK, res.Code)
	})
}

func TestDeactivatedAccountStaysInactive(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	staff := login(t, env, testutil.CreateTestUser(t, env.DB, testutil.Staff))
	user := testutil.CreateTestUser(t, env.DB)

	res := staff.Post("/manage/users/"+user.ID+"/active", url.Values{"active": {"false"}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)

	client := testutil.NewClient(t, env.Handler)
	res = client.Post("/accounts/login", url.Values{
		"username": {user.Username},
		"password": {testutil.TestPassword},
	})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, client.Cookie("auth_token"))
	assert.Empty(t, env.Mailer.SentTo(user.Email))

	res = client.Post("/accounts/login/verify", url.Values{"code": {"123456"}})
	assert.NotEqual(t, http.StatusOK, res.Code)

	reloaded, err := env.App.UserService.ByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
}

func TestDeactivationDuringLoginFlow(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	staff := login(t, env, testutil.CreateTestUser(t, env.DB, testutil.Staff))
	user := testutil.CreateTestUser(t, env.DB, testutil.Inactive)
	client := testutil.NewClient(t, env.Handler)

	res := client.Post("/accounts/login", url.Values{
		"username": {user.Username},
		"password": {testutil.TestPassword},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	code := env.Mailer.LastCode(user.Email)
	require.NotEmpty(t, code)

	res = staff.Post("/manage/users/"+user.ID+"/active", url.Values{"active": {"true"}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	res = staff.Post("/manage/users/"+user.ID+"/active", url.Values{"active": {"false"}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)

	res = client.Post("/accounts/login/resend", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Len(t, env.Mailer.SentTo(user.Email), 1)

	res = client.Post("/accounts/login/verify", url.Values{"code": {code}})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Empty(t, client.Cookie("auth_token"))

	reloaded, err := env.App.UserService.ByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
	assert.True(t, reloaded.EmailVerified())

	// The flow is gone, so the code cannot be replayed.
	res = client.Post("/accounts/login/verify", url.Values{"code": {code}})
	assert.NotEqual(t, http.StatusOK, res.Code)
}

func TestStaffReactivationRestoresLogin(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	staff := login(t, env, testutil.CreateTestUser(t, env.DB, testutil.Staff))
	user := testutil.CreateTestUser(t, env.DB, testutil.Deactivated)

	res := staff.Post("/manage/users/"+user.ID+"/active", url.Values{"active": {"true"}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)

	login(t, env, user)
}

func TestPasswordReset(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	user := testutil.CreateTestUser(t, env.DB)
	client := testutil.NewClient(t, env.Handler)
	newPassword := "Harmony-2027!"

	res := client.Post("/accounts/password-reset", url.Values{"email": {strings.ToUpper(user.Email)}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, "/accounts/password-reset/verify", res.Redirect)

	confirm := url.Values{"new_password1": {newPassword}, "new_password2": {newPassword}}

	res = client.Post("/accounts/password-reset/confirm", confirm)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/accounts/password-reset/verify", res.Header.Get("Location"))

	code := env.Mailer.LastCode(user.Email)
	res = client.Post("/accounts/password-reset/verify", url.Values{"code": {code}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, "/accounts/password-reset/confirm", res.Redirect)

	res = client.Post("/accounts/password-reset/confirm", confirm)
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, "/accounts/login", res.Redirect)
	assert.Empty(t, client.Cookie("flow_state"))

	res = client.Post("/accounts/login", url.Values{"username": {user.Username}, "password": {newPassword}})
	assert.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.NotEmpty(t, client.Cookie("auth_token"))
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	client := testutil.NewClient(t, env.Handler)

	res := client.Post("/accounts/password-reset", url.Values{"email": {"nobody@example.com"}})
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = client.Post("/accounts/password-reset/confirm", url.Values{
		"new_password1": {"Harmony-2027!"},
		"new_password2": {"Harmony-2027!"},
	})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/accounts/password-reset", res.Header.Get("Location"))
}

func TestUsernameRecovery(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	user := testutil.CreateTestUser(t, env.DB)
	client := testutil.NewClient(t, env.Handler)

	res := client.Post("/accounts/username-recovery", url.Values{"email": {user.Email}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, "/accounts/username-recovery/verify", res.Redirect)

	res = client.Post("/accounts/username-recovery/verify", url.Values{"code": {env.Mailer.LastCode(user.Email)}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, "/accounts/login", res.Redirect)

	var data struct {
		Username string `json:"username"`
	}
	res.Decode(t, &data)
	assert.Equal(t, user.Username, data.Username)
	assert.Empty(t, client.Cookie("flow_state"))
}

func TestFlowsAreIndependent(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	user := testutil.CreateTestUser(t, env.DB)
	client := testutil.NewClient(t, env.Handler)

	res := client.Post("/accounts/password-reset", url.Values{"email": {user.Email}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	resetCode := env.Mailer.LastCode(user.Email)

	res = client.Post("/accounts/username-recovery", url.Values{"email": {user.Email}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	recoveryCode := env.Mailer.LastCode(user.Email)

	// A reset code is not valid for username recovery.
	if resetCode != recoveryCode {
		res = client.Post("/accounts/username-recovery/verify", url.Values{"code": {resetCode}})
		assert.Equal(t, http.StatusBadRequest, res.Code)
	}

	res = client.Post("/accounts/username-recovery/verify", url.Values{"code": {recoveryCode}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)

	// Finishing recovery leaves the reset flow pending.
	res = client.Post("/accounts/password-reset/verify", url.Values{"code": {resetCode}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, "/accounts/password-reset/confirm", res.Redirect)
}

func TestResendLimit(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	client := testutil.NewClient(t, env.Handler)
	email := "bulbul@example.com"

	res := client.Post("/accounts/signup", signupForm("bulbul"))
	require.Equal(t, http.StatusCreated, res.Code, res.Message)
	first := env.Mailer.LastCode(email)

	for range 2 {
		env.Clock.Advance(time.Minute)
		res = client.Post("/accounts/signup/resend", nil)
		require.Equal(t, http.StatusOK, res.Code, res.Message)
	}
	assert.Len(t, env.Mailer.SentTo(email), 3)

	env.Clock.Advance(time.Minute)
	res = client.Post("/accounts/signup/resend", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, service.MsgRateLimited, res.Message)
	assert.Equal(t, "/accounts/signup/verify", res.Redirect)
	assert.Len(t, env.Mailer.SentTo(email), 3)

	// The most recent code still works after the refusal.
	latest := env.Mailer.LastCode(email)
	if latest != first {
		res = client.Post("/accounts/signup/verify", url.Values{"code": {first}})
		assert.Equal(t, http.StatusBadRequest, res.Code)
	}
	res = client.Post("/accounts/signup/verify", url.Values{"code": {latest}})
	assert.Equal(t, http.StatusOK, res.Code, res.Message)
}

func TestSignupMailFailure(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	client := testutil.NewClient(t, env.Handler)
	email := "koel@example.com"

	env.Mailer.Fail(true)
	res := client.Post("/accounts/signup", signupForm("koel"))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Equal(t, service.MsgMailDelivery, res.Message)
	assert.Equal(t, "/accounts/signup/verify", res.Redirect)

	user, err := env.App.UserService.ByUsername(t.Context(), "koel")
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	env.Mailer.Fail(false)
	env.Clock.Advance(time.Minute)
	res = client.Post("/accounts/signup/resend", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Message)

	res = client.Post("/accounts/signup/verify", url.Values{"code": {env.Mailer.LastCode(email)}})
	assert.Equal(t, http.StatusOK, res.Code, res.Message)
}

func TestSongDeletion(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	owner := testutil.CreateTestUser(t, env.DB)
	song := testutil.CreateTestSong(t, env.DB, owner, "Monsoon Lights")
	client := login(t, env, owner)

	base := "/songs/" + song.ID + "/delete"

	res := client.Post(base+"/verify", url.Values{"code": {"123456"}})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, base, res.Header.Get("Location"))

	res = client.Post(base, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, base+"/verify", res.Redirect)

	res = client.Get(base)
	require.Equal(t, http.StatusOK, res.Code)
	var page struct {
		Pending bool `json:"pending"`
	}
	res.Decode(t, &page)
	assert.True(t, page.Pending)

	code := env.Mailer.LastCode(owner.Email)
	res = client.Post(base+"/verify", url.Values{"code": {wrongCode(code)}})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = client.Post(base+"/verify", url.Values{"code": {code}})
	require.Equal(t, http.StatusOK, res.Code, res.Message)
	assert.Equal(t, "/dashboard", res.Redirect)

	res = client.Get("/songs/" + song.ID)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestSongDeletionOtherOwner(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	owner := testutil.CreateTestUser(t, env.DB)
	song := testutil.CreateTestSong(t, env.DB, owner, "Not Yours")

	client := login(t, env, testutil.CreateTestUser(t, env.DB))
	res := client.Post("/songs/"+song.ID+"/delete", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Empty(t, env.Mailer.SentTo(owner.Email))
}

func TestUploadGatedByPhase(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	user := testutil.CreateTestUser(t, env.DB)
	client := login(t, env, user)

	fields := url.Values{"title": {"Raindrop Raga"}, "language": {"urdu"}, "genre": {"Classical"}}
	audio := testutil.FilePart{Field: "audio_file", Filename: "raga.mp3", Content: mp3}

	res := client.Multipart("/songs", fields, audio)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, 0, env.Storage.Len())

	testutil.CreateTestPhase(t, env.DB, model.PhaseStatusOpen, testutil.Epoch.Add(14*24*time.Hour))

	res = client.Multipart("/songs", fields, audio)
	require.Equal(t, http.StatusCreated, res.Code, res.Message)

	var song model.Song
	res.Decode(t, &song)
	assert.Equal(t, "Raindrop Raga", song.Title)
	assert.Equal(t, 1, env.Storage.Len())

	res = client.Multipart("/songs", fields, testutil.FilePart{Field: "audio_file", Filename: "raga.txt", Content: []byte("la la la")})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = client.Multipart("/songs", fields)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestContestPhase(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	client := testutil.NewClient(t, env.Handler)

	var status struct {
		CanSubmit bool   `json:"can_submit"`
		Message   string `json:"message"`
	}

	res := client.Get("/contest/phase")
	require.Equal(t, http.StatusOK, res.Code)
	res.Decode(t, &status)
	assert.False(t, status.CanSubmit)

	testutil.CreateTestPhase(t, env.DB, model.PhaseStatusOpen, testutil.Epoch.Add(24*time.Hour))

	res = client.Get("/contest/phase")
	require.Equal(t, http.StatusOK, res.Code)
	res.Decode(t, &status)
	assert.True(t, status.CanSubmit)
	assert.Contains(t, status.Message, "Song submissions are open until")

	// Past the deadline the sweep moves the phase on to judging.
	env.Clock.Advance(48 * time.Hour)
	res = client.Get("/contest/phase")
	require.Equal(t, http.StatusOK, res.Code)
	res.Decode(t, &status)
	assert.False(t, status.CanSubmit)
}

func TestProtectedRoutes(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	client := testutil.NewClient(t, env.Handler)

	res := client.Get("/dashboard")
	assert.NotEqual(t, http.StatusOK, res.Code)

	client = login(t, env, testutil.CreateTestUser(t, env.DB))
	res = client.Get("/manage")
	assert.Equal(t, http.StatusForbidden, res.Code)

	staff := login(t, env, testutil.CreateTestUser(t, env.DB, testutil.Staff))
	res = staff.Get("/manage")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestSitemapAndRobots(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	owner := testutil.CreateTestUser(t, env.DB)
	song := testutil.CreateTestSong(t, env.DB, owner, "Harbour Song")
	client := testutil.NewClient(t, env.Handler)

	res := client.Get("/sitemap.xml")
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "application/xml"))
	body := string(res.Body)
	assert.Contains(t, body, "<urlset")
	assert.Contains(t, body, "/songs/"+song.ID)
	assert.NotContains(t, body, "/accounts/")

	res = client.Get("/robots.txt")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, string(res.Body), "Disallow: /accounts/")
}
