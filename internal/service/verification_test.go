package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verificationFixture struct {
	db      *sqlx.DB
	svc     *service.VerificationService
	mailer  *testutil.RecordingMailer
	clock   *testutil.Clock
	codes   []string
	nextIdx int
	mu      sync.Mutex
}

// newVerificationFixture hands out the given codes in order, then falls
// back to random ones.
func newVerificationFixture(t *testing.T, codes ...string) *verificationFixture {
	t.Helper()

	f := &verificationFixture{
		db:     testutil.SetupTestDB(t),
		mailer: testutil.NewRecordingMailer(),
		clock:  testutil.NewClock(testutil.Epoch),
		codes:  codes,
	}

	emailService, err := service.NewEmailService(f.mailer, "AI Song Contest", "http://localhost:8090", "")
	require.NoError(t, err)

	opts := service.VerificationOptions{
		CodeTTL:      15 * time.Minute,
		MaxAttempts:  5,
		ResendLimit:  3,
		ResendWindow: 10 * time.Minute,
		Clock:        f.clock.Now,
	}
	if len(codes) > 0 {
		opts.GenerateCode = f.nextCode
	}

	f.svc = service.NewVerificationService(repository.NewVerificationRepository(f.db), emailService, opts)
	return f
}

func (f *verificationFixture) nextCode() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := f.codes[f.nextIdx%len(f.codes)]
	f.nextIdx++
	return code, nil
}

func (f *verificationFixture) record(t *testing.T, id string) *model.VerificationCode {
	t.Helper()
	var rec model.VerificationCode
	require.NoError(t, f.db.Get(&rec, `SELECT * FROM verification_codes WHERE id = $1`, id))
	return &rec
}

func (f *verificationFixture) countCodes(t *testing.T, userID, codeType string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, `SELECT COUNT(*) FROM verification_codes WHERE user_id = $1 AND type = $2`, userID, codeType))
	return n
}

func TestIssueCodeCreatesLiveRecord(t *testing.T) {
	f := newVerificationFixture(t)
	user := testutil.CreateTestUser(t, f.db, testutil.Inactive)

	rec, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeRegistration)
	require.NoError(t, err)

	assert.Regexp(t, `^\d{6}$`, rec.Code)
	assert.Equal(t, 0, rec.Attempts)
	assert.False(t, rec.IsUsed)
	assert.True(t, rec.ExpiresAt.Equal(rec.CreatedAt.Add(15*time.Minute)))
	assert.True(t, rec.CreatedAt.Equal(testutil.Epoch))

	msgs := f.mailer.SentTo(user.Email)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, rec.Code)
	assert.Contains(t, msgs[0].Subject, "verification code")
}

func TestIssueCodeResetsExistingRecordInPlace(t *testing.T) {
	f := newVerificationFixture(t, "111111", "222222")
	user := testutil.CreateTestUser(t, f.db)

	first, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeLogin)
	require.NoError(t, err)

	_, err = f.db.Exec(`UPDATE verification_codes SET attempts = 3 WHERE id = $1`, first.ID)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	second, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeLogin)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "222222", second.Code)
	assert.Equal(t, 0, second.Attempts)
	assert.False(t, second.IsUsed)
	assert.True(t, second.ExpiresAt.Equal(testutil.Epoch.Add(20*time.Minute)))
	assert.Equal(t, 1, f.countCodes(t, user.ID, model.VerificationTypeLogin))
}

func TestIssueCodeNormalizesEmail(t *testing.T) {
	f := newVerificationFixture(t, "345678")
	user := testutil.CreateTestUser(t, f.db)

	_, err := f.svc.IssueCode(t.Context(), user, "  "+user.Email+"  ", model.VerificationTypePasswordReset)
	require.NoError(t, err)

	result := f.svc.VerifyCode(t.Context(), user, user.Email, "345678", model.VerificationTypePasswordReset)
	assert.True(t, result.Success)
}

func TestIssueCodeRejectsUnknownType(t *testing.T) {
	f := newVerificationFixture(t)
	user := testutil.CreateTestUser(t, f.db)

	_, err := f.svc.IssueCode(t.Context(), user, user.Email, "newsletter")
	assert.ErrorIs(t, err, service.ErrUnknownCodeType)
	assert.Empty(t, f.mailer.Messages())
}

func TestIssueCodeKeepsRecordWhenMailFails(t *testing.T) {
	f := newVerificationFixture(t, "424242")
	user := testutil.CreateTestUser(t, f.db, testutil.Inactive)
	f.mailer.Fail(true)

	rec, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeRegistration)
	require.ErrorIs(t, err, service.ErrMailDelivery)
	require.NotNil(t, rec)

	live, err := f.svc.LiveCode(t.Context(), user, user.Email, model.VerificationTypeRegistration)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, live.ID)

	// The undelivered code still verifies.
	result := f.svc.VerifyCode(t.Context(), user, user.Email, "424242", model.VerificationTypeRegistration)
	assert.True(t, result.Success)
}

func TestVerifyCodeSucceedsExactlyOnce(t *testing.T) {
	f := newVerificationFixture(t, "123456")
	user := testutil.CreateTestUser(t, f.db)

	_, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeUsernameRecovery)
	require.NoError(t, err)

	result := f.svc.VerifyCode(t.Context(), user, user.Email, "123456", model.VerificationTypeUsernameRecovery)
	require.True(t, result.Success)
	assert.Equal(t, service.MsgVerified, result.Message)
	assert.True(t, result.Code.IsUsed)

	again := f.svc.VerifyCode(t.Context(), user, user.Email, "123456", model.VerificationTypeUsernameRecovery)
	assert.False(t, again.Success)
	assert.ErrorIs(t, again.Err, service.ErrInvalidCode)
}

func TestVerifyCodeMismatchLeavesLiveRecordUntouched(t *testing.T) {
	f := newVerificationFixture(t, "123456")
	user := testutil.CreateTestUser(t, f.db)

	rec, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeLogin)
	require.NoError(t, err)

	for range 10 {
		result := f.svc.VerifyCode(t.Context(), user, user.Email, "000000", model.VerificationTypeLogin)
		require.False(t, result.Success)
		assert.ErrorIs(t, result.Err, service.ErrInvalidCode)
		assert.Equal(t, service.MsgInvalidCode, result.Message)
	}

	assert.Equal(t, 0, f.record(t, rec.ID).Attempts)

	result := f.svc.VerifyCode(t.Context(), user, user.Email, "123456", model.VerificationTypeLogin)
	assert.True(t, result.Success)
}

func TestVerifyCodeIsScopedToTuple(t *testing.T) {
	f := newVerificationFixture(t, "555555")
	user := testutil.CreateTestUser(t, f.db)
	other := testutil.CreateTestUser(t, f.db)

	_, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypePasswordReset)
	require.NoError(t, err)

	tests := []struct {
		name     string
		user     *model.User
		email    string
		codeType string
	}{
		{"other account", other, user.Email, model.VerificationTypePasswordReset},
		{"other email", user, "someone@example.com", model.VerificationTypePasswordReset},
		{"other type", user, user.Email, model.VerificationTypeUsernameRecovery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.svc.VerifyCode(t.Context(), tt.user, tt.email, "555555", tt.codeType)
			assert.False(t, result.Success)
			assert.ErrorIs(t, result.Err, service.ErrInvalidCode)
		})
	}
}

func TestVerifyCodeExpired(t *testing.T) {
	f := newVerificationFixture(t, "654321")
	user := testutil.CreateTestUser(t, f.db)

	rec, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeRegistration)
	require.NoError(t, err)

	// Valid up to and including the expiry instant.
	f.clock.Set(rec.ExpiresAt.Add(time.Second))

	result := f.svc.VerifyCode(t.Context(), user, user.Email, "654321", model.VerificationTypeRegistration)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, service.ErrExpiredCode)
	assert.Equal(t, service.MsgExpiredCode, result.Message)

	stored := f.record(t, rec.ID)
	assert.Equal(t, 1, stored.Attempts)
	assert.False(t, stored.IsUsed)
}

func TestVerifyCodeAtExpiryInstantSucceeds(t *testing.T) {
	f := newVerificationFixture(t, "777777")
	user := testutil.CreateTestUser(t, f.db)

	rec, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeLogin)
	require.NoError(t, err)

	f.clock.Set(rec.ExpiresAt)
	result := f.svc.VerifyCode(t.Context(), user, user.Email, "777777", model.VerificationTypeLogin)
	assert.True(t, result.Success)
}

func TestVerifyCodeAttemptsExhausted(t *testing.T) {
	f := newVerificationFixture(t, "246810")
	user := testutil.CreateTestUser(t, f.db)

	rec, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypePasswordReset)
	require.NoError(t, err)

	_, err = f.db.Exec(`UPDATE verification_codes SET attempts = 5 WHERE id = $1`, rec.ID)
	require.NoError(t, err)

	result := f.svc.VerifyCode(t.Context(), user, user.Email, "246810", model.VerificationTypePasswordReset)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, service.ErrAttemptsExhausted)
	assert.Equal(t, service.MsgAttemptsExhausted, result.Message)

	// The exhausted record stays until cleanup or reissue.
	stored := f.record(t, rec.ID)
	assert.False(t, stored.IsUsed)
	assert.Equal(t, 6, stored.Attempts)
}

func TestVerifyCodeFourthAttemptStillCounts(t *testing.T) {
	f := newVerificationFixture(t, "135790")
	user := testutil.CreateTestUser(t, f.db)

	rec, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeLogin)
	require.NoError(t, err)

	_, err = f.db.Exec(`UPDATE verification_codes SET attempts = 4 WHERE id = $1`, rec.ID)
	require.NoError(t, err)

	// The increment lands before the check, so the fifth attempt is one too many.
	result := f.svc.VerifyCode(t.Context(), user, user.Email, "135790", model.VerificationTypeLogin)
	assert.ErrorIs(t, result.Err, service.ErrAttemptsExhausted)
}

func TestResendRateLimit(t *testing.T) {
	f := newVerificationFixture(t)
	user := testutil.CreateTestUser(t, f.db, testutil.Inactive)
	ctx := t.Context()
	codeType := model.VerificationTypeRegistration

	for i := range 3 {
		allowed, err := f.svc.ResendAllowed(ctx, user, user.Email, codeType)
		require.NoError(t, err)
		require.True(t, allowed, "issuance %d should be allowed", i+1)

		_, err = f.svc.IssueCode(ctx, user, user.Email, codeType)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	allowed, err := f.svc.ResendAllowed(ctx, user, user.Email, codeType)
	require.NoError(t, err)
	assert.False(t, allowed, "4th issuance within 10 minutes must be denied")
	assert.ErrorIs(t, f.svc.CheckResend(ctx, user, user.Email, codeType), service.ErrRateLimited)

	// Other tuples have their own budget.
	allowed, err = f.svc.ResendAllowed(ctx, user, user.Email, model.VerificationTypeLogin)
	require.NoError(t, err)
	assert.True(t, allowed)

	f.clock.Advance(11 * time.Minute)
	allowed, err = f.svc.ResendAllowed(ctx, user, user.Email, codeType)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.NoError(t, f.svc.CheckResend(ctx, user, user.Email, codeType))
}

func TestSongDeletionCodeSupersedesEarlierRecords(t *testing.T) {
	f := newVerificationFixture(t, "100001", "100002")
	user := testutil.CreateTestUser(t, f.db)
	first := testutil.CreateTestSong(t, f.db, user, "First Light")
	second := testutil.CreateTestSong(t, f.db, user, "Second Wind")
	ctx := t.Context()

	_, err := f.svc.IssueSongDeletionCode(ctx, user, first)
	require.NoError(t, err)
	result := f.svc.VerifyCode(ctx, user, user.Email, "100001", model.VerificationTypeSongDeletion)
	require.True(t, result.Success)

	rec, err := f.svc.IssueSongDeletionCode(ctx, user, second)
	require.NoError(t, err)

	assert.Equal(t, 1, f.countCodes(t, user.ID, model.VerificationTypeSongDeletion))
	assert.Equal(t, "100002", rec.Code)

	msgs := f.mailer.SentTo(user.Email)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Text, "Second Wind")
}

func TestCleanupExpired(t *testing.T) {
	f := newVerificationFixture(t)
	user := testutil.CreateTestUser(t, f.db)
	ctx := t.Context()

	_, err := f.svc.IssueCode(ctx, user, user.Email, model.VerificationTypeLogin)
	require.NoError(t, err)
	_, err = f.svc.IssueCode(ctx, user, user.Email, model.VerificationTypePasswordReset)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	_, err = f.svc.IssueCode(ctx, user, user.Email, model.VerificationTypeUsernameRecovery)
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	removed, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = f.svc.LiveCode(ctx, user, user.Email, model.VerificationTypeUsernameRecovery)
	assert.NoError(t, err)
	_, err = f.svc.LiveCode(ctx, user, user.Email, model.VerificationTypeLogin)
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)

	removed, err = f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestConcurrentVerifyConsumesOnce(t *testing.T) {
	f := newVerificationFixture(t, "909090")
	user := testutil.CreateTestUser(t, f.db)

	_, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeLogin)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan service.VerificationResult, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.svc.VerifyCode(t.Context(), user, user.Email, "909090", model.VerificationTypeLogin)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for r := range results {
		if r.Success {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

func TestConcurrentIssueKeepsOneLiveRecord(t *testing.T) {
	f := newVerificationFixture(t)
	user := testutil.CreateTestUser(t, f.db, testutil.Inactive)

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.IssueCode(t.Context(), user, user.Email, model.VerificationTypeRegistration)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.countCodes(t, user.ID, model.VerificationTypeRegistration))
}
