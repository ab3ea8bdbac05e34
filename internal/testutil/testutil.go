// Package testutil builds throwaway databases, apps and fixtures for tests.
package testutil

import (
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/app"
	"github.com/spado/songcontest/internal/config"
	"github.com/spado/songcontest/internal/db"
	"github.com/spado/songcontest/internal/routes"
)

// Epoch is the start time of every test clock. Whole seconds keep sqlite's
// textual timestamps comparable.
var Epoch = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// SetupTestDB opens a fresh sqlite database in a temp dir and migrates it.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "songcontest.db")
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_txlock=immediate"

	database, err := db.Init("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	err = db.RunMigrations(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return database
}

// GetTestConfig returns a development config that needs no environment.
func GetTestConfig() *config.Config {
	return &config.Config{
		AppName:      "AI Song Contest",
		AppEnv:       "development",
		AppURL:       "http://localhost:8090",
		Port:         "8090",
		SupportEmail: "hello@example.com",
		ContentPath:  contentPath(),

		DBDriver: "sqlite",

		JWTSecret:       "test-secret-with-enough-entropy",
		JWTExpiry:       time.Hour,
		FlowStateExpiry: 30 * time.Minute,
		TrustedProxies:  []string{"192.0.2.0/24"}, // httptest's RemoteAddr, so Client.IP is honoured

		VerificationCodeTTL:      15 * time.Minute,
		VerificationMaxAttempts:  5,
		VerificationResendLimit:  3,
		VerificationResendWindow: 10 * time.Minute,
		CleanupSchedule:          "@every 15m",

		PhaseJudgingDuration: 7 * 24 * time.Hour,
		PhaseWinnersDuration: 30 * 24 * time.Hour,

		MailDriver: config.MailDriverLog,
		EmailFrom:  "noreply@example.com",

		MetricsEnabled: false,

		UploadMaxAudioMB: 50,
	}
}

// contentPath points at the repository's content directory regardless of
// the package the test runs in.
func contentPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "content")
}

// Env is an assembled app backed by test doubles.
type Env struct {
	App     *app.App
	DB      *sqlx.DB
	Mailer  *RecordingMailer
	Storage *MemoryStorage
	Clock   *Clock
	Handler http.Handler
}

// NewEnv assembles the full app on a fresh database. cfgFn may adjust the
// config before assembly.
func NewEnv(t *testing.T, cfgFn func(*config.Config)) *Env {
	t.Helper()

	cfg := GetTestConfig()
	if cfgFn != nil {
		cfgFn(cfg)
	}

	env := &Env{
		DB:      SetupTestDB(t),
		Mailer:  NewRecordingMailer(),
		Storage: NewMemoryStorage(),
		Clock:   NewClock(Epoch),
	}

	a, err := app.Assemble(cfg, app.Deps{
		DB:      env.DB,
		Storage: env.Storage,
		Mailer:  env.Mailer,
		Clock:   env.Clock.Now,
	})
	if err != nil {
		t.Fatalf("Failed to assemble app: %v", err)
	}

	env.App = a
	env.Handler = routes.SetupRoutes(a)
	return env
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

func uniqueName(prefix string) string {
	nameMu.Lock()
	defer nameMu.Unlock()
	nameSeq++
	return fmt.Sprintf("%s%d", prefix, nameSeq)
}

var (
	nameMu  sync.Mutex
	nameSeq int
)
