package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dom/court-rotation/internal/api"
	"github.com/dom/court-rotation/internal/config"
	"github.com/dom/court-rotation/internal/repository"
	repoPostgres "github.com/dom/court-rotation/internal/repository/postgres"
	"github.com/dom/court-rotation/internal/service"
	"github.com/dom/court-rotation/internal/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a test database, either a testcontainers PostgreSQL
// instance or an SQLite file.
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_court_rotation"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := repoPostgres.Open(dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// NewSQLiteDB opens a migrated SQLite database in the test's temp dir. It
// needs no container and suits service tests.
func NewSQLiteDB(t *testing.T) *TestDB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "court.db") + "?_pragma=foreign_keys(1)"
	db, err := repoPostgres.Open(dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return &TestDB{DB: db, DSN: dsn}
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"scheduled_matches",
		"event_players",
		"events",
		"user_sessions",
		"users",
	}

	for _, table := range tables {
		stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if tdb.Container == nil {
			stmt = fmt.Sprintf("DELETE FROM %s", table)
		}
		if err := tdb.DB.Exec(stmt).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:                      "0", // Random port
		Environment:               "test",
		LogLevel:                  log.WarnLevel,
		JWTSecret:                 "test-jwt-secret-key-for-testing-only",
		JWTExpirationHours:        1,
		CandidatePool:             16,
		SearchBudget:              20000,
		GenerationTimeout:         30 * time.Second,
		DefaultTargetGames:        8,
		DefaultMaxOpponentRepeats: 2,
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *websocket.Hub
	Config   *config.Config
}

// NewTestServer creates a complete test server on a PostgreSQL container
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	return newTestServer(t, NewTestDB(t))
}

// NewSQLiteTestServer is NewTestServer backed by SQLite.
func NewSQLiteTestServer(t *testing.T) *TestServer {
	t.Helper()
	return newTestServer(t, NewSQLiteDB(t))
}

func newTestServer(t *testing.T, testDB *TestDB) *TestServer {
	cfg := TestConfig()

	repos := repoPostgres.NewRepositories(testDB.DB)
	hub := websocket.NewHub(repos.Event)
	go hub.Run()

	services := service.NewServices(repos, cfg)
	services.Event.SetNotifier(hub)
	router := api.NewRouter(services, hub, cfg)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		DB:       testDB,
		Repos:    repos,
		Services: services,
		Hub:      hub,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + ts.Server.URL[4:] // Replace "http" with "ws"
	return fmt.Sprintf("%s/api/v1/ws?token=%s", wsURL, token)
}

// ViewerURL returns the WebSocket URL an anonymous viewer uses to watch an
// event, by id or short code
func (ts *TestServer) ViewerURL(event string) string {
	wsURL := "ws" + ts.Server.URL[4:]
	return fmt.Sprintf("%s/api/v1/ws?event=%s", wsURL, event)
}
