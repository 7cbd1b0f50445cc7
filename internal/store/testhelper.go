package store

import (
	"fmt"
	"os"
	"testing"

	"voice-server/internal/observability"

	"github.com/jmoiron/sqlx"
)

// TestDB wraps a test database instance
type TestDB struct {
	db     *sqlx.DB
	logger *observability.Logger
	Store  Store
}

// SetupTestDB connects to the PostgreSQL instance described by the TEST_DB_*
// environment variables. Tests are skipped when no database is reachable so
// the suite stays runnable without infrastructure.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbHost := envOr("TEST_DB_HOST", "localhost")
	dbPort := envOr("TEST_DB_PORT", "5432")
	dbUser := envOr("TEST_DB_USER", "voice_user")
	dbPass := envOr("TEST_DB_PASSWORD", "voice_password")
	dbName := envOr("TEST_DB_NAME", "voice_db")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPass, dbHost, dbPort, dbName)

	db, err := sqlx.Open("pgx", connStr)
	if err != nil {
		t.Skipf("skipping: failed to open test database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: test database not reachable: %v", err)
	}

	logger := observability.NewLogger()
	return &TestDB{
		db:     db,
		logger: logger,
		Store:  Store{db: db, logger: logger},
	}
}

// Truncate clears all rows between test cases.
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()
	if _, err := tdb.db.Exec("TRUNCATE call_recordings"); err != nil {
		t.Fatalf("failed to truncate call_recordings: %v", err)
	}
}

// Close releases the underlying connection.
func (tdb *TestDB) Close() {
	tdb.db.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
