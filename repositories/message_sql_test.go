package repositories

import (
	"chat-relay/contract"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSQLiteRepository(t *testing.T, limit *int) contract.IMessageRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "relay.db")
	repository, err := OpenSQLMessageRepository(context.Background(), SQLite, path, slog.Default(), limit, testMaxTextLength)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func TestSQLite_MessageLog(t *testing.T) {
	runMessageLogSuite(t, newSQLiteRepository)
}

// newMySQLRepository needs a reachable server, the test is skipped otherwise.
func newMySQLRepository(t *testing.T, limit *int) contract.IMessageRepository {
	t.Helper()
	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("Skipping: DB_HOST not set")
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "3306"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), host, port, os.Getenv("DB_NAME"))

	repository, err := OpenSQLMessageRepository(context.Background(), MySQL, dsn, slog.Default(), limit, testMaxTextLength)
	if err != nil {
		t.Skipf("Skipping: could not connect to test database: %v", err)
	}
	_, err = repository.db.Exec("TRUNCATE TABLE messages")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = repository.db.Exec("TRUNCATE TABLE messages")
		_ = repository.Close()
	})
	return repository
}

func TestMySQL_MessageLog(t *testing.T) {
	runMessageLogSuite(t, newMySQLRepository)
}

func TestOpenSQL_UnknownDialect(t *testing.T) {
	_, err := OpenSQLMessageRepository(context.Background(), Dialect("oracle"), "", slog.Default(), nil, 10)
	require.Error(t, err)
}
