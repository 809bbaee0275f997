package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() keeps parallel tests isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it cannot be read as DSN query parameters.
	safeName := url.PathEscape(t.Name())
	// WAL mode does not apply to in-memory databases; omit journal_mode.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	ctx := context.Background()

	writer, err := openPool(ctx, dsn, 1)
	require.NoError(t, err, "open test db writer")

	reader, err := openPool(ctx, dsn, 4)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// steppingClock returns a clock that advances one second per call, so rows
// inserted back to back get distinct, ordered timestamps.
func steppingClock() func() time.Time {
	current := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()

	user, err := NewUserRepo(db).Create(context.Background(), model.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceholderpl",
	})
	require.NoError(t, err)

	return user
}
