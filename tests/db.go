package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/storage/database"
)

// DatabaseURLEnv names the postgres DSN used by the repository integration tests.
const DatabaseURLEnv = "DOS_TEST_DATABASE_URL"

// PrepareDB migrates a throwaway schema on the test database and drops it when the test ends.
// The test is skipped when DOS_TEST_DATABASE_URL is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", DatabaseURLEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	require.NoError(t, err)
	defer func() { _ = admin.Close() }()

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	db, err := sqlx.ConnectContext(ctx, "postgres", u.String())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
		if admin, err := sqlx.Connect("postgres", dsn); err == nil {
			_, _ = admin.Exec(fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
			_ = admin.Close()
		}
	})

	require.NoError(t, database.Migrate(db.DB, "up"))
	return db
}
