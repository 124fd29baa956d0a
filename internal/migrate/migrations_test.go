package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagewright/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	applied, latest, err := Status(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Positive(t, latest)

	require.NoError(t, Migrate(ctx, conn))
	require.NoError(t, Migrate(ctx, conn))

	applied, latest, err = Status(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, applied)

	for _, table := range []string{"actors", "api_keys", "pages", "page_versions", "events"} {
		var n int
		require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}
}
