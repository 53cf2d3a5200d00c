package mysql

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafscan/internal/infra/db/dbtest"
)

func TestSessionRepository(t *testing.T) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(db)
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Check(ctx))

	dbtest.RunRepositoryTests(t, repo)
}

func TestStringOrDash(t *testing.T) {
	require.Equal(t, "-", stringOrDash("  "))
	require.Equal(t, "mango", stringOrDash("mango"))
}
