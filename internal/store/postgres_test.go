//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Run with: DATABASE_URL=postgres://... go test -tags integration ./internal/store/
func init() {
	if os.Getenv("DATABASE_URL") != "" {
		extraBackends["postgres"] = openPostgres
	}
}

func openPostgres(t *testing.T) DataStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	require.NoError(t, RunMigrations(url))

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.pool.Exec(ctx, `TRUNCATE messages, participants, project_team, rooms, projects, users CASCADE`)
	require.NoError(t, err)
	return s
}
