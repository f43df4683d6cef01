package database

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestPoolFromURL exercises the archive pool against a live database.
// Skipped unless TEST_DATABASE_URL is set.
func TestPoolFromURL(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests

	ctx := context.Background()
	pool, err := NewPoolFromURL(ctx, dbURL, nil, logger)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.Health(ctx))

	stats := pool.Stats()
	require.NotZero(t, stats.TotalConns())
}
