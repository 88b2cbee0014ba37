package database

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	assert.Contains(t, names, "000001_scan_ledger.up.sql")
	assert.Contains(t, names, "000001_scan_ledger.down.sql")
	assert.Zero(t, len(names)%2, "every up migration needs a down migration")
}

func TestNewPool_BadURL(t *testing.T) {
	_, err := NewPool(context.Background(), Config{URL: "://not-a-url"})
	assert.ErrorContains(t, err, "parse ledger url")
}

func TestPingPolicy(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, backoff.Stop, pingPolicy(ctx, 0).NextBackOff())
	assert.NotEqual(t, backoff.Stop, pingPolicy(ctx, time.Second).NextBackOff())
}
