package ch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"biblioteca/internal/models"
)

// setupTestDB creates a test ClickHouse instance using testcontainers
func setupTestDB(t *testing.T) (*ClickHouseDB, func()) {
	if testing.Short() {
		t.Skip("skipping ClickHouse container test in short mode")
	}
	ctx := context.Background()

	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	host, err := clickhouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	db, err := NewClickHouseDB(host, port.Int(), "default", "default", "", false)
	require.NoError(t, err, "Failed to connect to ClickHouse")

	require.NoError(t, db.Initialize(ctx), "Failed to create tables")

	cleanup := func() {
		db.Close()
		clickhouseContainer.Terminate(ctx)
	}

	return db, cleanup
}

// TestClickHouseDB_LoginLog tests appending and listing login records
func TestClickHouseDB_LoginLog(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	// Initially should be empty
	records, err := db.ListLogins(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"first", "second", "third"} {
		err := db.AppendLogin(ctx, models.LoginRecord{
			ID:         id,
			UserID:     "u1",
			LoggedAt:   base.Add(time.Duration(i) * time.Minute),
			RemoteAddr: "10.0.0.1",
		})
		require.NoError(t, err)
	}

	// Newest first, limited
	records, err = db.ListLogins(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].ID)
	assert.Equal(t, "second", records[1].ID)
	assert.Equal(t, "u1", records[0].UserID)
	assert.Equal(t, "10.0.0.1", records[0].RemoteAddr)
	assert.WithinDuration(t, base.Add(2*time.Minute), records[0].LoggedAt, time.Second)

	// No limit returns everything
	records, err = db.ListLogins(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

// TestClickHouseDB_InitializeIdempotent tests that Initialize can run twice and records the migration once
func TestClickHouseDB_InitializeIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	assert.NoError(t, db.Initialize(ctx))

	// the schema comes from the embedded goose migration
	var applied uint64
	require.NoError(t, db.conn.QueryRow(ctx,
		"SELECT count() FROM goose_db_version WHERE version_id = 1 AND is_applied").Scan(&applied))
	assert.Equal(t, uint64(1), applied)
}
