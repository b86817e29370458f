package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, s *SQLiteStorage, name string) bool {
	t.Helper()
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, storage.db))

	var rows int
	require.NoError(t, storage.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows))
	assert.Equal(t, len(AllMigrations), rows)

	version, err := currentSchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestRollbackMigration(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	require.True(t, tableExists(t, storage, "renderable_product"))

	require.NoError(t, RollbackMigration(ctx, storage.db))
	assert.False(t, tableExists(t, storage, "renderable_product"))
	assert.False(t, tableExists(t, storage, "vanity"))
	assert.True(t, tableExists(t, storage, "product"))

	version, err := currentSchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version.String())

	// Re-applying brings the schema back to current
	require.NoError(t, ApplyMigrations(ctx, storage.db))
	assert.True(t, tableExists(t, storage, "renderable_product"))

	version, err = currentSchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}
