package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestDiscoverMigrations_Ordered(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
		"README.md":      "ignored",
	})

	migrations, err := DiscoverMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001", migrations[0].Version)
	assert.Equal(t, "002_second.sql", migrations[1].Filename)
	assert.Len(t, migrations[0].Checksum, 64)
	assert.NotEqual(t, migrations[0].Checksum, migrations[1].Checksum)
}

func TestDiscoverMigrations_DuplicateVersion(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"001_a.sql": "SELECT 1;",
		"001_b.sql": "SELECT 2;",
	})
	_, err := DiscoverMigrations(dir)
	assert.ErrorContains(t, err, "duplicate migration version 001")
}

func TestDiscoverMigrations_BadName(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.sql": "SELECT 1;"})
	_, err := DiscoverMigrations(dir)
	assert.ErrorContains(t, err, "invalid migration filename")
}

func TestDiscoverMigrations_RepositorySchema(t *testing.T) {
	migrations, err := DiscoverMigrations("../../migrations")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "001", migrations[0].Version)
}
