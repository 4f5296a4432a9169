package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMigrations(t *testing.T) {
	dir := t.TempDir()

	files := []string{
		"002_create_barcode_scans.sql",
		"001_create_recordings.sql",
		"004_create_visitor_badges.sql",
		"003_create_speaker_segments.sql",
		"README.md", // not a migration
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0644))
	}

	migrations, err := findMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 4)

	// Version-prefix ordering regardless of directory order.
	versions := make([]string, len(migrations))
	for i, m := range migrations {
		versions[i] = m.Version
	}
	assert.Equal(t, []string{
		"001_create_recordings",
		"002_create_barcode_scans",
		"003_create_speaker_segments",
		"004_create_visitor_badges",
	}, versions)

	assert.Equal(t, "001_create_recordings.sql", migrations[0].Name)
	assert.Equal(t, filepath.Join(dir, "001_create_recordings.sql"), migrations[0].Path)
}

func TestFindMigrationsEmptyDir(t *testing.T) {
	migrations, err := findMigrations(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestFindMigrationsMissingDir(t *testing.T) {
	_, err := findMigrations("/nonexistent/path/to/migrations")
	require.Error(t, err)
}

func TestRunMigrationsNilPool(t *testing.T) {
	_, err := RunMigrations(context.Background(), nil, t.TempDir())
	require.Error(t, err)
}

func TestGetPendingMigrationsNilPool(t *testing.T) {
	_, err := GetPendingMigrations(context.Background(), nil, t.TempDir())
	require.Error(t, err)
}
