package database

import (
	"ideasystemx-go/internal/config"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteEnablesForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ideas.db")
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	defer Close(db)

	var fk int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
	assert.FileExists(t, path)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}
