package database

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trajectory-animator/internal/config"
	"github.com/OCAP2/trajectory-animator/internal/model"
)

func TestManager_ConnectSqliteFile(t *testing.T) {
	var logs bytes.Buffer
	m := NewManager(zerolog.New(&logs))

	path := filepath.Join(t.TempDir(), "trajectories.db")
	err := m.Connect(config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: path}}, config.DBConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	for _, tbl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(tbl), "%T not migrated", tbl)
	}
	assert.FileExists(t, path)
	assert.Contains(t, logs.String(), "Database setup complete")
}

func TestManager_ConnectMemory(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(config.StorageConfig{Type: "sqlite"}, config.DBConfig{}))
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.DB.Create(&model.Body{Name: "Earth"}).Error)

	var n int64
	require.NoError(t, m.DB.Model(&model.Body{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestManager_UnknownType(t *testing.T) {
	m := NewManager(zerolog.Nop())
	err := m.Connect(config.StorageConfig{Type: "cassandra"}, config.DBConfig{})
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestManager_CloseWithoutConnect(t *testing.T) {
	assert.NoError(t, NewManager(zerolog.Nop()).Close())
}

func TestOpenSqlite_MemoryDatabasesAreIsolated(t *testing.T) {
	a, err := OpenSqlite("")
	require.NoError(t, err)
	b, err := OpenSqlite("")
	require.NoError(t, err)

	require.NoError(t, Migrate(a))
	assert.False(t, b.Migrator().HasTable(&model.Body{}))
}
