package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmasOnEveryConnection(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "pragmas.db"))
	require.NoError(t, err)
	defer database.Close()

	database.SetMaxOpenConns(3)
	for i := 0; i < 3; i++ {
		var fk int
		require.NoError(t, database.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
		assert.Equal(t, 1, fk, "foreign_keys")
	}

	var mode string
	require.NoError(t, database.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenMemorySharesOneConnection(t *testing.T) {
	database, err := Open(":memory:")
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO t (v) VALUES (1)`)
	require.NoError(t, err)

	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 1, count)
}
