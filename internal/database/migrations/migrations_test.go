package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaDir = "../../../migrations"

func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := os.ReadDir(schemaDir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestSchemaKeepsTicketNumbersUnique(t *testing.T) {
	sql, err := os.ReadFile(filepath.Join(schemaDir, "000001_init_schema.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(sql), "CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_number ON tickets (number)")
	assert.Contains(t, string(sql), "UNIQUE (queue_id, date)")
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "./migrations", opts.MigrationsDir)
	assert.True(t, opts.AutoMigrate)
}
