package db

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsOrdersAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_indexes.sql": {Data: []byte("CREATE INDEX x ON t (a);")},
		"m/002_tables.sql":  {Data: []byte("CREATE TABLE t (a int);")},
		"m/README.md":       {Data: []byte("docs")},
		"m/draft.sql":       {Data: []byte("SELECT 1;")},
		"m/abc_notes.sql":   {Data: []byte("SELECT 2;")},
	}

	got, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Version)
	assert.Equal(t, "002_tables.sql", got[0].Name)
	assert.Equal(t, 10, got[1].Version)
}

func TestLoadMigrationsRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_a.sql":  {Data: []byte("SELECT 1;")},
		"m/0001_b.sql": {Data: []byte("SELECT 2;")},
	}

	_, err := LoadMigrations(fsys, "m")
	assert.ErrorContains(t, err, "share version 1")
}

func TestEmbeddedSchemaGuardsDoubleBooking(t *testing.T) {
	got, err := LoadMigrations(embedded, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 1, got[0].Version)

	var all strings.Builder
	for _, m := range got {
		all.WriteString(m.SQL)
	}
	schema := all.String()
	assert.Contains(t, schema, "ON appointments (doctor_id, appointment_date)")
	assert.Contains(t, schema, "WHERE status <> 'cancelled'")
}
