package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sheetsdb/pkg/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
backend = "sheets"
spreadsheet_id = "abc123"
value_input = "USER_ENTERED"

[limits]
requests_per_minute = 30
max_backoff = "10s"

[[tables]]
name = "People"
sheet_name = "Лист1"
start_row = 2

[[tables.fields]]
name = "id"
primary_key = true

[[tables.fields]]
name = "first_name"

[[tables.fields]]
name = "age"
type = "int"
order = 5
default = 18
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheetsdb.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewWritesDefaults(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	path := filepath.Join(t.TempDir(), "sheetsdb.toml")

	c, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, c.Store.Backend)
	assert.Equal(t, defaultSQLitePath, c.Store.SQLitePath)
	assert.Equal(t, defaultRequestsPerMinute, c.Store.Limits.RequestsPerMinute)
	assert.FileExists(t, path)

	// The written file loads back to the same settings.
	again, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, c.Store.Backend, again.Store.Backend)
	assert.Equal(t, c.Store.Limits, again.Store.Limits)
	assert.Empty(t, again.Store.Tables)
}

func TestLoadSample(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	c, err := New(writeFile(t, sample))
	require.NoError(t, err)

	assert.Equal(t, BackendSheets, c.Store.Backend)
	assert.Equal(t, "abc123", c.Store.SpreadsheetID)
	assert.Equal(t, 30, c.Store.Limits.RequestsPerMinute)
	assert.Equal(t, defaultMaxRetries, c.Store.Limits.MaxRetries)
	backoff, err := c.Store.Limits.Backoff()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, backoff)

	tc, ok := c.Table("People")
	require.True(t, ok)
	assert.Equal(t, "Лист1", tc.SheetName)
	assert.Equal(t, 2, tc.StartRow)
	_, ok = c.Table("Nope")
	assert.False(t, ok)

	decls, err := tc.Declarations()
	require.NoError(t, err)
	require.Len(t, decls, 3)
	assert.Equal(t, schema.TypeInt, decls[0].Type)
	assert.True(t, decls[0].PrimaryKey)
	assert.Equal(t, schema.TypeText, decls[1].Type)
	assert.Equal(t, 5, decls[2].OrderNumber)
	assert.EqualValues(t, 18, decls[2].Default)

	s, err := schema.Resolve(tc.Name, decls)
	require.NoError(t, err)
	assert.Equal(t, 5, s.LastColumnNumber())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "from-env")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/tmp/key.json")
	c, err := New(writeFile(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Store.SpreadsheetID)
	assert.Equal(t, "/tmp/key.json", c.Store.CredentialsFile)
}

func TestValidate(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown backend", `backend = "excel"`, "unknown backend"},
		{"sheets without id", `backend = "sheets"`, "needs spreadsheet_id"},
		{"bad value input", `value_input = "FORMULA"`, "unknown value_input"},
		{"bad backoff", "[limits]\nmax_backoff = \"soon\"", "max_backoff"},
		{"table without fields", "[[tables]]\nname = \"T\"", "no fields"},
		{"bad field type", "[[tables]]\nname = \"T\"\n[[tables.fields]]\nname = \"a\"\ntype = \"date\"", "unknown field type"},
		{"duplicate table", "[[tables]]\nname = \"T\"\n[[tables.fields]]\nname = \"a\"\n[[tables]]\nname = \"T\"\n[[tables.fields]]\nname = \"a\"", "declared twice"},
		{"malformed", `backend = `, "load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
