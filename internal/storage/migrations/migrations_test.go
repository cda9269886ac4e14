package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	script := `-- feature tables
CREATE TABLE a (x String DEFAULT 'a;b');

-- second
CREATE TABLE b (y UInt8);
`
	stmts := splitStatements(script)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "'a;b'")
	assert.Equal(t, "CREATE TABLE b (y UInt8)", stmts[1])
}

func TestSplitStatements_EscapedQuote(t *testing.T) {
	stmts := splitStatements("SELECT 'it''s;fine'; SELECT 2")
	assert.Equal(t, []string{"SELECT 'it''s;fine'", "SELECT 2"}, stmts)
}

func TestLoad_OrdersAndSkipsEmpty(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":  {Data: []byte("SELECT 2;")},
		"m/001_a.sql":  {Data: []byte("SELECT 1;")},
		"m/003_c.sql":  {Data: []byte("  \n")},
		"m/readme.txt": {Data: []byte("ignored")},
	}

	files, err := load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "001_a.sql", files[0].name)
	assert.Equal(t, "002_b.sql", files[1].name)
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := load(postgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Contains(t, pg[0].sql, "book_snapshots")

	ch, err := load(clickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	assert.Len(t, splitStatements(ch[0].sql), 2)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://u:p@localhost:9000/features")
	require.NoError(t, err)
	assert.Equal(t, "features", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
