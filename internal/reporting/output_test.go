package reporting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"csv", "markdown", "json"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	r := fixedGenerator(nil).Build(RunInfo{RunID: "r1"}, sampleTable(), nil)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, WriteFile(csvPath, r, FormatCSV))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "instrument,mid_price_return,ob_pressure_5")

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, WriteFile(jsonPath, r, FormatJSON))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	_, err = Render(r, Format("xml"))
	assert.Error(t, err)
}
