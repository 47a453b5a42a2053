package lists

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/birdalert-go/internal/errors"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "life_list.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadReferenceSet(t *testing.T) {
	path := writeCSV(t, `Row #,Common Name,Scientific Name,Count,Location,Date
1,American Robin,Turdus migratorius,2,Prospect Park,02 Apr 2025
2,Northern Cardinal,Cardinalis cardinalis,1,Prospect Park,01 Apr 2025
3,Mystery bird,,1,Prospect Park,01 Apr 2025
`)

	set, err := LoadReferenceSet(path)
	require.NoError(t, err)

	assert.Len(t, set, 2)
	assert.True(t, set.Contains("Turdus migratorius"))
	assert.True(t, set.Contains("Cardinalis cardinalis"))
	assert.False(t, set.Contains("Passer domesticus"))
	// Matching is exact, not fuzzy
	assert.False(t, set.Contains("turdus migratorius"))
}

func TestLoadReferenceSet_MissingColumn(t *testing.T) {
	path := writeCSV(t, "Common Name,Count\nAmerican Robin,2\n")

	_, err := LoadReferenceSet(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
	assert.Contains(t, err.Error(), "Scientific Name")
}

func TestLoadReferenceSet_MissingFile(t *testing.T) {
	_, err := LoadReferenceSet(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestLoadReferenceSet_RaggedRows(t *testing.T) {
	path := writeCSV(t, "Common Name,Scientific Name,Notes\nHouse Sparrow,Passer domesticus\nShort row\n")

	set, err := LoadReferenceSet(path)
	require.NoError(t, err)
	assert.Len(t, set, 1)
	assert.True(t, set.Contains("Passer domesticus"))
}
