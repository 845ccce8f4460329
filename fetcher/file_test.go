package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenders.json")
	require.NoError(t, os.WriteFile(path, []byte(samplePayload), 0644))

	f := NewFileFetcher(path, "https://tenders.example", DefaultConfig().DetailURLTemplate, nil)

	records, err := FetchAll(context.Background(), f, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "https://tenders.example/Tender/DetaielsForVisitors?StenderID=101", records[0].SourceURL)

	empty, err := f.Fetch(context.Background(), Page{Number: 5, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFileFetcher_MissingFile(t *testing.T) {
	f := NewFileFetcher(filepath.Join(t.TempDir(), "missing.json"), "", "", nil)
	_, err := f.Fetch(context.Background(), Page{Number: 1, Size: 10})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
