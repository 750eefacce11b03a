package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsZero(t *testing.T) {
	t.Parallel()

	cp, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{}, cp)
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs", "job-1.checkpoint.json")
	want := Checkpoint{
		LastSourceID:   42,
		Processed:      10,
		Succeeded:      8,
		Failed:         2,
		ImagesUploaded: 17,
		ImagesFailed:   1,
	}

	require.NoError(t, Persist(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No temp file should be left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestPersistOverwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cp.json")
	require.NoError(t, Persist(path, Checkpoint{LastSourceID: 1, Processed: 1, Succeeded: 1}))
	require.NoError(t, Persist(path, Checkpoint{LastSourceID: 2, Processed: 2, Succeeded: 1, Failed: 1}))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.LastSourceID)
	assert.Equal(t, got.Processed, got.Succeeded+got.Failed)
}

func TestLoadCorruptFileErrors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cp.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
