package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedHeader struct {
	MediaId string
	TitleId string
}

func TestPersistentDBEntries(t *testing.T) {
	pdb, err := NewPersistentDB(t.TempDir())
	require.NoError(t, err)
	defer pdb.Close()

	var header storedHeader
	found, err := pdb.GetEntry("headers", "halo", &header)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, pdb.AddEntry("headers", "halo", storedHeader{MediaId: "2D2E2EEB", TitleId: "4D5307E6"}))
	found, err = pdb.GetEntry("headers", "halo", &header)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, storedHeader{MediaId: "2D2E2EEB", TitleId: "4D5307E6"}, header)

	require.NoError(t, pdb.ClearTable("headers"))
	found, err = pdb.GetEntry("headers", "halo", &header)
	require.NoError(t, err)
	assert.False(t, found)

	// clearing a missing table is fine
	assert.NoError(t, pdb.ClearTable("headers"))
}

func TestPersistentDBLocked(t *testing.T) {
	folder := t.TempDir()
	pdb, err := NewPersistentDB(folder)
	require.NoError(t, err)
	defer pdb.Close()

	_, err = NewPersistentDB(folder)
	assert.Error(t, err)
}
