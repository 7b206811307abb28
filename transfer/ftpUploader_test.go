package transfer

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giwty/x360-tu-manager/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn keeps an in-memory remote filesystem
type fakeConn struct {
	dirs     map[string]bool
	files    map[string]string
	failStor map[string]bool
	mkdirs   []string
	cwd      string
}

func newFakeConn(existing ...string) *fakeConn {
	conn := &fakeConn{dirs: map[string]bool{"/": true}, files: map[string]string{}, failStor: map[string]bool{}}
	for _, dir := range existing {
		conn.dirs[dir] = true
	}
	return conn
}

func (f *fakeConn) ChangeDir(path string) error {
	if !f.dirs[path] {
		return errors.New("550 no such directory")
	}
	f.cwd = path
	return nil
}

func (f *fakeConn) MakeDir(path string) error {
	f.mkdirs = append(f.mkdirs, path)
	f.dirs[path] = true
	return nil
}

func (f *fakeConn) Stor(path string, r io.Reader) error {
	if f.failStor[path] {
		return errors.New("426 transfer aborted")
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.files[path] = string(content)
	return nil
}

func (f *fakeConn) Quit() error {
	return nil
}

type recordingProgress struct {
	steps     int
	transfers map[string]int64
}

func (r *recordingProgress) UpdateProgress(curr int, total int, message string) {
	r.steps++
}

func (r *recordingProgress) UpdateTransfer(name string, done int64, total int64) {
	if r.transfers == nil {
		r.transfers = map[string]int64{}
	}
	r.transfers[name] = done
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestUploadMirror(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Content", "0000000000000000", "5841109F", "000B0000", "5841109F_2.tu"), "content")
	writeFile(t, filepath.Join(root, "Cache", "TU_16L61V6_X.bin"), "cache")

	conn := newFakeConn("/Hdd1", "/Hdd1/Content")
	progress := &recordingProgress{}
	result, err := NewUploader(conn, "/Hdd1/", nil).Upload(root, progress)
	require.NoError(t, err)

	assert.Equal(t, MODE_MIRROR, result.Mode)
	assert.Equal(t, 2, result.Uploaded)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, map[string]string{
		"/Hdd1/Content/0000000000000000/5841109F/000B0000/5841109F_2.tu": "content",
		"/Hdd1/Cache/TU_16L61V6_X.bin":                                   "cache",
	}, conn.files)
	assert.ElementsMatch(t, []string{
		"/Hdd1/Cache",
		"/Hdd1/Content/0000000000000000",
		"/Hdd1/Content/0000000000000000/5841109F",
		"/Hdd1/Content/0000000000000000/5841109F/000B0000",
	}, conn.mkdirs)
	assert.Equal(t, 2, progress.steps)
	assert.Equal(t, int64(7), progress.transfers["5841109F_2.tu"])
}

func TestUploadIndividual(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Halo_3", "4D5307E6_5.tu"), "a")
	writeFile(t, filepath.Join(root, "Halo_3", "TU_10K34D_4D5307E6.bin"), "b")
	writeFile(t, filepath.Join(root, "tu00000002_00000000"), "c")
	writeFile(t, filepath.Join(root, "update.tu"), "d")
	writeFile(t, filepath.Join(root, "notes.txt"), "e")
	writeFile(t, filepath.Join(root, db.UPDATE_MAPPING_FILENAME), "4D5307E6_5.tu=4D5307E6=Halo 3\n")

	conn := newFakeConn("/Hdd1")
	games := []db.GameRecord{{Name: "Halo 3", TitleId: "4D5307E6"}}
	result, err := NewUploader(conn, "/Hdd1", games).Upload(root, nil)
	require.NoError(t, err)

	assert.Equal(t, MODE_INDIVIDUAL, result.Mode)
	assert.Equal(t, 3, result.Uploaded)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []string{filepath.Join(root, "update.tu")}, result.Unmatched)
	assert.Equal(t, map[string]string{
		"/Hdd1/Content/0000000000000000/4D5307E6/000B0000/4D5307E6_5.tu":      "a",
		"/Hdd1/Cache/TU_10K34D_4D5307E6.bin":                                  "b",
		"/Hdd1/Content/0000000000000000/00000002/000B0000/tu00000002_00000000": "c",
	}, conn.files)
}

func TestUploadContinuesAfterFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cache", "TU_AAAAAAA_X.bin"), "1")
	writeFile(t, filepath.Join(root, "Cache", "TU_BBBBBBB_X.bin"), "2")
	writeFile(t, filepath.Join(root, "Cache", "TU_CCCCCCC_X.bin"), "3")

	conn := newFakeConn("/Hdd1")
	conn.failStor["/Hdd1/Cache/TU_BBBBBBB_X.bin"] = true

	result, err := NewUploader(conn, "/Hdd1", nil).Upload(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Uploaded)
	assert.Equal(t, 1, result.Errors)
	assert.Contains(t, result.Failed, filepath.Join(root, "Cache", "TU_BBBBBBB_X.bin"))
	assert.Len(t, conn.files, 2)
}

type readOnlyConn struct {
	*fakeConn
}

func (r readOnlyConn) MakeDir(path string) error {
	return errors.New("550 permission denied")
}

func TestUploadRemoteFolderCannotBeCreated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cache", "TU_AAAAAAA_X.bin"), "1")

	result, err := NewUploader(readOnlyConn{newFakeConn("/Hdd1")}, "/Hdd1", nil).Upload(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Uploaded)
	assert.Equal(t, 1, result.Errors)
	for _, reason := range result.Failed {
		assert.True(t, strings.Contains(reason, "/Hdd1/Cache"), reason)
	}
}

func TestDetectMode(t *testing.T) {
	layout := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(layout, "Cache"), 0755))
	assert.Equal(t, MODE_MIRROR, DetectMode(layout))

	loose := t.TempDir()
	writeFile(t, filepath.Join(loose, "Content"), "a file, not a folder")
	assert.Equal(t, MODE_INDIVIDUAL, DetectMode(loose))
}

func TestTestConnection(t *testing.T) {
	conn := newFakeConn("/Hdd1")
	assert.NoError(t, TestConnection(conn, "/Hdd1"))
	assert.Error(t, TestConnection(conn, "/Usb0"))
}
