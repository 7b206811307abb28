// Package transfer pushes title updates to a console over FTP.
package transfer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/giwty/x360-tu-manager/db"
	"github.com/giwty/x360-tu-manager/process"
	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"
)

const (
	MODE_MIRROR     = "mirror"
	MODE_INDIVIDUAL = "individual"

	connectionTimeout = 30 * time.Second
)

// Conn is the part of an FTP session the uploader needs
type Conn interface {
	ChangeDir(path string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

// Dial opens an FTP session and logs in
func Dial(address string, user string, password string) (Conn, error) {
	conn, err := ftp.Dial(address, ftp.DialWithTimeout(connectionTimeout))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to console at %v: %w", address, err)
	}
	if err := conn.Login(user, password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("FTP login as %v failed: %w", user, err)
	}
	zap.S().Infof("Connected to console FTP at %v as %v", address, user)
	return conn, nil
}

// TestConnection checks the session can reach the remote root
func TestConnection(conn Conn, remoteRoot string) error {
	if err := conn.ChangeDir(remoteRoot); err != nil {
		return fmt.Errorf("remote folder %v is not reachable: %w", remoteRoot, err)
	}
	return nil
}

// Totals of one upload session
type UploadResult struct {
	Mode      string
	Uploaded  int
	Skipped   int
	Errors    int
	Failed    map[string]string
	Unmatched []string
}

// Uploader mirrors local title updates under a fixed remote root
type Uploader struct {
	conn       Conn
	remoteRoot string
	games      []db.GameRecord
	knownDirs  map[string]bool
}

// NewUploader creates an uploader over an open session. games resolve the TitleID of
// cache-style names when files are placed one by one.
func NewUploader(conn Conn, remoteRoot string, games []db.GameRecord) *Uploader {
	remoteRoot = "/" + strings.Trim(strings.ReplaceAll(remoteRoot, "\\", "/"), "/")
	return &Uploader{conn: conn, remoteRoot: remoteRoot, games: games, knownDirs: map[string]bool{}}
}

// DetectMode reports whether localRoot is an assembled layout or a folder of loose updates
func DetectMode(localRoot string) string {
	for _, name := range []string{process.CONTENT_FOLDER_NAME, process.CACHE_FOLDER_NAME} {
		if info, err := os.Stat(filepath.Join(localRoot, name)); err == nil && info.IsDir() {
			return MODE_MIRROR
		}
	}
	return MODE_INDIVIDUAL
}

// Upload sends every file under localRoot. A file that fails is logged and counted, the
// session carries on with the next one.
func (u *Uploader) Upload(localRoot string, updateProgress db.ProgressUpdater) (*UploadResult, error) {
	result := &UploadResult{Mode: DetectMode(localRoot), Failed: map[string]string{}}

	files, err := listFiles(localRoot)
	if err != nil {
		return nil, fmt.Errorf("failed reading %v: %w", localRoot, err)
	}
	zap.S().Infof("Uploading %v files from %v to %v [mode: %v]", len(files), localRoot, u.remoteRoot, result.Mode)

	var transferProgress db.TransferProgressUpdater
	if updateProgress != nil {
		transferProgress, _ = updateProgress.(db.TransferProgressUpdater)
	}

	for i, file := range files {
		rel, _ := filepath.Rel(localRoot, file)
		if updateProgress != nil {
			updateProgress.UpdateProgress(i+1, len(files), rel)
		}

		remotePath, ok := u.remotePath(result, localRoot, file)
		if !ok {
			continue
		}

		if err := u.uploadFile(file, remotePath, transferProgress); err != nil {
			zap.S().Errorf("Failed to upload %v [%v]", rel, err)
			result.Errors++
			result.Failed[file] = err.Error()
			continue
		}
		zap.S().Infof("--> [Upload] %v -> %v", rel, remotePath)
		result.Uploaded++
	}

	zap.S().Infof("Upload completed [uploaded: %v, skipped: %v, errors: %v]", result.Uploaded, result.Skipped, result.Errors)
	return result, nil
}

func (u *Uploader) remotePath(result *UploadResult, localRoot string, file string) (string, bool) {
	if result.Mode == MODE_MIRROR {
		rel, err := filepath.Rel(localRoot, file)
		if err != nil {
			result.Errors++
			result.Failed[file] = err.Error()
			return "", false
		}
		return path.Join(u.remoteRoot, filepath.ToSlash(rel)), true
	}

	fileName := filepath.Base(file)
	classification := process.ClassifyTitleUpdate(fileName, u.games)
	if !classification.IsTitleUpdate {
		zap.S().Debugf("skipping %v, not a title update", fileName)
		result.Skipped++
		return "", false
	}
	if classification.Category == process.CATEGORY_CONTENT && classification.TitleId == "" {
		zap.S().Infof("--> [Unmatched] TU found but unmatched: %v", file)
		result.Unmatched = append(result.Unmatched, file)
		result.Skipped++
		return "", false
	}
	return path.Join(u.remoteRoot, process.LayoutPath(classification.Category, classification.TitleId, fileName)), true
}

func (u *Uploader) uploadFile(localPath string, remotePath string, transferProgress db.TransferProgressUpdater) error {
	if err := u.ensureDir(path.Dir(remotePath)); err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	var reader io.Reader = file
	if transferProgress != nil {
		info, err := file.Stat()
		if err != nil {
			return err
		}
		reader = &progressReader{r: file, name: path.Base(remotePath), total: info.Size(), updater: transferProgress}
	}
	return u.conn.Stor(remotePath, reader)
}

// ensureDir enters every level of dir, creating the ones the console does not have yet
func (u *Uploader) ensureDir(dir string) error {
	if u.knownDirs[dir] {
		return nil
	}

	current := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		if u.knownDirs[current] {
			continue
		}
		target := current
		err := retry.Do(
			func() error {
				return u.conn.ChangeDir(target)
			},
			retry.Attempts(2),
			retry.Delay(0),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				if n > 0 {
					return
				}
				zap.S().Debugf("creating remote folder %v", target)
				if mkErr := u.conn.MakeDir(target); mkErr != nil {
					zap.S().Debugf("MKD %v failed - %v", target, mkErr)
				}
			}),
		)
		if err != nil {
			return fmt.Errorf("cannot create remote folder %v: %w", target, err)
		}
		u.knownDirs[target] = true
	}
	u.knownDirs[dir] = true
	return nil
}

func listFiles(root string) ([]string, error) {
	var result []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == db.UPDATE_MAPPING_FILENAME || strings.HasSuffix(d.Name(), ".part") {
			return nil
		}
		result = append(result, path)
		return nil
	})
	return result, err
}

type progressReader struct {
	r       io.Reader
	name    string
	done    int64
	total   int64
	updater db.TransferProgressUpdater
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.updater.UpdateTransfer(p.name, p.done, p.total)
	}
	return n, err
}
