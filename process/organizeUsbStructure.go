package process

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/giwty/x360-tu-manager/db"
	"go.uber.org/zap"
)

const (
	USB_FOLDER_NAME      = "USB_Xbox360"
	CONTENT_FOLDER_NAME  = "Content"
	CACHE_FOLDER_NAME    = "Cache"
	CONTENT_PROFILE_ID   = "0000000000000000"
	TITLE_UPDATE_TYPE_ID = "000B0000"
)

// A title update file resolved to its place in the USB layout
type TitleUpdateFile struct {
	Path     string
	Category Category
	TitleId  string
	GameName string
}

func (f TitleUpdateFile) FileName() string {
	return filepath.Base(f.Path)
}

// LayoutResult of one assembly run
type LayoutResult struct {
	DestRoot string
	Copied   int
	Errors   int
	Failed   map[string]string
}

// LayoutPath returns the path of fileName relative to the layout root, using
// forward slashes so the same value can address the console filesystem.
func LayoutPath(category Category, titleId string, fileName string) string {
	if category == CATEGORY_CACHE {
		return CACHE_FOLDER_NAME + "/" + fileName
	}
	return CONTENT_FOLDER_NAME + "/" + CONTENT_PROFILE_ID + "/" + titleId + "/" + TITLE_UPDATE_TYPE_ID + "/" + fileName
}

// DefaultUsbFolder is where the layout is assembled when no destination is given
func DefaultUsbFolder(tuFolder string) string {
	return filepath.Join(tuFolder, USB_FOLDER_NAME)
}

// AssembleLayout copies every file into its layout path under destRoot. A file that fails
// to copy is recorded and the next one is processed; a later file with the same
// destination overwrites the earlier copy.
func AssembleLayout(files []TitleUpdateFile, destRoot string, updateProgress db.ProgressUpdater) (*LayoutResult, error) {
	result := &LayoutResult{DestRoot: destRoot, Failed: map[string]string{}}

	zap.S().Infof("Starting USB structure preparation, destination folder: %v", destRoot)
	if err := os.MkdirAll(filepath.Join(destRoot, CONTENT_FOLDER_NAME, CONTENT_PROFILE_ID), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create USB structure in %v: %w", destRoot, err)
	}

	for i, file := range files {
		if updateProgress != nil {
			updateProgress.UpdateProgress(i+1, len(files), file.FileName())
		}
		if file.Category == CATEGORY_CONTENT && file.TitleId == "" {
			zap.S().Warnf("--> [Skip] %v has no TitleID", file.Path)
			result.Errors++
			result.Failed[file.Path] = "missing TitleID"
			continue
		}

		to := filepath.Join(destRoot, filepath.FromSlash(LayoutPath(file.Category, file.TitleId, file.FileName())))
		zap.S().Infof("Processing TU for '%v' (TitleID: %v)", file.GameName, file.TitleId)
		if err := copyFile(file.Path, to); err != nil {
			zap.S().Errorf("Failed to copy %v [%v]", file.Path, err)
			result.Errors++
			result.Failed[file.Path] = err.Error()
			continue
		}
		result.Copied++
	}

	zap.S().Infof("USB preparation completed [folder: %v, TUs processed: %v, errors: %v]",
		destRoot, result.Copied, result.Errors)
	return result, nil
}

// copyFile copies from into to, keeping the source modification time
func copyFile(from string, to string) error {
	source, err := os.Open(from)
	if err != nil {
		return err
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(to), os.ModePerm); err != nil {
		return err
	}

	dest, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, source); err != nil {
		_ = dest.Close()
		return err
	}
	if err := dest.Close(); err != nil {
		return err
	}
	return os.Chtimes(to, info.ModTime(), info.ModTime())
}
