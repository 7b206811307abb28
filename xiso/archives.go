package xiso

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// ArchiveResult of one ExtractArchives run
type ArchiveResult struct {
	Found     int
	Extracted int
	Failed    map[string]string
}

// ExtractArchives unpacks every .zip directly inside sourceDir into sourceDir. An archive is
// read completely before anything is written so a damaged one leaves no files behind.
func (e *Extractor) ExtractArchives(sourceDir string) (*ArchiveResult, error) {
	archives, err := listByExtension(sourceDir, ".zip")
	if err != nil {
		return nil, err
	}

	result := &ArchiveResult{Found: len(archives), Failed: map[string]string{}}
	if len(archives) == 0 {
		zap.S().Info("No ZIP files found")
		return result, nil
	}

	zap.S().Infof("Extracting %v ZIP file(s)...", len(archives))
	for _, archive := range archives {
		name := filepath.Base(archive)
		zap.S().Infof("Extracting: %v", name)

		if err := verifyArchive(archive); err != nil {
			zap.S().Errorf("Error extracting %v - corrupt archive: %v", name, err)
			result.Failed[archive] = err.Error()
			continue
		}
		if err := unzip(archive, sourceDir); err != nil {
			zap.S().Errorf("Error extracting %v - %v", name, err)
			result.Failed[archive] = err.Error()
			continue
		}
		result.Extracted++

		if e.deleteSources {
			if err := os.Remove(archive); err != nil {
				zap.S().Warnf("Could not remove ZIP %v - %v", name, err)
			} else {
				zap.S().Infof("Removed ZIP: %v", name)
			}
		}
	}

	zap.S().Infof("ZIPs extracted: %v of %v", result.Extracted, result.Found)
	return result, nil
}

// verifyArchive reads every entry, the reader checks each CRC at the end of the entry
func verifyArchive(archive string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("%v: %w", file.Name, err)
		}
		_, err = io.Copy(io.Discard, rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("%v: %w", file.Name, err)
		}
	}
	return nil
}

func unzip(archive string, destDir string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer reader.Close()

	root := filepath.Clean(destDir)
	for _, file := range reader.File {
		target := filepath.Join(root, filepath.FromSlash(file.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in archive: %v", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, os.ModePerm); err != nil {
				return err
			}
			continue
		}
		if err := writeEntry(file, target); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return err
	}
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// listByExtension returns the files directly inside dir with the given extension, any case
func listByExtension(dir string, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			result = append(result, filepath.Join(dir, entry.Name()))
		}
	}
	return result, nil
}
