// Package xiso extracts Xbox 360 disc images through extract-xiso.
package xiso

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/giwty/x360-tu-manager/db"
	"go.uber.org/zap"
)

const minImageSize = 1000000

var (
	ErrToolNotFound = errors.New("extract-xiso not found in expected location")

	regionSuffixRegex = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ImageResult of one ExtractImages run
type ImageResult struct {
	Found     int
	Extracted int
	Skipped   int
	Failed    map[string]string
}

// Extractor unpacks archives and disc images of a source folder
type Extractor struct {
	toolPath      string
	deleteSources bool
	run           commandRunner
}

// NewExtractor creates an extractor. deleteSources removes every archive and image once it
// has been extracted.
func NewExtractor(toolPath string, deleteSources bool) *Extractor {
	return &Extractor{toolPath: toolPath, deleteSources: deleteSources, run: runCombined}
}

// Check verifies extract-xiso is present and makes it executable when needed
func (e *Extractor) Check() error {
	if e.toolPath == "" {
		return ErrToolNotFound
	}
	info, err := os.Stat(e.toolPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %v", ErrToolNotFound, e.toolPath)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		if err := os.Chmod(e.toolPath, 0755); err != nil {
			return fmt.Errorf("extract-xiso is not executable: %w", err)
		}
	}
	return nil
}

// ExtractImages extracts every .iso directly inside sourceDir into outputDir/<clean name>.
// Images already extracted (folder with files) are skipped.
func (e *Extractor) ExtractImages(ctx context.Context, sourceDir string, outputDir string,
	updateProgress db.ProgressUpdater) (*ImageResult, error) {

	images, err := listByExtension(sourceDir, ".iso")
	if err != nil {
		return nil, err
	}
	result := &ImageResult{Found: len(images), Failed: map[string]string{}}
	if len(images) == 0 {
		zap.S().Info("No ISO files found")
		return result, nil
	}
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, err
	}

	zap.S().Infof("Processing %v ISO file(s)...", len(images))
	for i, image := range images {
		name := filepath.Base(image)
		if updateProgress != nil {
			updateProgress.UpdateProgress(i+1, len(images), name)
		}

		skipped, err := e.extractImage(ctx, image, outputDir)
		if err != nil {
			zap.S().Errorf("[%v/%v] %v - processing error: %v", i+1, len(images), name, err)
			result.Failed[image] = err.Error()
			continue
		}
		if skipped {
			result.Skipped++
		} else {
			result.Extracted++
		}

		if e.deleteSources {
			if err := os.Remove(image); err != nil {
				zap.S().Warnf("Could not remove ISO %v - %v", name, err)
			} else {
				zap.S().Infof("ISO removed: %v", name)
			}
		}
	}

	zap.S().Infof("ISOs processed: %v of %v", result.Extracted+result.Skipped, result.Found)
	return result, nil
}

func (e *Extractor) extractImage(ctx context.Context, image string, outputDir string) (bool, error) {
	originalName := strings.TrimSuffix(filepath.Base(image), filepath.Ext(image))
	cleanName := CleanIsoName(originalName)
	zap.S().Infof("%v -> %v", originalName, cleanName)

	info, err := os.Stat(image)
	if err != nil {
		return false, err
	}
	if info.Size() < minImageSize {
		return false, fmt.Errorf("ISO file appears to be empty or corrupted (%v bytes)", info.Size())
	}

	gameDir := filepath.Join(outputDir, cleanName)
	if _, err := os.Stat(gameDir); err == nil {
		count, _, err := countFiles(gameDir)
		if err != nil {
			return false, err
		}
		if count > 0 {
			zap.S().Infof("Game already processed, skipping: %v", cleanName)
			return true, nil
		}
		zap.S().Infof("Directory exists but empty, re-processing: %v", gameDir)
		if err := os.RemoveAll(gameDir); err != nil {
			return false, err
		}
	}
	if err := os.MkdirAll(gameDir, os.ModePerm); err != nil {
		return false, err
	}

	imagePath, _ := filepath.Abs(image)
	gamePath, _ := filepath.Abs(gameDir)
	zap.S().Debugf("Command: %v -x %v -d %v", e.toolPath, imagePath, gamePath)

	output, err := e.run(ctx, e.toolPath, "-x", imagePath, "-d", gamePath)
	if err != nil {
		_ = os.RemoveAll(gameDir)
		if errors.Is(err, exec.ErrNotFound) {
			return false, ErrToolNotFound
		}
		return false, fmt.Errorf("error executing extract-xiso: %w [output: %v]", err, strings.TrimSpace(string(output)))
	}

	count, size, err := countFiles(gameDir)
	if err != nil {
		return false, err
	}
	if count == 0 {
		_ = os.RemoveAll(gameDir)
		return false, fmt.Errorf("extracted directory is empty")
	}
	zap.S().Infof("Extraction completed: %v files, Size: %v", count, formatSize(size))
	return false, nil
}

// CleanIsoName drops trailing region or language groups such as "(Europe)" from a file name
func CleanIsoName(originalName string) string {
	cleanName := originalName
	for i := 0; i < 2; i++ {
		cleanName = regionSuffixRegex.ReplaceAllString(cleanName, "")
	}
	cleanName = strings.TrimSpace(cleanName)
	if cleanName == "" {
		return originalName
	}
	return cleanName
}

func countFiles(dir string) (int, int64, error) {
	count := 0
	var size int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		count++
		size += info.Size()
		return nil
	})
	return count, size, err
}

func formatSize(size int64) string {
	sizeMb := float64(size) / (1024 * 1024)
	if sizeMb < 1024 {
		return fmt.Sprintf("%.1fM", sizeMb)
	}
	return fmt.Sprintf("%.1fG", sizeMb/1024)
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
