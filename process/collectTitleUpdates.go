package process

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/giwty/x360-tu-manager/db"
	"go.uber.org/zap"
)

// Title update files found under a folder
type TitleUpdateCollection struct {
	Files           []TitleUpdateFile
	Unmatched       []string
	NonTitleUpdates int
}

// CollectTitleUpdates walks folder and classifies every file. Files the classifier cannot
// bind to a TitleID fall back to the mapping sidecars found in the tree; whatever is still
// unresolved is reported as unmatched and left out. The USB output folder is not walked.
func CollectTitleUpdates(folder string, games []db.GameRecord, updateProgress db.ProgressUpdater) (*TitleUpdateCollection, error) {
	var paths []string
	mappings := map[string]db.UpdateMapping{}

	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == folder {
				return err
			}
			zap.S().Warnf("skipping %v - %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != folder && d.Name() == USB_FOLDER_NAME {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == db.UPDATE_MAPPING_FILENAME {
			entries, err := db.ReadUpdateMappings(path)
			if err != nil {
				zap.S().Warnf("failed to read mapping file %v - %v", path, err)
				return nil
			}
			for _, entry := range entries {
				mappings[entry.FileName] = entry
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".part") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed searching TUs in %v: %w", folder, err)
	}

	result := &TitleUpdateCollection{}
	for i, path := range paths {
		fileName := filepath.Base(path)
		if updateProgress != nil {
			updateProgress.UpdateProgress(i+1, len(paths), fileName)
		}

		classification := ClassifyTitleUpdate(fileName, games)
		if !classification.IsTitleUpdate {
			result.NonTitleUpdates++
			continue
		}

		titleId := classification.TitleId
		mapping, mapped := mappings[fileName]
		if titleId == "" && mapped {
			titleId = mapping.TitleId
		}
		gameName := gameNameByTitleId(games, titleId)
		if gameName == "" && mapped {
			gameName = mapping.GameName
		}

		if titleId == "" {
			zap.S().Infof("--> [Unmatched] TU found but unmatched: %v", path)
			result.Unmatched = append(result.Unmatched, path)
			continue
		}

		zap.S().Debugf("%v -> %v [TitleID: %v, rule: %v]", fileName, classification.Category, titleId, classification.Rule)
		result.Files = append(result.Files, TitleUpdateFile{
			Path:     path,
			Category: classification.Category,
			TitleId:  titleId,
			GameName: gameName,
		})
	}

	zap.S().Infof("Found %v TUs (%v unmatched, %v other files)", len(result.Files), len(result.Unmatched), result.NonTitleUpdates)
	return result, nil
}

func gameNameByTitleId(games []db.GameRecord, titleId string) string {
	if titleId == "" {
		return ""
	}
	for _, game := range games {
		if strings.EqualFold(game.TitleId, titleId) {
			return game.Name
		}
	}
	return ""
}
