package process

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/giwty/x360-tu-manager/db"
	"github.com/giwty/x360-tu-manager/xboxunity"
	"go.uber.org/zap"
	"robpike.io/nihongo"
)

const (
	UNKNOWN_GAME_FOLDER    = "Unknown_Game"
	maxGameFolderNameRunes = 100
)

var (
	folderIllegalCharsRegex = regexp.MustCompile(`[<>:"/\\|?*]`)
	folderSeparatorsRegex   = regexp.MustCompile(`[_\s]+`)
)

// Catalog finds and fetches title updates
type Catalog interface {
	FindTitleUpdates(ctx context.Context, titleId string, mediaId string) ([]xboxunity.TitleUpdate, error)
	Download(ctx context.Context, url string, dest string, progress xboxunity.DownloadProgress) error
}

// Totals of a batch download
type DownloadSummary struct {
	GamesProcessed   int
	GamesWithUpdates int
	Downloaded       int
	Errors           int
	Failed           []string
}

// DownloadTitleUpdates queries the catalog for every game and stores the updates found under
// destFolder/<game folder>/. A failed query or download is counted once and the batch goes on.
func DownloadTitleUpdates(ctx context.Context, catalog Catalog, games []db.GameRecord,
	destFolder string, updateProgress db.ProgressUpdater) (*DownloadSummary, error) {

	if err := os.MkdirAll(destFolder, os.ModePerm); err != nil {
		return nil, err
	}

	var transferProgress db.TransferProgressUpdater
	if updateProgress != nil {
		transferProgress, _ = updateProgress.(db.TransferProgressUpdater)
	}

	summary := &DownloadSummary{}
	zap.S().Info("Starting TU search and download...")

	for i, game := range games {
		summary.GamesProcessed++
		if updateProgress != nil {
			updateProgress.UpdateProgress(i+1, len(games), "Searching TUs for '"+game.Name+"'")
		}

		if game.TitleId == "" {
			zap.S().Infof("[game:%v] no TitleID, skipping TU search (MediaID: %v)", game.Name, game.MediaId)
			continue
		}

		zap.S().Infof("Searching TUs for '%v' (%v)...", game.Name, describeIds(game))
		updates, err := catalog.FindTitleUpdates(ctx, game.TitleId, game.MediaId)
		if err != nil {
			zap.S().Errorf("[game:%v] error querying TUs - %v", game.Name, err)
			summary.Errors++
			summary.Failed = append(summary.Failed, game.Name)
			continue
		}
		if len(updates) == 0 {
			zap.S().Infof("No TUs found for %v.", game.Name)
			continue
		}

		summary.GamesWithUpdates++
		zap.S().Infof("Found %v TUs for %v. Downloading...", len(updates), game.Name)

		folderName := CleanGameName(game.Name)
		gameFolder := filepath.Join(destFolder, folderName)
		if err := os.MkdirAll(gameFolder, os.ModePerm); err != nil {
			zap.S().Errorf("[game:%v] error creating folder %v - %v", game.Name, gameFolder, err)
			summary.Errors++
			summary.Failed = append(summary.Failed, game.Name)
			continue
		}

		for _, update := range updates {
			if !isPlainFileName(update.FileName) {
				zap.S().Errorf("[game:%v] refusing TU file name %q", game.Name, update.FileName)
				summary.Errors++
				summary.Failed = append(summary.Failed, update.FileName)
				continue
			}

			var progress xboxunity.DownloadProgress
			if transferProgress != nil {
				fileName := update.FileName
				progress = func(downloaded int64, total int64) {
					transferProgress.UpdateTransfer(fileName, downloaded, total)
				}
			}

			dest := filepath.Join(gameFolder, update.FileName)
			if err := catalog.Download(ctx, update.DownloadUrl, dest, progress); err != nil {
				zap.S().Errorf("[game:%v] error downloading %v - %v", game.Name, update.FileName, err)
				summary.Errors++
				summary.Failed = append(summary.Failed, update.FileName)
				continue
			}
			summary.Downloaded++
			zap.S().Infof("Downloaded %v successfully to %v/", update.FileName, folderName)

			mapping := db.UpdateMapping{FileName: update.FileName, TitleId: game.TitleId, GameName: game.Name}
			if err := db.AppendUpdateMapping(destFolder, mapping); err != nil {
				zap.S().Warnf("failed to record mapping for %v - %v", update.FileName, err)
			}
		}
	}

	zap.S().Infof("Summary: games processed %v, games with TUs found %v, TUs downloaded %v, errors %v",
		summary.GamesProcessed, summary.GamesWithUpdates, summary.Downloaded, summary.Errors)
	return summary, nil
}

// isPlainFileName reports whether name stays inside the folder it is joined to
func isPlainFileName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// CleanGameName turns a game name into a folder name usable on any filesystem
func CleanGameName(name string) string {
	name = nihongo.RomajiString(name)
	name = folderIllegalCharsRegex.ReplaceAllString(name, "_")
	name = folderSeparatorsRegex.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if runes := []rune(name); len(runes) > maxGameFolderNameRunes {
		name = strings.TrimRight(string(runes[:maxGameFolderNameRunes]), "_")
	}
	if name == "" {
		return UNKNOWN_GAME_FOLDER
	}
	return name
}

func describeIds(game db.GameRecord) string {
	var ids []string
	if game.MediaId != "" {
		ids = append(ids, "MediaID: "+game.MediaId)
	}
	if game.TitleId != "" {
		ids = append(ids, "TitleID: "+game.TitleId)
	}
	return strings.Join(ids, ", ")
}
