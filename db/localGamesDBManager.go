package db

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/giwty/x360-tu-manager/xex"
	"go.uber.org/zap"
)

const (
	DB_TABLE_XEX_HEADERS = "xex-headers"

	XEX_FILENAME           = "default.xex"
	NO_GAMES_FOUND_MESSAGE = "No default.xex files found in selected folder."
)

const (
	REASON_UNREADABLE = iota
	REASON_NO_IDS
)

type SkippedFile struct {
	ReasonCode int
	ReasonText string
}

// Games detected in one scan, in folder walk order
type LocalGamesDB struct {
	Games    []GameRecord
	Skipped  map[string]SkippedFile
	NumFiles int
}

// HeaderReader extracts the IDs of a default.xex
type HeaderReader interface {
	Read(ctx context.Context, xexPath string) (xex.HeaderInfo, error)
}

// Local games scanner, header results are cached in the persistent db when one is given
type LocalGamesDBManager struct {
	db     *PersistentDB
	reader HeaderReader
}

func NewLocalGamesDBManager(db *PersistentDB, reader HeaderReader) *LocalGamesDBManager {
	return &LocalGamesDBManager{db: db, reader: reader}
}

func (ldb *LocalGamesDBManager) ClearScanData() error {
	if ldb.db == nil {
		return nil
	}
	return ldb.db.ClearTable(DB_TABLE_XEX_HEADERS)
}

func (ldb *LocalGamesDBManager) CreateLocalGamesDB(ctx context.Context, folder string,
	progress ProgressUpdater, ignoreCache bool) (*LocalGamesDB, error) {

	result := &LocalGamesDB{Games: []GameRecord{}, Skipped: map[string]SkippedFile{}}

	xexFiles, err := findXexFiles(folder)
	if err != nil {
		return nil, fmt.Errorf("failed scanning folder %v: %w", folder, err)
	}
	result.NumFiles = len(xexFiles)

	if len(xexFiles) == 0 {
		zap.S().Info(NO_GAMES_FOUND_MESSAGE)
		if progress != nil {
			progress.UpdateProgress(0, 0, NO_GAMES_FOUND_MESSAGE)
		}
		return result, nil
	}

	zap.S().Infof("Reading MediaID...please wait (%v games found)", len(xexFiles))
	for i, xexPath := range xexFiles {
		gameName := filepath.Base(filepath.Dir(xexPath))
		if progress != nil {
			progress.UpdateProgress(i+1, len(xexFiles), "Reading information from '"+gameName+"'")
		}

		info, err := ldb.getHeaderInfo(ctx, xexPath, ignoreCache)
		if err != nil {
			zap.S().Errorf("[game:%v] could not read information [reason: %v]", gameName, err)
			result.Skipped[xexPath] = SkippedFile{ReasonCode: REASON_UNREADABLE, ReasonText: err.Error()}
			continue
		}

		game := GameRecord{
			Name:    gameName,
			MediaId: NormalizeId(info.MediaId),
			TitleId: NormalizeId(info.TitleId),
			XexPath: xexPath,
		}
		if !game.IsValid() {
			zap.S().Warnf("[game:%v] no MediaID / TitleID in header", gameName)
			result.Skipped[xexPath] = SkippedFile{ReasonCode: REASON_NO_IDS, ReasonText: "no MediaID / TitleID in header"}
			continue
		}
		result.Games = append(result.Games, game)
	}

	zap.S().Infof("Detected %v games with valid information.", len(result.Games))
	return result, nil
}

func (ldb *LocalGamesDBManager) getHeaderInfo(ctx context.Context, xexPath string, ignoreCache bool) (xex.HeaderInfo, error) {
	var info xex.HeaderInfo
	fileKey := ""

	if ldb.db != nil {
		var err error
		fileKey, err = fingerprint(xexPath)
		if err != nil {
			return info, err
		}
		if !ignoreCache {
			found, err := ldb.db.GetEntry(DB_TABLE_XEX_HEADERS, fileKey, &info)
			if err != nil {
				zap.S().Warnf("%v", err)
			}
			if found && !info.IsEmpty() {
				return info, nil
			}
		}
	}

	info, err := ldb.reader.Read(ctx, xexPath)
	if err != nil {
		return info, err
	}

	if ldb.db != nil && !info.IsEmpty() {
		if err := ldb.db.AddEntry(DB_TABLE_XEX_HEADERS, fileKey, info); err != nil {
			zap.S().Warnf("%v", err)
		}
	}
	return info, nil
}

// findXexFiles walks folder for default.xex, any case
func findXexFiles(folder string) ([]string, error) {
	var result []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == folder {
				return err
			}
			zap.S().Warnf("skipping %v - %v", path, err)
			return nil
		}
		if !d.IsDir() && strings.EqualFold(d.Name(), XEX_FILENAME) {
			result = append(result, path)
		}
		return nil
	})
	return result, err
}

// fingerprint identifies an executable by content, so renamed folders keep their cache entry
func fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
