package main

import (
	"fmt"
	"html"
	"os"
	"sort"
	"time"

	"github.com/giwty/x360-tu-manager/db"
	"github.com/giwty/x360-tu-manager/process"
	"github.com/giwty/x360-tu-manager/transfer"
	"github.com/giwty/x360-tu-manager/xiso"
	"github.com/jedib0t/go-pretty/table"
)

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Xbox 360 Games List</title>
<style>
body { font-family: Segoe UI, Arial, sans-serif; background: #1e1e1e; color: #e0e0e0; }
table { border-collapse: collapse; width: 100%%; }
th { background: #107c10; color: #fff; }
th, td { padding: 6px 10px; border: 1px solid #333; text-align: left; }
tr:nth-child(even) { background: #2a2a2a; }
</style>
</head>
<body>
<h1>Xbox 360 Games List</h1>
<p>Generated: %s | Total games: %d</p>
%s
</body>
</html>
`

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	return t
}

func gamesTable(games []db.GameRecord) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Game", "MediaID", "TitleID"})
	for i, game := range games {
		t.AppendRow(table.Row{i + 1, game.Name, orNA(game.MediaId), orNA(game.TitleId)})
	}
	return t
}

func (c *Console) printGames(localDB *db.LocalGamesDB) {
	if len(localDB.Games) == 0 {
		return
	}
	fmt.Print("\nDetected games:\n\n")
	t := gamesTable(localDB.Games)
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendFooter(table.Row{"", "", "Total", len(localDB.Games)})
	t.Render()
}

func (c *Console) processIssues(localDB *db.LocalGamesDB) {
	if len(localDB.Skipped) == 0 {
		return
	}
	fmt.Print("\nSkipped files:\n\n")

	paths := make([]string, 0, len(localDB.Skipped))
	for k := range localDB.Skipped {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	t := newTable()
	t.AppendHeader(table.Row{"#", "Skipped file", "Reason"})
	for i, path := range paths {
		t.AppendRow(table.Row{i + 1, path, localDB.Skipped[path].ReasonText})
	}
	t.AppendFooter(table.Row{"", "Total", len(localDB.Skipped)})
	t.Render()
}

func (c *Console) printExtractSummary(archives *xiso.ArchiveResult, images *xiso.ImageResult) {
	fmt.Print("\nExtraction summary:\n\n")
	t := newTable()
	t.AppendHeader(table.Row{"Step", "Found", "Done", "Already extracted", "Errors"})
	t.AppendRow(table.Row{"ZIP", archives.Found, archives.Extracted, "-", len(archives.Failed)})
	t.AppendRow(table.Row{"ISO", images.Found, images.Extracted, images.Skipped, len(images.Failed)})
	t.Render()
	printFailures(mergeFailures(archives.Failed, images.Failed))
}

func (c *Console) printDownloadSummary(summary *process.DownloadSummary) {
	fmt.Print("\nSummary:\n\n")
	t := newTable()
	t.AppendRow(table.Row{"Games processed", summary.GamesProcessed})
	t.AppendRow(table.Row{"Games with TUs found", summary.GamesWithUpdates})
	t.AppendRow(table.Row{"TUs downloaded", summary.Downloaded})
	t.AppendRow(table.Row{"Errors", summary.Errors})
	t.Render()
}

func (c *Console) printLayoutSummary(collection *process.TitleUpdateCollection, result *process.LayoutResult) {
	fmt.Print("\nUSB preparation completed\n\n")
	t := newTable()
	t.AppendRow(table.Row{"Folder created", displayPath(result.DestRoot)})
	t.AppendRow(table.Row{"TUs processed", result.Copied})
	t.AppendRow(table.Row{"Unmatched TUs", len(collection.Unmatched)})
	t.AppendRow(table.Row{"Errors", result.Errors})
	t.Render()
	printFailures(result.Failed)
	fmt.Printf("\nNow you can copy the '%v' and '%v' folders to your USB drive.\n",
		process.CONTENT_FOLDER_NAME, process.CACHE_FOLDER_NAME)
}

func (c *Console) printUploadSummary(result *transfer.UploadResult) {
	fmt.Print("\nUpload summary:\n\n")
	t := newTable()
	t.AppendRow(table.Row{"Mode", result.Mode})
	t.AppendRow(table.Row{"Uploaded", result.Uploaded})
	t.AppendRow(table.Row{"Skipped", result.Skipped})
	t.AppendRow(table.Row{"Errors", result.Errors})
	t.Render()
	printFailures(result.Failed)
}

func printFailures(failed map[string]string) {
	if len(failed) == 0 {
		return
	}
	keys := make([]string, 0, len(failed))
	for k := range failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Print("\nFailed:\n\n")
	t := newTable()
	t.AppendHeader(table.Row{"#", "File", "Reason"})
	for i, k := range keys {
		t.AppendRow(table.Row{i + 1, k, failed[k]})
	}
	t.Render()
}

func mergeFailures(maps ...map[string]string) map[string]string {
	result := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// exportGamesHtml writes the game list as a standalone HTML page
func exportGamesHtml(games []db.GameRecord, path string) error {
	page := fmt.Sprintf(htmlPage,
		html.EscapeString(time.Now().Format("02/01/2006 15:04:05")),
		len(games),
		gamesTable(games).RenderHTML())
	return os.WriteFile(path, []byte(page), 0644)
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}
