package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/giwty/x360-tu-manager/db"
	"github.com/giwty/x360-tu-manager/process"
	"github.com/giwty/x360-tu-manager/settings"
	"github.com/giwty/x360-tu-manager/task"
	"github.com/giwty/x360-tu-manager/transfer"
	"github.com/giwty/x360-tu-manager/xboxunity"
	"github.com/giwty/x360-tu-manager/xex"
	"github.com/giwty/x360-tu-manager/xiso"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type Console struct {
	baseFolder  string
	appSettings *settings.AppSettings
	tools       settings.Tools
	sugarLogger *zap.SugaredLogger
	runner      *task.Runner
	progressBar *progressbar.ProgressBar
	endpoints   xboxunity.Endpoints
	dial        func(address string, user string, password string) (transfer.Conn, error)
}

func CreateConsole(baseFolder string, appSettings *settings.AppSettings, sugarLogger *zap.SugaredLogger) *Console {
	return &Console{
		baseFolder:  baseFolder,
		appSettings: appSettings,
		tools:       settings.ReadTools(baseFolder),
		sugarLogger: sugarLogger,
		runner:      task.NewRunner(),
		endpoints: xboxunity.Endpoints{
			Web:       settings.XBOXUNITY_WEB_URL,
			Api:       settings.XBOXUNITY_API_URL,
			Resources: settings.XBOXUNITY_RESOURCES_URL,
		},
		dial: transfer.Dial,
	}
}

// Start runs the selected command and returns the process exit code
func (c *Console) Start(args *Args) int {
	var err error
	switch {
	case args.Scan != nil:
		err = c.scan(args.Scan)
	case args.Extract != nil:
		err = c.extract(args.Extract)
	case args.Login != nil:
		err = c.login(args.Login)
	case args.Tus != nil:
		err = c.downloadTitleUpdates(args.Tus)
	case args.Usb != nil:
		err = c.prepareUsb(args.Usb)
	case args.Upload != nil:
		err = c.upload(args.Upload)
	case args.FtpTest != nil:
		err = c.testFtp(args.FtpTest)
	default:
		err = errors.New("no command specified")
	}

	if err != nil {
		c.sugarLogger.Errorf("%v", err)
		fmt.Printf("\nError: %v\n", err)
		return 1
	}
	fmt.Printf("\nCompleted\n")
	return 0
}

func (c *Console) scan(cmd *ScanCmd) error {
	localDB, err := c.scanGames(cmd.Folder, cmd.Rescan)
	if err != nil {
		return err
	}
	c.printGames(localDB)
	c.processIssues(localDB)

	if cmd.Html != "" {
		if len(localDB.Games) == 0 {
			fmt.Println("No games to export.")
			return nil
		}
		if err := exportGamesHtml(localDB.Games, cmd.Html); err != nil {
			return fmt.Errorf("error exporting HTML list: %w", err)
		}
		fmt.Printf("HTML list exported successfully: %v (total games: %v)\n", cmd.Html, len(localDB.Games))
	}
	return nil
}

func (c *Console) extract(cmd *ExtractCmd) error {
	extractor := xiso.NewExtractor(c.tools.ExtractXiso, c.appSettings.DeleteSourcesAfterExtract && !cmd.Keep)
	if err := extractor.Check(); err != nil {
		return err
	}

	output := cmd.Output
	if output == "" {
		output = cmd.Source
	}
	c.sugarLogger.Infof("extract-xiso path: %v", c.tools.ExtractXiso)

	fmt.Printf("Extracting ZIP files in [%v]\n", cmd.Source)
	archives, err := extractor.ExtractArchives(cmd.Source)
	if err != nil {
		return err
	}
	fmt.Printf("ZIPs extracted: %v of %v\n", archives.Extracted, archives.Found)

	fmt.Printf("\nExtracting ISO files into [%v]\n", output)
	result, err := c.runTask("extract", func(progress db.ProgressUpdater) (interface{}, error) {
		return extractor.ExtractImages(context.Background(), cmd.Source, output, progress)
	})
	if err != nil {
		return err
	}
	images := result.(*xiso.ImageResult)
	c.printExtractSummary(archives, images)
	return nil
}

func (c *Console) login(cmd *LoginCmd) error {
	username := strings.TrimSpace(cmd.Username)
	password := strings.TrimSpace(cmd.Password)
	apiKey := strings.TrimSpace(cmd.ApiKey)

	c.appSettings.Username = username
	c.appSettings.Password = password
	c.appSettings.ApiKey = apiKey
	client := c.newCatalogClient()

	if apiKey != "" {
		if err := c.appSettings.Save(); err != nil {
			return err
		}
		fmt.Println("API Key saved successfully.")
		fmt.Println("Testing connectivity with XboxUnity...")
		if err := client.TestConnectivity(context.Background()); err != nil {
			c.sugarLogger.Warnf("%v", err)
			fmt.Println("WARNING: Connectivity issues with XboxUnity.")
			return nil
		}
		fmt.Println("Connectivity verified successfully.")
		return nil
	}

	if username == "" || password == "" {
		return settings.ErrMissingCredentials
	}

	fmt.Println("Testing connectivity with XboxUnity...")
	if err := client.TestConnectivity(context.Background()); err != nil {
		return fmt.Errorf("cannot connect to XboxUnity, check your internet connection: %w", err)
	}

	fmt.Println("Attempting to login...")
	if _, err := client.Login(context.Background(), username, password); err != nil {
		if delErr := c.appSettings.Delete(); delErr != nil {
			c.sugarLogger.Warnf("failed to delete %v - %v", settings.SETTINGS_FILENAME, delErr)
		}
		return err
	}
	if err := c.appSettings.Save(); err != nil {
		return err
	}
	fmt.Println("Login successful.")
	return nil
}

func (c *Console) downloadTitleUpdates(cmd *TusCmd) error {
	client, err := c.authenticatedClient()
	if err != nil {
		return err
	}

	localDB, err := c.scanGames(cmd.Folder, false)
	if err != nil {
		return err
	}
	games := localDB.Games
	if len(games) == 0 {
		return errors.New("no games detected, check the games folder")
	}
	if cmd.Game != "" {
		game := closestGame(games, cmd.Game)
		fmt.Printf("Selected game: %v\n", game.Name)
		games = []db.GameRecord{game}
	}

	fmt.Printf("\nSearching and downloading TUs into [%v]\n", cmd.Dest)
	result, err := c.runTask("tus", func(progress db.ProgressUpdater) (interface{}, error) {
		return process.DownloadTitleUpdates(context.Background(), client, games, cmd.Dest, progress)
	})
	if err != nil {
		return err
	}
	c.printDownloadSummary(result.(*process.DownloadSummary))
	return nil
}

func (c *Console) prepareUsb(cmd *UsbCmd) error {
	localDB, err := c.scanGames(cmd.Folder, false)
	if err != nil {
		return err
	}
	if len(localDB.Games) == 0 {
		return errors.New("no games detected, first select a folder with games")
	}

	collection, err := process.CollectTitleUpdates(cmd.TuFolder, localDB.Games, nil)
	if err != nil {
		return err
	}
	if len(collection.Files) == 0 {
		fmt.Println("No downloaded TUs found in the selected folder.")
		return nil
	}

	dest := cmd.Dest
	if dest == "" {
		dest = process.DefaultUsbFolder(cmd.TuFolder)
	}

	fmt.Printf("\nPreparing USB structure in [%v]\n", dest)
	result, err := c.runTask("usb", func(progress db.ProgressUpdater) (interface{}, error) {
		return process.AssembleLayout(collection.Files, dest, progress)
	})
	if err != nil {
		return err
	}
	c.printLayoutSummary(collection, result.(*process.LayoutResult))
	return nil
}

func (c *Console) upload(cmd *UploadCmd) error {
	var games []db.GameRecord
	if cmd.Games != "" {
		localDB, err := c.scanGames(cmd.Games, false)
		if err != nil {
			return err
		}
		games = localDB.Games
	}

	conn, err := c.dialConsole(cmd.Address)
	if err != nil {
		return err
	}
	defer conn.Quit()

	uploader := transfer.NewUploader(conn, c.appSettings.FtpRemoteRoot, games)
	fmt.Printf("\nUploading [%v] to the console\n", cmd.Folder)
	result, err := c.runTask("upload", func(progress db.ProgressUpdater) (interface{}, error) {
		return uploader.Upload(cmd.Folder, progress)
	})
	if err != nil {
		return err
	}
	c.printUploadSummary(result.(*transfer.UploadResult))
	return nil
}

func (c *Console) testFtp(cmd *FtpTestCmd) error {
	conn, err := c.dialConsole(cmd.Address)
	if err != nil {
		return err
	}
	defer conn.Quit()

	if err := transfer.TestConnection(conn, c.appSettings.FtpRemoteRoot); err != nil {
		return err
	}
	if err := c.appSettings.Save(); err != nil {
		return err
	}
	fmt.Printf("FTP connection OK, remote folder %v is reachable\n", c.appSettings.FtpRemoteRoot)
	return nil
}

func (c *Console) dialConsole(address string) (transfer.Conn, error) {
	if address != "" {
		c.appSettings.ConsoleAddress = address
	}
	ftpAddress := c.appSettings.FtpAddress()
	if ftpAddress == "" {
		return nil, fmt.Errorf("no console address, set console_address in %v or pass --address", settings.SETTINGS_FILENAME)
	}
	user, password := c.appSettings.FtpCredentials()
	return c.dial(ftpAddress, user, password)
}

// scanGames reads the IDs of every game under folder. Header results are cached between runs.
func (c *Console) scanGames(folder string, ignoreCache bool) (*db.LocalGamesDB, error) {
	reader := xex.NewReader(c.tools.XexTool, c.tools.Wine)
	if err := reader.Check(); err != nil {
		return nil, err
	}

	persistentDB, err := db.NewPersistentDB(c.baseFolder)
	if err != nil {
		c.sugarLogger.Warnf("header cache disabled - %v", err)
		persistentDB = nil
	} else {
		defer persistentDB.Close()
	}

	manager := db.NewLocalGamesDBManager(persistentDB, reader)
	if ignoreCache {
		if err := manager.ClearScanData(); err != nil {
			c.sugarLogger.Warnf("failed to clear header cache - %v", err)
		}
	}

	fmt.Printf("Scanning folder [%v]\n", folder)
	result, err := c.runTask("scan", func(progress db.ProgressUpdater) (interface{}, error) {
		return manager.CreateLocalGamesDB(context.Background(), folder, progress, ignoreCache)
	})
	if err != nil {
		return nil, err
	}
	localDB := result.(*db.LocalGamesDB)
	if localDB.NumFiles == 0 {
		fmt.Println(db.NO_GAMES_FOUND_MESSAGE)
	}
	return localDB, nil
}

func (c *Console) newCatalogClient() *xboxunity.Client {
	return xboxunity.NewClient(c.endpoints, c.appSettings.MaxDownloadKBps)
}

// authenticatedClient logs in with the stored credentials, the API key wins over a password
func (c *Console) authenticatedClient() (*xboxunity.Client, error) {
	client := c.newCatalogClient()
	if c.appSettings.ApiKey != "" {
		client.SetCredential(c.appSettings.ApiKey)
		return client, nil
	}
	if !c.appSettings.HasCredentials() {
		return nil, fmt.Errorf("%w, run the login command first", settings.ErrMissingCredentials)
	}
	if _, err := client.Login(context.Background(), c.appSettings.Username, c.appSettings.Password); err != nil {
		if delErr := c.appSettings.Delete(); delErr != nil {
			c.sugarLogger.Warnf("failed to delete %v - %v", settings.SETTINGS_FILENAME, delErr)
		}
		return nil, err
	}
	return client, nil
}

// runTask runs action on the background worker and renders its progress until it is done
func (c *Console) runTask(name string, action task.Action) (interface{}, error) {
	events, err := c.runner.Start(name, action)
	if err != nil {
		return nil, err
	}
	defer c.finishProgress()

	for event := range events {
		switch event.Type {
		case task.EVENT_PROGRESS:
			c.UpdateProgress(event.Progress.Curr, event.Progress.Total, event.Progress.Message)
		case task.EVENT_TRANSFER:
			c.UpdateTransfer(event.Transfer.Name, event.Transfer.Done, event.Transfer.Total)
		case task.EVENT_DONE:
			return event.Result, event.Err
		}
	}
	return nil, fmt.Errorf("%v ended without a result", name)
}

func (c *Console) UpdateProgress(curr int, total int, message string) {
	if total <= 0 {
		fmt.Println(message)
		return
	}
	if c.progressBar == nil {
		c.progressBar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false))
	}
	c.progressBar.ChangeMax(total)
	c.progressBar.Describe(message)
	_ = c.progressBar.Set(curr)
}

func (c *Console) UpdateTransfer(name string, done int64, total int64) {
	if c.progressBar == nil || total <= 0 {
		return
	}
	c.progressBar.Describe(fmt.Sprintf("%v (%d%%)", name, done*100/total))
}

func (c *Console) finishProgress() {
	if c.progressBar != nil {
		_ = c.progressBar.Finish()
		fmt.Fprintln(os.Stderr)
		c.progressBar = nil
	}
}

// closestGame picks the game whose name is nearest to query
func closestGame(games []db.GameRecord, query string) db.GameRecord {
	query = strings.ToLower(query)
	best := games[0]
	bestDistance := -1
	for _, game := range games {
		name := strings.ToLower(game.Name)
		if strings.Contains(name, query) {
			return game
		}
		distance := matchr.Levenshtein(name, query)
		if bestDistance == -1 || distance < bestDistance {
			best, bestDistance = game, distance
		}
	}
	return best
}

func displayPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
