package main

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/giwty/x360-tu-manager/logger"
	"github.com/giwty/x360-tu-manager/settings"
)

type ScanCmd struct {
	Folder string `arg:"positional,required" help:"folder with extracted games"`
	Rescan bool   `arg:"--rescan" help:"ignore cached header information"`
	Html   string `arg:"--html" help:"export the game list to this HTML file"`
}

type ExtractCmd struct {
	Source string `arg:"positional,required" help:"folder with ZIP / ISO files"`
	Output string `arg:"positional" help:"folder for the extracted games (default: source folder)"`
	Keep   bool   `arg:"--keep" help:"keep ZIP and ISO files after extraction"`
}

type LoginCmd struct {
	Username string `arg:"-u,--username" help:"XboxUnity username"`
	Password string `arg:"-p,--password" help:"XboxUnity password"`
	ApiKey   string `arg:"--api-key" help:"XboxUnity API key, used instead of username and password"`
}

type TusCmd struct {
	Folder string `arg:"positional,required" help:"folder with extracted games"`
	Dest   string `arg:"positional,required" help:"folder to save TUs"`
	Game   string `arg:"--game" help:"only the game with the closest name"`
}

type UsbCmd struct {
	Folder   string `arg:"positional,required" help:"folder with extracted games"`
	TuFolder string `arg:"positional,required" help:"folder where the TUs were downloaded"`
	Dest     string `arg:"--dest" help:"USB structure folder (default: <tu folder>/USB_Xbox360)"`
}

type UploadCmd struct {
	Folder  string `arg:"positional,required" help:"USB structure folder, or a folder of TU files"`
	Games   string `arg:"--games" help:"folder with extracted games, resolves TitleIDs of cache TUs"`
	Address string `arg:"--address" help:"console address host[:port]"`
}

type FtpTestCmd struct {
	Address string `arg:"--address" help:"console address host[:port]"`
}

type Args struct {
	Scan    *ScanCmd    `arg:"subcommand:scan" help:"read MediaID / TitleID of every game in a folder"`
	Extract *ExtractCmd `arg:"subcommand:extract" help:"extract ZIP archives and ISO images"`
	Login   *LoginCmd   `arg:"subcommand:login" help:"store and verify XboxUnity credentials"`
	Tus     *TusCmd     `arg:"subcommand:tus" help:"search and download TUs for every game"`
	Usb     *UsbCmd     `arg:"subcommand:usb" help:"build the USB folder structure from downloaded TUs"`
	Upload  *UploadCmd  `arg:"subcommand:upload" help:"send TUs to the console over FTP"`
	FtpTest *FtpTestCmd `arg:"subcommand:ftp-test" help:"check the console FTP connection"`
	Debug   bool        `arg:"--debug" help:"verbose log"`
}

func (Args) Version() string {
	return "x360-tu-manager " + settings.APP_VERSION
}

func main() {
	var args Args
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing command")
	}

	workingFolder, err := settings.GetWorkingFolder()
	if err != nil {
		fmt.Printf("failed to get working folder - %v\n", err)
		os.Exit(1)
	}

	appSettings := settings.NewAppSettings(workingFolder)
	sugar := logger.GetSugar(workingFolder, args.Debug || appSettings.Debug)
	sugar.Infof("[x360-tu-manager v%v] [working folder: %v]", settings.APP_VERSION, workingFolder)

	if appSettings.CheckForAppUpdates {
		newUpdate, remoteVersion, err := settings.CheckForUpdates(settings.APP_VERSION_URL)
		if err != nil {
			sugar.Debugf("version check failed - %v", err)
		} else if newUpdate {
			fmt.Printf("=== New version available (%v) ===\n", remoteVersion)
		}
	}

	code := CreateConsole(workingFolder, appSettings, sugar).Start(&args)
	logger.Defer()
	os.Exit(code)
}
