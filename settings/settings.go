package settings

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	SETTINGS_FILENAME       = "config.json"
	APP_VERSION             = "1.2.0"
	XBOXUNITY_WEB_URL       = "https://xboxunity.net"
	XBOXUNITY_API_URL       = "https://xboxunity.net/Api"
	XBOXUNITY_RESOURCES_URL = "https://xboxunity.net/Resources/Lib"
	DEFAULT_FTP_REMOTE_ROOT = "/Hdd1"
	DEFAULT_FTP_PORT        = "21"
)

var ErrMissingCredentials = errors.New("enter username and password or API key")

// Setting of the application
type AppSettings struct {
	baseFolder string

	// XboxUnity credentials, stored as entered
	Username string `json:"username"`
	Password string `json:"password"`
	ApiKey   string `json:"api_key"`

	// Console FTP (Aurora / FSD)
	ConsoleAddress string `json:"console_address"`
	FtpUser        string `json:"ftp_user"`
	FtpPassword    string `json:"ftp_password"`
	FtpRemoteRoot  string `json:"ftp_remote_root"`

	Debug                     bool `json:"debug"`
	MaxDownloadKBps           int  `json:"max_download_kbps"`
	DeleteSourcesAfterExtract bool `json:"delete_sources_after_extract"`
	CheckForAppUpdates        bool `json:"check_for_app_updates"`
}

// Constructor for settings
func NewAppSettings(workingFolder string) *AppSettings {
	a := AppSettings{}
	a.baseFolder = workingFolder
	a.read()

	return &a
}

// Get the settings file path
func (a *AppSettings) getPath() string {
	return filepath.Join(a.baseFolder, SETTINGS_FILENAME)
}

// Read the file
func (a *AppSettings) read() {
	buf, bufErr := os.ReadFile(a.getPath())

	// Missing file is normal on first start, keep defaults in memory only
	if bufErr != nil {
		a.defaults()
		return
	}

	if jsonErr := a.Load(buf); jsonErr != nil {
		zap.S().Warnf("Corrupted config file, using defaults - %v", jsonErr)
		a.defaults()
	}
}

// Fill the structure with default values
func (a *AppSettings) defaults() {
	*a = AppSettings{baseFolder: a.baseFolder}
	a.FtpRemoteRoot = DEFAULT_FTP_REMOTE_ROOT
	a.DeleteSourcesAfterExtract = true
	a.CheckForAppUpdates = true
}

// Save to file
func (a *AppSettings) Save() error {
	jsonBytes, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.getPath(), jsonBytes, 0644)
}

// Delete the settings file, used when stored credentials stop working
func (a *AppSettings) Delete() error {
	err := os.Remove(a.getPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Return setting as JSON
func (a *AppSettings) ToJSON() string {
	jsonBytes, jsonErr := json.MarshalIndent(a, "", "  ")
	if jsonErr != nil {
		return ""
	}

	return string(jsonBytes)
}

// Load a JSON payload
func (a *AppSettings) Load(payload []byte) error {
	loaded := AppSettings{baseFolder: a.baseFolder}
	loaded.defaults()
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	*a = loaded
	return nil
}

// HasCredentials reports whether a catalog login can be attempted
func (a *AppSettings) HasCredentials() bool {
	return a.ApiKey != "" || (a.Username != "" && a.Password != "")
}

// FtpAddress returns host:port of the console, port 21 when omitted
func (a *AppSettings) FtpAddress() string {
	address := strings.TrimSpace(a.ConsoleAddress)
	if address == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(strings.Trim(address, "[]"), DEFAULT_FTP_PORT)
}

// FtpCredentials returns the login pair, anonymous when no user is configured
func (a *AppSettings) FtpCredentials() (string, string) {
	if a.FtpUser == "" {
		return "anonymous", "anonymous"
	}
	return a.FtpUser, a.FtpPassword
}
