package main

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giwty/x360-tu-manager/db"
	"github.com/giwty/x360-tu-manager/settings"
	"github.com/giwty/x360-tu-manager/transfer"
	"github.com/giwty/x360-tu-manager/xboxunity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testGames = []db.GameRecord{
	{Name: "Halo 3", MediaId: "2D2E2EEB", TitleId: "4D5307E6"},
	{Name: "Forza Motorsport 4", MediaId: "", TitleId: "4D530910"},
	{Name: "Bayonetta <Climax>", MediaId: "", TitleId: ""},
}

func TestClosestGame(t *testing.T) {
	assert.Equal(t, "Forza Motorsport 4", closestGame(testGames, "forza").Name)
	assert.Equal(t, "Halo 3", closestGame(testGames, "Hallo 3").Name)
	assert.Equal(t, "Bayonetta <Climax>", closestGame(testGames, "bayoneta climax").Name)
}

func TestExportGamesHtml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.html")
	require.NoError(t, exportGamesHtml(testGames, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(content)
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "Total games: 3")
	assert.Contains(t, page, "4D5307E6")
	assert.Contains(t, page, "N/A")
	assert.Contains(t, page, "Bayonetta &lt;Climax&gt;")
	assert.Contains(t, page, "width: 100%;")
}

func TestMergeFailures(t *testing.T) {
	merged := mergeFailures(map[string]string{"a.zip": "crc"}, map[string]string{"b.iso": "tool failed"}, nil)
	assert.Equal(t, map[string]string{"a.zip": "crc", "b.iso": "tool failed"}, merged)
}

type fakeConsoleConn struct {
	dirs map[string]bool
}

func (f *fakeConsoleConn) ChangeDir(path string) error {
	if !f.dirs[path] {
		return errors.New("550 no such directory")
	}
	return nil
}

func (f *fakeConsoleConn) MakeDir(path string) error {
	f.dirs[path] = true
	return nil
}

func (f *fakeConsoleConn) Stor(path string, r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func (f *fakeConsoleConn) Quit() error {
	return nil
}

func newTestConsole(t *testing.T) (*Console, string) {
	t.Helper()
	folder := t.TempDir()
	console := CreateConsole(folder, settings.NewAppSettings(folder), zap.NewNop().Sugar())
	return console, filepath.Join(folder, settings.SETTINGS_FILENAME)
}

func TestFtpTestSavesAddress(t *testing.T) {
	console, configPath := newTestConsole(t)
	var dialed string
	console.dial = func(address string, user string, password string) (transfer.Conn, error) {
		dialed = address
		return &fakeConsoleConn{dirs: map[string]bool{settings.DEFAULT_FTP_REMOTE_ROOT: true}}, nil
	}

	require.NoError(t, console.testFtp(&FtpTestCmd{Address: "192.168.1.20"}))
	assert.Equal(t, "192.168.1.20:21", dialed)

	reloaded := settings.NewAppSettings(filepath.Dir(configPath))
	assert.Equal(t, "192.168.1.20", reloaded.ConsoleAddress)

	// a later command without --address reuses the saved console
	next := CreateConsole(filepath.Dir(configPath), reloaded, zap.NewNop().Sugar())
	next.dial = console.dial
	dialed = ""
	require.NoError(t, next.testFtp(&FtpTestCmd{}))
	assert.Equal(t, "192.168.1.20:21", dialed)
}

func TestFtpTestFailureDoesNotSave(t *testing.T) {
	console, configPath := newTestConsole(t)
	console.dial = func(address string, user string, password string) (transfer.Conn, error) {
		return &fakeConsoleConn{dirs: map[string]bool{}}, nil
	}

	assert.Error(t, console.testFtp(&FtpTestCmd{Address: "192.168.1.20"}))
	assert.NoFileExists(t, configPath)

	console.dial = func(address string, user string, password string) (transfer.Conn, error) {
		return nil, errors.New("connection refused")
	}
	assert.Error(t, console.testFtp(&FtpTestCmd{Address: "192.168.1.20"}))
	assert.NoFileExists(t, configPath)
}

func newCatalogServer(t *testing.T) xboxunity.Endpoints {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/Api/Auth/Login", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") == "user" && r.PostForm.Get("password") == "secret" {
			_, _ = w.Write([]byte(`{"token":"tok-123"}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":"invalid"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return xboxunity.Endpoints{Web: server.URL, Api: server.URL + "/Api", Resources: server.URL + "/Resources/Lib"}
}

func TestLoginSavesOnSuccess(t *testing.T) {
	console, configPath := newTestConsole(t)
	console.endpoints = newCatalogServer(t)

	require.NoError(t, console.login(&LoginCmd{Username: " user ", Password: "secret"}))

	reloaded := settings.NewAppSettings(filepath.Dir(configPath))
	assert.Equal(t, "user", reloaded.Username)
	assert.Equal(t, "secret", reloaded.Password)
}

func TestLoginFailureDeletesConfig(t *testing.T) {
	console, configPath := newTestConsole(t)
	console.endpoints = newCatalogServer(t)
	console.appSettings.Username = "user"
	console.appSettings.Password = "old"
	require.NoError(t, console.appSettings.Save())

	err := console.login(&LoginCmd{Username: "user", Password: "wrong"})
	assert.ErrorIs(t, err, xboxunity.ErrLoginFailed)
	assert.NoFileExists(t, configPath)
}

func TestLoginRequiresCredentials(t *testing.T) {
	console, configPath := newTestConsole(t)
	console.endpoints = newCatalogServer(t)

	assert.ErrorIs(t, console.login(&LoginCmd{Username: "user"}), settings.ErrMissingCredentials)
	assert.NoFileExists(t, configPath)
}

func TestLoginApiKeySavedWithoutConnectivity(t *testing.T) {
	console, configPath := newTestConsole(t)
	console.endpoints = xboxunity.Endpoints{Web: "http://127.0.0.1:1", Api: "http://127.0.0.1:1/Api"}

	require.NoError(t, console.login(&LoginCmd{ApiKey: "key-123"}))
	assert.Equal(t, "key-123", settings.NewAppSettings(filepath.Dir(configPath)).ApiKey)
}
