package settings

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppSettingsDefaults(t *testing.T) {
	folder := t.TempDir()
	s := NewAppSettings(folder)

	assert.Equal(t, DEFAULT_FTP_REMOTE_ROOT, s.FtpRemoteRoot)
	assert.True(t, s.DeleteSourcesAfterExtract)
	assert.True(t, s.CheckForAppUpdates)
	assert.False(t, s.HasCredentials())

	// defaults are not written until a login succeeds
	assert.NoFileExists(t, filepath.Join(folder, SETTINGS_FILENAME))
}

func TestSaveAndReload(t *testing.T) {
	folder := t.TempDir()
	s := NewAppSettings(folder)
	s.Username = "user"
	s.Password = "secret"
	s.ConsoleAddress = "192.168.1.20"
	s.MaxDownloadKBps = 512
	require.NoError(t, s.Save())

	reloaded := NewAppSettings(folder)
	assert.Equal(t, "user", reloaded.Username)
	assert.Equal(t, "secret", reloaded.Password)
	assert.Equal(t, 512, reloaded.MaxDownloadKBps)
	assert.True(t, reloaded.HasCredentials())

	require.NoError(t, reloaded.Delete())
	assert.NoFileExists(t, filepath.Join(folder, SETTINGS_FILENAME))
	assert.NoError(t, reloaded.Delete())
}

func TestLoadKeepsRemoteRootDefault(t *testing.T) {
	s := &AppSettings{}
	require.NoError(t, s.Load([]byte(`{"api_key":"abc"}`)))
	assert.Equal(t, "abc", s.ApiKey)
	assert.Equal(t, DEFAULT_FTP_REMOTE_ROOT, s.FtpRemoteRoot)
	assert.True(t, s.HasCredentials())

	assert.Error(t, s.Load([]byte(`{not json`)))
	assert.Equal(t, "abc", s.ApiKey)
}

func TestLoadOlderConfigKeepsDefaults(t *testing.T) {
	s := &AppSettings{}
	require.NoError(t, s.Load([]byte(`{"username":"user","password":"secret","api_key":""}`)))
	assert.Equal(t, "user", s.Username)
	assert.True(t, s.CheckForAppUpdates)
	assert.True(t, s.DeleteSourcesAfterExtract)
	assert.Equal(t, DEFAULT_FTP_REMOTE_ROOT, s.FtpRemoteRoot)

	require.NoError(t, s.Load([]byte(`{"check_for_app_updates":false,"delete_sources_after_extract":false}`)))
	assert.False(t, s.CheckForAppUpdates)
	assert.False(t, s.DeleteSourcesAfterExtract)
}

func TestCorruptedFileFallsBackToDefaults(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, SETTINGS_FILENAME), []byte("{oops"), 0644))

	s := NewAppSettings(folder)
	assert.Equal(t, DEFAULT_FTP_REMOTE_ROOT, s.FtpRemoteRoot)
	assert.Empty(t, s.Username)
}

func TestFtpAddress(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"192.168.1.20":      "192.168.1.20:21",
		" 192.168.1.20 ":    "192.168.1.20:21",
		"192.168.1.20:2121": "192.168.1.20:2121",
		"xbox.local":        "xbox.local:21",
		"fe80::1":           "[fe80::1]:21",
		"[fe80::1]:2121":    "[fe80::1]:2121",
	}
	for input, expected := range tests {
		s := AppSettings{ConsoleAddress: input}
		assert.Equal(t, expected, s.FtpAddress(), input)
	}
}

func TestFtpCredentials(t *testing.T) {
	user, password := (&AppSettings{}).FtpCredentials()
	assert.Equal(t, "anonymous", user)
	assert.Equal(t, "anonymous", password)

	user, password = (&AppSettings{FtpUser: "xbox", FtpPassword: "xbox"}).FtpCredentials()
	assert.Equal(t, "xbox", user)
	assert.Equal(t, "xbox", password)
}

func TestReadTools(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(folder, "XexTool"), 0755))
	xexTool := filepath.Join(folder, "XexTool", "XexTool.exe")
	require.NoError(t, os.WriteFile(xexTool, []byte("MZ"), 0644))

	tools := ReadTools(folder)
	assert.Equal(t, xexTool, tools.XexTool)
	assert.Equal(t, "wine", tools.Wine)

	props := "xextool = /opt/xextool/XexTool.exe\nextract_xiso = /opt/bin/extract-xiso\nwine = wine64\n"
	require.NoError(t, os.WriteFile(filepath.Join(folder, TOOLS_FILENAME), []byte(props), 0644))

	tools = ReadTools(folder)
	assert.Equal(t, Tools{
		XexTool:     "/opt/xextool/XexTool.exe",
		ExtractXiso: "/opt/bin/extract-xiso",
		Wine:        "wine64",
	}, tools)
}

func TestCheckForUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/newer":
			_, _ = w.Write([]byte(`{"version":"99.0.0"}`))
		case "/same":
			_, _ = w.Write([]byte(`{"version":"` + APP_VERSION + `"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	newer, remote, err := CheckForUpdates(server.URL + "/newer")
	require.NoError(t, err)
	assert.True(t, newer)
	assert.Equal(t, "99.0.0", remote)

	newer, _, err = CheckForUpdates(server.URL + "/same")
	require.NoError(t, err)
	assert.False(t, newer)

	_, _, err = CheckForUpdates(server.URL + "/missing")
	assert.Error(t, err)
}
