package settings

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mcuadros/go-version"
)

const (
	APP_VERSION_URL = "https://raw.githubusercontent.com/giwty/x360-tu-manager/master/version.json"
)

// Check if a newer release of the application is available
func CheckForUpdates(url string) (bool, string, error) {
	client := http.Client{Timeout: 10 * time.Second}
	res, err := client.Get(url)
	if err != nil {
		return false, "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("version check failed - %v", res.Status)
	}

	remoteValues := map[string]string{}
	if err = json.NewDecoder(res.Body).Decode(&remoteValues); err != nil {
		return false, "", err
	}

	remoteVer := remoteValues["version"]
	if remoteVer == "" {
		return false, "", nil
	}

	return version.CompareSimple(remoteVer, APP_VERSION) > 0, remoteVer, nil
}
