package xboxunity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	RESPONSE_TYPE_MEDIA_GROUPS   = "1"
	RESPONSE_TYPE_DIRECT_UPDATES = "2"
)

// A title update offered by the catalog
type TitleUpdate struct {
	FileName      string `json:"fileName"`
	DownloadUrl   string `json:"downloadUrl"`
	TitleUpdateId string `json:"titleUpdateId"`
	Version       string `json:"version"`
	MediaId       string `json:"mediaId"`
	TitleId       string `json:"titleId"`
	TitleName     string `json:"titleName"`
	Size          int64  `json:"size"`
	UploadDate    string `json:"uploadDate"`
	Hash          string `json:"hash"`
	BaseVersion   string `json:"baseVersion"`
}

// flexString accepts JSON strings, numbers and booleans, the catalog mixes them
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("unexpected JSON value %s", truncate(string(b), 40))
	}
	*f = flexString(b)
	return nil
}

type catalogUpdate struct {
	Name          flexString `json:"Name"`
	TitleUpdateID flexString `json:"TitleUpdateID"`
	Version       flexString `json:"Version"`
	MediaID       flexString `json:"MediaID"`
	Size          flexString `json:"Size"`
	UploadDate    flexString `json:"UploadDate"`
	Hash          flexString `json:"hash"`
	BaseVersion   flexString `json:"BaseVersion"`
}

type catalogMediaGroup struct {
	MediaID flexString      `json:"MediaID"`
	Updates []catalogUpdate `json:"Updates"`
}

type catalogResponse struct {
	Type     flexString          `json:"Type"`
	MediaIDS []catalogMediaGroup `json:"MediaIDS"`
	Updates  []catalogUpdate     `json:"Updates"`
}

// FindTitleUpdates queries the catalog for one TitleID. A non-empty mediaId keeps only the
// updates published for that MediaID. Unknown or malformed responses yield zero updates.
func (c *Client) FindTitleUpdates(ctx context.Context, titleId string, mediaId string) ([]TitleUpdate, error) {
	if titleId == "" {
		return nil, fmt.Errorf("TitleID is required to search TUs")
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	queryUrl := strings.TrimRight(c.endpoints.Resources, "/") + "/TitleUpdateInfo.php?titleid=" + url.QueryEscape(titleId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryUrl, nil)
	if err != nil {
		return nil, err
	}
	c.setCommonHeaders(req)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	zap.S().Debugf("Querying: %v", queryUrl)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying TitleUpdateInfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading TitleUpdateInfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error in TitleUpdateInfo: %v", resp.StatusCode)
	}

	updates := c.parseTitleUpdates(body, titleId, mediaId)
	zap.S().Infof("Total TUs found for TitleID %v: %v", titleId, len(updates))
	return updates, nil
}

func (c *Client) parseTitleUpdates(body []byte, titleId string, mediaId string) []TitleUpdate {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		zap.S().Infof("No TUs available for TitleID %v [response: %v]", titleId, truncate(string(trimmed), 200))
		return []TitleUpdate{}
	}

	var response catalogResponse
	if err := json.Unmarshal(trimmed, &response); err != nil {
		zap.S().Errorf("error parsing TitleUpdateInfo response - %v [content: %v]", err, truncate(string(trimmed), 500))
		return []TitleUpdate{}
	}

	result := []TitleUpdate{}
	switch string(response.Type) {
	case RESPONSE_TYPE_MEDIA_GROUPS:
		for _, group := range response.MediaIDS {
			groupMediaId := string(group.MediaID)
			if mediaId != "" && !strings.EqualFold(groupMediaId, mediaId) {
				zap.S().Debugf("Skipping MediaID %v (doesn't match %v)", groupMediaId, mediaId)
				continue
			}
			for _, update := range group.Updates {
				result = append(result, c.toTitleUpdate(update, titleId, groupMediaId))
			}
		}

	case RESPONSE_TYPE_DIRECT_UPDATES:
		for _, update := range response.Updates {
			updateMediaId := string(update.MediaID)
			if mediaId != "" && !strings.EqualFold(updateMediaId, mediaId) {
				zap.S().Debugf("Skipping TU with MediaID %v (doesn't match %v)", updateMediaId, mediaId)
				continue
			}
			result = append(result, c.toTitleUpdate(update, titleId, updateMediaId))
		}

	default:
		zap.S().Infof("Unrecognized response type: %v", response.Type)
	}

	return result
}

func (c *Client) toTitleUpdate(update catalogUpdate, titleId string, mediaId string) TitleUpdate {
	name := string(update.Name)
	fileName := catalogFileName(name)
	if !strings.HasSuffix(fileName, ".tu") {
		version := string(update.Version)
		if version == "" {
			version = "1"
		}
		fileName = fmt.Sprintf("%v_%v.tu", titleId, version)
	}

	size, _ := strconv.ParseInt(string(update.Size), 10, 64)

	return TitleUpdate{
		FileName:      fileName,
		DownloadUrl:   c.DownloadUrl(string(update.TitleUpdateID)),
		TitleUpdateId: string(update.TitleUpdateID),
		Version:       string(update.Version),
		MediaId:       mediaId,
		TitleId:       titleId,
		TitleName:     name,
		Size:          size,
		UploadDate:    string(update.UploadDate),
		Hash:          string(update.Hash),
		BaseVersion:   string(update.BaseVersion),
	}
}

// catalogFileName keeps the last path element of a catalog name, "" when no usable name is left
func catalogFileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// DownloadUrl builds the download address of a catalog update ID
func (c *Client) DownloadUrl(titleUpdateId string) string {
	return strings.TrimRight(c.endpoints.Resources, "/") + "/TitleUpdate.php?tuid=" + url.QueryEscape(titleUpdateId)
}
