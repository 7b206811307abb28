package db

import (
	"regexp"
	"strings"
)

var hexIdRegex = regexp.MustCompile(`^[0-9A-F]{8}$`)

// A game found on disk, identified by its default.xex
type GameRecord struct {
	Name    string
	MediaId string
	TitleId string
	XexPath string
}

// A game is usable when at least one of its IDs is known
func (g GameRecord) IsValid() bool {
	return g.MediaId != "" || g.TitleId != ""
}

// NormalizeId uppercases an 8 character hex ID, anything else yields ""
func NormalizeId(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !hexIdRegex.MatchString(id) {
		return ""
	}
	return id
}
