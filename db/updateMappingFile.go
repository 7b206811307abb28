package db

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	UPDATE_MAPPING_FILENAME = "tu_mapping.txt"
)

var mappingLock sync.Mutex

// One line of the mapping sidecar: fileName=titleId=gameName
type UpdateMapping struct {
	FileName string
	TitleId  string
	GameName string
}

// AppendUpdateMapping adds a record to the sidecar file inside folder
func AppendUpdateMapping(folder string, mapping UpdateMapping) error {
	mappingLock.Lock()
	defer mappingLock.Unlock()

	file, err := os.OpenFile(filepath.Join(folder, UPDATE_MAPPING_FILENAME), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = fmt.Fprintf(file, "%s=%s=%s\n", mapping.FileName, mapping.TitleId, mapping.GameName)
	return err
}

// ReadUpdateMappings parses a sidecar file, malformed lines are ignored
func ReadUpdateMappings(path string) ([]UpdateMapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var result []UpdateMapping
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		parts := strings.SplitN(line, "=", 3)
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		titleId := NormalizeId(parts[1])
		if titleId == "" {
			continue
		}
		result = append(result, UpdateMapping{FileName: parts[0], TitleId: titleId, GameName: parts[2]})
	}
	return result, scanner.Err()
}
