package settings

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/magiconair/properties"
	"go.uber.org/zap"
)

const (
	TOOLS_FILENAME = "tools.properties"

	TOOL_XEXTOOL      = "xextool"
	TOOL_EXTRACT_XISO = "extract_xiso"
	TOOL_WINE         = "wine"
)

// Locations of the external native tools
type Tools struct {
	XexTool     string
	ExtractXiso string
	// Compatibility shim used to run XexTool.exe outside of Windows
	Wine string
}

// ReadTools resolves the external tools, tools.properties entries win over the default locations.
// Empty values mean the tool was not found.
func ReadTools(baseFolder string) Tools {
	tools := Tools{
		XexTool:     findXexTool(baseFolder),
		ExtractXiso: findExtractXiso(baseFolder),
		Wine:        "wine",
	}

	p, err := properties.LoadFile(filepath.Join(baseFolder, TOOLS_FILENAME), properties.UTF8)
	if err != nil {
		return tools
	}
	zap.S().Debugf("Using tool locations from %v", TOOLS_FILENAME)

	if v, ok := p.Get(TOOL_XEXTOOL); ok && v != "" {
		tools.XexTool = v
	}
	if v, ok := p.Get(TOOL_EXTRACT_XISO); ok && v != "" {
		tools.ExtractXiso = v
	}
	if v, ok := p.Get(TOOL_WINE); ok && v != "" {
		tools.Wine = v
	}
	return tools
}

func findXexTool(baseFolder string) string {
	for _, folder := range []string{"XexTool", "xextool"} {
		candidate := filepath.Join(baseFolder, folder, "XexTool.exe")
		if isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func findExtractXiso(baseFolder string) string {
	if runtime.GOOS == "windows" {
		candidate := filepath.Join(baseFolder, "isoextract", "extract-xiso.exe")
		if isFile(candidate) {
			return candidate
		}
		return ""
	}

	candidates := []string{
		filepath.Join(baseFolder, "isoextract", "extract-xiso"),
		filepath.Join(baseFolder, "extract-xiso"),
		"/usr/local/bin/extract-xiso",
		"/usr/bin/extract-xiso",
	}
	for _, candidate := range candidates {
		if isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
