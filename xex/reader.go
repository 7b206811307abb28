// Package xex reads identifying fields of an Xbox 360 executable through XexTool.
package xex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

var (
	ErrToolNotFound = errors.New("XexTool.exe not found")
	ErrShimNotFound = errors.New("wine not found, it is required to run XexTool.exe on " + runtime.GOOS)

	mediaIdRegex = regexp.MustCompile(`(?i)Media ID:\s*([0-9a-f]{8})`)
	titleIdRegex = regexp.MustCompile(`(?i)Title ID:\s*([0-9a-f]{8})`)
)

// HeaderInfo holds the IDs printed by XexTool, uppercase, empty when absent
type HeaderInfo struct {
	MediaId string
	TitleId string
}

func (h HeaderInfo) IsEmpty() bool {
	return h.MediaId == "" && h.TitleId == ""
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Reader wraps XexTool in list mode
type Reader struct {
	toolPath string
	shim     string
	useShim  bool
	run      commandRunner
}

// NewReader creates a reader for the given XexTool.exe. The shim (wine) is used on every
// platform except Windows.
func NewReader(toolPath string, shim string) *Reader {
	return &Reader{
		toolPath: toolPath,
		shim:     shim,
		useShim:  runtime.GOOS != "windows",
		run:      runCombined,
	}
}

// Check verifies the tool, and the shim where needed, are available
func (r *Reader) Check() error {
	if r.toolPath == "" {
		return ErrToolNotFound
	}
	if info, err := os.Stat(r.toolPath); err != nil || info.IsDir() {
		return fmt.Errorf("%w: %v", ErrToolNotFound, r.toolPath)
	}
	if r.useShim {
		if _, err := exec.LookPath(r.shim); err != nil {
			return ErrShimNotFound
		}
	}
	return nil
}

// Read runs XexTool against xexPath and extracts MediaID and TitleID
func (r *Reader) Read(ctx context.Context, xexPath string) (HeaderInfo, error) {
	name, args := r.command(xexPath)
	output, err := r.run(ctx, name, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			if r.useShim {
				return HeaderInfo{}, ErrShimNotFound
			}
			return HeaderInfo{}, ErrToolNotFound
		}
		return HeaderInfo{}, fmt.Errorf("running xextool on %v failed: %w [output: %v]", xexPath, err, strings.TrimSpace(string(output)))
	}

	return ParseHeaderInfo(string(output)), nil
}

func (r *Reader) command(xexPath string) (string, []string) {
	if r.useShim {
		return r.shim, []string{r.toolPath, "-l", xexPath}
	}
	return r.toolPath, []string{"-l", xexPath}
}

// ParseHeaderInfo extracts the IDs from XexTool's listing
func ParseHeaderInfo(output string) HeaderInfo {
	info := HeaderInfo{}
	if m := mediaIdRegex.FindStringSubmatch(output); len(m) == 2 {
		info.MediaId = strings.ToUpper(m[1])
	}
	if m := titleIdRegex.FindStringSubmatch(output); len(m) == 2 {
		info.TitleId = strings.ToUpper(m[1])
	}
	return info
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
