package xboxunity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const downloadChunkSize = 8192

// DownloadProgress receives bytes written so far and the expected total (0 when unknown)
type DownloadProgress func(downloaded int64, total int64)

// Download streams url into dest. The body goes to a temporary file first so an interrupted
// download never leaves a truncated update behind.
func (c *Client) Download(ctx context.Context, url string, dest string, progress DownloadProgress) error {
	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("create download folder: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setCommonHeaders(req)

	zap.S().Infof("Downloading from: %v", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("download error: %v [response: %v]", resp.StatusCode, string(body))
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	zap.S().Debugf("File size: %v bytes", total)

	tmpPath := dest + "." + uuid.NewString() + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
		_ = os.Remove(tmpPath)
	}()

	reader := io.Reader(resp.Body)
	if c.limiter != nil {
		reader = &limitedReader{ctx: ctx, r: resp.Body, limiter: c.limiter}
	}

	buf := make([]byte, downloadChunkSize)
	var downloaded int64
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return err
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("download interrupted after %v bytes: %w", downloaded, readErr)
		}
	}

	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return err
	}

	zap.S().Infof("Download completed: %v", dest)
	return nil
}

// limitedReader throttles reads to the limiter's byte rate
type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if burst := l.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if waitErr := l.limiter.WaitN(l.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
