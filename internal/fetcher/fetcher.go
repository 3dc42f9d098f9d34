// Package fetcher acquires remote source files: HTTP(S) with retry and
// adaptive rate limiting, anonymous FTP, and zip bundle extraction. Remote
// URLs land in a temp directory that the caller disposes of.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pyxis-energy/pyxis-cli/internal/config"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// IsRemote reports whether the argument is a fetchable URL rather than a
// local path.
func IsRemote(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// Fetch downloads a remote source file into a fresh temp directory and
// returns the local path to open. Zip archives are extracted in place and
// the path of the extraction directory is returned, so shapefile bundles
// resolve naturally. cleanup removes the temp directory.
func Fetch(ctx context.Context, rawURL string, cfg config.FetchConfig) (localPath string, cleanup func(), err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, eris.Wrapf(err, "fetch: parse url %s", rawURL)
	}

	var f Fetcher
	switch u.Scheme {
	case "http", "https":
		f = NewHTTPFetcher(HTTPOptions{
			Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
			MaxRetries: cfg.MaxRetries,
			RateLimit:  cfg.RateLimit,
		})
	case "ftp":
		f = NewFTPFetcher(FTPOptions{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second})
	default:
		return "", nil, eris.Errorf("fetch: unsupported scheme %q", u.Scheme)
	}

	dir, err := os.MkdirTemp(cfg.TempDir, "pyxis-fetch-")
	if err != nil {
		return "", nil, eris.Wrap(err, "fetch: create temp dir")
	}
	cleanup = func() { os.RemoveAll(dir) }

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "source"
	}
	dest := filepath.Join(dir, name)

	n, err := f.DownloadToFile(ctx, rawURL, dest)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	zap.L().Info("fetch: downloaded",
		zap.String("url", rawURL),
		zap.Int64("bytes", n),
	)

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		extractDir := filepath.Join(dir, "extracted")
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			cleanup()
			return "", nil, eris.Wrap(err, "fetch: create extract dir")
		}
		files, err := ExtractZIP(dest, extractDir)
		if err != nil {
			cleanup()
			return "", nil, err
		}
		zap.L().Debug("fetch: archive extracted", zap.Int("files", len(files)))
		return extractDir, cleanup, nil
	}

	return dest, cleanup, nil
}
