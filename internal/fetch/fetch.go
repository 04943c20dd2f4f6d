// Package fetch resolves paper and syllabus sources to local files.
//
// A source is a local path, an http(s) URL, or "-" for standard input.
// Extraction dispatches on file extension and external OCR tools need a
// path, so remote and piped content is written to a temporary file first.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// Size caps for sources. Responses without a Content-Length are capped
// while they are copied.
const (
	MaxFileSizeBytes = 50 << 20
	MaxHTTPSizeBytes = 100 << 20
)

// HTTPRequestTimeout bounds a whole download; connection setup and
// response headers get a share of it.
const HTTPRequestTimeout = 60 * time.Second

// Stdin is the reader used for the "-" source.
var Stdin io.Reader = os.Stdin

var httpClient = &http.Client{
	Timeout: HTTPRequestTimeout,
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: HTTPRequestTimeout / 6}).DialContext,
		TLSHandshakeTimeout:   HTTPRequestTimeout / 6,
		ResponseHeaderTimeout: HTTPRequestTimeout / 2,
		DisableKeepAlives:     true,
	},
}

// IsURL reports whether source is fetched over HTTP.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Materialize returns a local file path holding the content of source.
// Local paths are returned unchanged after a size check. URLs are
// downloaded into dir keeping the URL's extension, or one derived from the
// Content-Type. "-" copies standard input into a .txt file in dir.
func Materialize(ctx context.Context, source, dir string) (string, error) {
	switch {
	case source == "-":
		return writeTemp(dir, ".txt", Stdin, MaxFileSizeBytes)
	case IsURL(source):
		return download(ctx, source, dir)
	default:
		if err := checkFile(source); err != nil {
			return "", err
		}
		return source, nil
	}
}

func download(ctx context.Context, rawURL, dir string) (string, error) {
	resp, err := get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	p, err := writeTemp(dir, extension(rawURL, contentType), resp.Body, MaxHTTPSizeBytes)
	if err != nil {
		return "", err
	}
	slog.Debug("Downloaded source", "url", rawURL, "path", p, "contentType", contentType)
	return p, nil
}

// extension picks a file extension from the URL path, then the content type.
func extension(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 6 {
			return ext
		}
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".html"
	}
	switch mediaType {
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	case "text/markdown":
		return ".md"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tif"
	default:
		return ".html"
	}
}

// writeTemp copies at most limit bytes of r into a new file in dir.
func writeTemp(dir, ext string, r io.Reader, limit int64) (string, error) {
	f, err := os.CreateTemp(dir, "cram-src-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if err == nil && n > limit {
		err = fmt.Errorf("content too large (more than %d bytes)", limit)
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// get issues a GET for rawURL and returns the response of a 200 reply.
func get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", "cram/0.1")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %q: %w", rawURL, err)
	}
	switch {
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %q: status %d", rawURL, resp.StatusCode)
	case resp.ContentLength > MaxHTTPSizeBytes:
		resp.Body.Close()
		return nil, fmt.Errorf("%q is too large (%d bytes, limit %d)", rawURL, resp.ContentLength, MaxHTTPSizeBytes)
	}
	return resp, nil
}

// checkFile verifies a local source exists, is a regular file and is
// within the size limit.
func checkFile(p string) error {
	info, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("file %q does not exist", p)
	case err != nil:
		return fmt.Errorf("failed to access file %q: %w", p, err)
	case info.IsDir():
		return fmt.Errorf("%q is a directory", p)
	case info.Size() > MaxFileSizeBytes:
		return fmt.Errorf("file %q is too large (%d bytes, limit %d)", p, info.Size(), MaxFileSizeBytes)
	}
	return nil
}
