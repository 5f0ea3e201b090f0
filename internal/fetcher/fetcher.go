// Package fetcher opens lead files from local paths and from HTTP(S) or FTP
// drop locations.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// MaxFileBytes caps the size of a lead file read through ReadAll.
const MaxFileBytes = 10 << 20

// Fetcher downloads a remote file.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Source routes a file location to the right fetcher.
type Source struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewSource builds a Source with HTTP and FTP fetchers.
func NewSource(httpOpts HTTPOptions, ftpOpts FTPOptions) *Source {
	return &Source{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
	}
}

// IsRemote reports whether loc is an http, https or ftp URL.
func IsRemote(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return u.Host != ""
	}
	return false
}

// Open returns a reader for loc. Anything that is not a remote URL is
// treated as a local path.
func (s *Source) Open(ctx context.Context, loc string) (io.ReadCloser, error) {
	if !IsRemote(loc) {
		f, err := os.Open(loc)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open file")
		}
		return f, nil
	}

	u, _ := url.Parse(loc)
	if u.Scheme == "ftp" {
		return s.FTP.Download(ctx, loc)
	}
	return s.HTTP.Download(ctx, loc)
}

// ReadAll reads loc fully, refusing files over MaxFileBytes.
func (s *Source) ReadAll(ctx context.Context, loc string) ([]byte, error) {
	rc, err := s.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, MaxFileBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read")
	}
	if len(data) > MaxFileBytes {
		return nil, eris.Errorf("fetcher: %s exceeds %d bytes", loc, MaxFileBytes)
	}
	return data, nil
}
