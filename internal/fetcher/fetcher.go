package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a remote source document. Implemented by HTTPFetcher and
// FTPFetcher; the input layer picks one based on the source URL scheme.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// owns the returned reader.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile writes the document to a local path and reports the
	// number of bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
