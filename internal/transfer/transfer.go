// Package transfer moves book content to and from presigned URLs.
//
// Two strategies exist: FileTransfer streams between local files and the
// network in fixed-size chunks (desktop shell), MemoryTransfer works on
// in-memory content (browser build). One is chosen at startup with
// ForPlatform and used for every call.
//
// Presigned URLs are capabilities: no bearer token is sent.
package transfer

import (
	"context"
	"io"
	"net/http"

	"github.com/mrlokans/librarysync/internal/apiclient"
	"github.com/mrlokans/librarysync/internal/config"
)

// Source is the content to upload. FileTransfer reads Path; MemoryTransfer
// reads Reader, falling back to Path.
type Source struct {
	Path   string
	Reader io.Reader
	Size   int64
}

// Downloaded is the result of a download: a local path for FileTransfer,
// the bytes for MemoryTransfer.
type Downloaded struct {
	Path string
	Data []byte
	Size int64
}

// Primitive performs one upload or download against a presigned URL.
type Primitive interface {
	Upload(ctx context.Context, url string, src Source, onProgress ProgressFunc) error
	Download(ctx context.Context, url, dstPath string, onProgress ProgressFunc) (Downloaded, error)
}

// ForPlatform selects the transfer strategy for the configured platform.
func ForPlatform(platform config.Platform, httpClient *http.Client) Primitive {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if platform == config.PlatformWeb {
		return NewMemoryTransfer(httpClient)
	}
	return NewFileTransfer(httpClient)
}

// doTransfer runs req and classifies any failure. The caller owns resp.Body.
func doTransfer(ctx context.Context, httpClient *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, apiclient.FromTransport(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, apiclient.ErrorFromResponse(resp)
	}
	return resp, nil
}
