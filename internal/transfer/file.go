package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mrlokans/librarysync/internal/apiclient"
)

// ChunkSize is the unit in which FileTransfer moves bytes and reports
// progress.
const ChunkSize = 64 << 10

const partSuffix = ".part"

// FileTransfer streams between local files and presigned URLs without
// holding the whole file in memory.
type FileTransfer struct {
	httpClient *http.Client
	chunkSize  int
}

func NewFileTransfer(httpClient *http.Client) *FileTransfer {
	return &FileTransfer{httpClient: httpClient, chunkSize: ChunkSize}
}

func (t *FileTransfer) Upload(ctx context.Context, url string, src Source, onProgress ProgressFunc) error {
	f, err := os.Open(src.Path)
	if err != nil {
		return &apiclient.Error{Kind: apiclient.KindUnknown, Message: "failed to open source file", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &apiclient.Error{Kind: apiclient.KindUnknown, Message: "failed to stat source file", Err: err}
	}
	size := info.Size()

	body := newProgressReader(&chunkedReader{r: f, size: t.chunkSize}, size, onProgress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return &apiclient.Error{Kind: apiclient.KindAPIUnavailable, Message: "invalid upload URL", Err: err}
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := doTransfer(ctx, t.httpClient, req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	body.finish()
	return nil
}

// Download writes the content next to dstPath first and renames it into
// place only once the whole body has arrived. Nothing is left behind on
// failure or cancellation.
func (t *FileTransfer) Download(ctx context.Context, url, dstPath string, onProgress ProgressFunc) (Downloaded, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Downloaded{}, &apiclient.Error{Kind: apiclient.KindAPIUnavailable, Message: "invalid download URL", Err: err}
	}

	resp, err := doTransfer(ctx, t.httpClient, req)
	if err != nil {
		return Downloaded{}, err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return Downloaded{}, &apiclient.Error{Kind: apiclient.KindUnknown, Message: "failed to create destination directory", Err: err}
	}

	tmpPath := dstPath + partSuffix
	f, err := os.Create(tmpPath)
	if err != nil {
		return Downloaded{}, &apiclient.Error{Kind: apiclient.KindUnknown, Message: "failed to create destination file", Err: err}
	}

	body := newProgressReader(resp.Body, resp.ContentLength, onProgress)
	dst := &errWriter{w: f}
	written, copyErr := io.CopyBuffer(dst, body, make([]byte, t.chunkSize))
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		switch {
		case dst.err != nil:
			return Downloaded{}, &apiclient.Error{Kind: apiclient.KindUnknown, Message: "failed to write destination file", Err: dst.err}
		case copyErr != nil:
			return Downloaded{}, apiclient.FromTransport(ctx, copyErr)
		default:
			return Downloaded{}, &apiclient.Error{Kind: apiclient.KindUnknown, Message: "failed to write destination file", Err: closeErr}
		}
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(tmpPath)
		return Downloaded{}, &apiclient.Error{
			Kind:    apiclient.KindNetwork,
			Message: fmt.Sprintf("short download: got %d of %d bytes", written, resp.ContentLength),
		}
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return Downloaded{}, &apiclient.Error{Kind: apiclient.KindUnknown, Message: "failed to move downloaded file into place", Err: err}
	}

	body.finish()
	return Downloaded{Path: dstPath, Size: written}, nil
}

// chunkedReader caps every Read at size bytes so progress is sampled at
// chunk granularity no matter how large a buffer the consumer offers.
type chunkedReader struct {
	r    io.Reader
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}

// errWriter remembers write failures so they are not mistaken for network
// errors. It also hides ReaderFrom so io.CopyBuffer uses the given buffer.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
