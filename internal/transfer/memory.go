package transfer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"

	"github.com/mrlokans/librarysync/internal/apiclient"
)

// MemoryTransfer moves whole contents through memory. It is used where no
// writable file system is available; Download returns the bytes and leaves
// persisting them to the caller.
type MemoryTransfer struct {
	httpClient *http.Client
}

func NewMemoryTransfer(httpClient *http.Client) *MemoryTransfer {
	return &MemoryTransfer{httpClient: httpClient}
}

func (t *MemoryTransfer) Upload(ctx context.Context, url string, src Source, onProgress ProgressFunc) error {
	content, err := readSource(src)
	if err != nil {
		return &apiclient.Error{Kind: apiclient.KindUnknown, Message: "failed to read source content", Err: err}
	}

	body := newProgressReader(&chunkedReader{r: bytes.NewReader(content), size: ChunkSize}, int64(len(content)), onProgress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return &apiclient.Error{Kind: apiclient.KindAPIUnavailable, Message: "invalid upload URL", Err: err}
	}
	req.ContentLength = int64(len(content))
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

func (t *MemoryTransfer) Download(ctx context.Context, url, dstPath string, onProgress ProgressFunc) (Downloaded, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Downloaded{}, &apiclient.Error{Kind: apiclient.KindAPIUnavailable, Message: "invalid download URL", Err: err}
	}

	resp, err := doTransfer(ctx, t.httpClient, req)
	if err != nil {
		return Downloaded{}, err
	}
	defer resp.Body.Close()

	body := newProgressReader(resp.Body, resp.ContentLength, onProgress)
	data, err := io.ReadAll(body)
	if err != nil {
		return Downloaded{}, apiclient.FromTransport(ctx, err)
	}

	body.finish()
	return Downloaded{Path: dstPath, Data: data, Size: int64(len(data))}, nil
}

func readSource(src Source) ([]byte, error) {
	if src.Reader != nil {
		return io.ReadAll(src.Reader)
	}
	return os.ReadFile(src.Path)
}
