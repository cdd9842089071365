// Package storage moves one book's content to or from remote object
// storage. Each operation makes an authenticated metadata call for a
// presigned URL, then hands the URL to a transfer.Primitive.
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mrlokans/librarysync/internal/apiclient"
	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/transfer"
	"github.com/mrlokans/librarysync/internal/utils"
)

// FileRef points at the content to upload. Path is used by file-based
// transfers, Reader by in-memory ones.
type FileRef struct {
	Name   string
	Size   int64
	Path   string
	Reader io.Reader
}

// Client performs storage operations for a signed-in user.
type Client struct {
	api       *apiclient.Client
	primitive transfer.Primitive
}

func NewClient(api *apiclient.Client, primitive transfer.Primitive) *Client {
	return &Client{api: api, primitive: primitive}
}

type uploadRequest struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	BookHash string `json:"bookHash,omitempty"`
}

type uploadResponse struct {
	UploadURL string `json:"uploadUrl"`
}

type downloadResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// RemoteFileName is the file name a book's content is stored under.
func RemoteFileName(book *entities.Book) string {
	return utils.SanitizeFilename(book.Title) + utils.ExtensionForFormat(book.Format)
}

// RemoteFilePath is the storage key of a book's content below the user's
// namespace.
func RemoteFilePath(book *entities.Book) string {
	return book.Hash + "/" + RemoteFileName(book)
}

// Upload sends the book's content. Nothing is committed remotely unless the
// transfer completes.
func (c *Client) Upload(ctx context.Context, book *entities.Book, file FileRef, onProgress transfer.ProgressFunc) error {
	session, err := c.api.Preflight(ctx)
	if err != nil {
		log.Printf("Storage: skipping upload of %s: %v", book.Hash, err)
		return err
	}

	fileName := file.Name
	if fileName == "" {
		fileName = RemoteFileName(book)
	}

	var presigned uploadResponse
	err = c.api.DoJSON(ctx, session, http.MethodPost, apiclient.Endpoint(session, "/storage/upload", nil),
		uploadRequest{FileName: fileName, FileSize: file.Size, BookHash: book.Hash}, &presigned)
	if err != nil {
		log.Printf("Storage: upload URL request for %s failed: %v", book.Hash, err)
		return err
	}
	if presigned.UploadURL == "" {
		return &apiclient.Error{Kind: apiclient.KindServer, Message: "upload URL missing from response"}
	}

	started := time.Now()
	src := transfer.Source{Path: file.Path, Reader: file.Reader, Size: file.Size}
	if err := c.primitive.Upload(ctx, presigned.UploadURL, src, onProgress); err != nil {
		log.Printf("Storage: upload of %s failed: %v", book.Hash, err)
		return err
	}

	log.Printf("Storage: uploaded %s (%s in %s)", book.Hash, humanize.Bytes(uint64(max(file.Size, 0))), time.Since(started).Round(time.Millisecond))
	return nil
}

// Download fetches the book's content into dstPath, or into memory for
// in-memory transfers.
func (c *Client) Download(ctx context.Context, book *entities.Book, dstPath string, onProgress transfer.ProgressFunc) (transfer.Downloaded, error) {
	session, err := c.api.Preflight(ctx)
	if err != nil {
		log.Printf("Storage: skipping download of %s: %v", book.Hash, err)
		return transfer.Downloaded{}, err
	}

	fileKey, err := c.fileKey(ctx, RemoteFilePath(book))
	if err != nil {
		return transfer.Downloaded{}, err
	}

	var presigned downloadResponse
	endpoint := apiclient.Endpoint(session, "/storage/download", url.Values{"fileKey": {fileKey}})
	if err := c.api.DoJSON(ctx, session, http.MethodGet, endpoint, nil, &presigned); err != nil {
		log.Printf("Storage: download URL request for %s failed: %v", book.Hash, err)
		return transfer.Downloaded{}, err
	}
	if presigned.DownloadURL == "" {
		return transfer.Downloaded{}, &apiclient.Error{Kind: apiclient.KindServer, Message: "download URL missing from response"}
	}

	started := time.Now()
	result, err := c.primitive.Download(ctx, presigned.DownloadURL, dstPath, onProgress)
	if err != nil {
		log.Printf("Storage: download of %s failed: %v", book.Hash, err)
		return transfer.Downloaded{}, err
	}

	log.Printf("Storage: downloaded %s (%s in %s)", book.Hash, humanize.Bytes(uint64(result.Size)), time.Since(started).Round(time.Millisecond))
	return result, nil
}

// Delete removes a file from the user's namespace. Deleting a file that is
// already gone is not an error on the server, so a repeat is safe.
func (c *Client) Delete(ctx context.Context, filePath string) error {
	session, err := c.api.Preflight(ctx)
	if err != nil {
		log.Printf("Storage: skipping delete of %s: %v", filePath, err)
		return err
	}

	fileKey, err := c.fileKey(ctx, filePath)
	if err != nil {
		return err
	}

	endpoint := apiclient.Endpoint(session, "/storage/delete", url.Values{"fileKey": {fileKey}})
	if err := c.api.DoJSON(ctx, session, http.MethodDelete, endpoint, nil, nil); err != nil {
		log.Printf("Storage: delete of %s failed: %v", filePath, err)
		return err
	}

	log.Printf("Storage: deleted %s", filePath)
	return nil
}

func (c *Client) fileKey(ctx context.Context, filePath string) (string, error) {
	userID, err := c.api.UserID(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", userID, filePath), nil
}
