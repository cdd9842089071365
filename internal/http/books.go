package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarysync/internal/library"
)

const defaultMaxImportBytes = 512 << 20

type BooksController struct {
	library         Library
	maxImportBytes  int64
	transferTimeout time.Duration
}

func NewBooksController(lib Library, maxImportBytes int64, transferTimeout time.Duration) *BooksController {
	if maxImportBytes <= 0 {
		maxImportBytes = defaultMaxImportBytes
	}
	return &BooksController{
		library:         lib,
		maxImportBytes:  maxImportBytes,
		transferTimeout: transferTimeout,
	}
}

func (controller *BooksController) GetAllBooks(c *gin.Context) {
	books := controller.library.Books()
	c.IndentedJSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

func (controller *BooksController) GetBook(c *gin.Context) {
	hash, ok := parseHashParam(c, "hash")
	if !ok {
		return
	}
	book, found := controller.library.Book(hash)
	if !found || book.IsDeleted() {
		respondNotFound(c, "book")
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}

// Import stores every file of the multipart "file" field.
func (controller *BooksController) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, controller.maxImportBytes)

	form, err := c.MultipartForm()
	if err != nil {
		respondBadRequest(c, "expected a multipart form with one or more files")
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		respondBadRequest(c, "no files provided")
		return
	}

	results := make([]library.ImportResult, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondInternalError(c, err, "open upload")
			return
		}
		result, err := controller.library.Import(c.Request.Context(), fh.Filename, f)
		f.Close()
		if errors.Is(err, library.ErrUnsupportedFormat) {
			respondBadRequest(c, err.Error())
			return
		}
		if err != nil {
			respondInternalError(c, err, fmt.Sprintf("import %s", fh.Filename))
			return
		}
		results = append(results, result)
	}

	c.JSON(http.StatusCreated, gin.H{"imported": results, "count": len(results)})
}

// Upload runs the transfer to completion. The request context does not
// cancel it; use CancelTransfer for that.
func (controller *BooksController) Upload(c *gin.Context) {
	hash, ok := parseHashParam(c, "hash")
	if !ok {
		return
	}
	ctx, cancel := controller.transferContext(c)
	defer cancel()
	respondOutcome(c, controller.library.UploadBook(ctx, hash, nil))
}

func (controller *BooksController) Download(c *gin.Context) {
	hash, ok := parseHashParam(c, "hash")
	if !ok {
		return
	}
	ctx, cancel := controller.transferContext(c)
	defer cancel()
	respondOutcome(c, controller.library.DownloadBook(ctx, hash, nil))
}

func (controller *BooksController) Delete(c *gin.Context) {
	hash, ok := parseHashParam(c, "hash")
	if !ok {
		return
	}
	respondOutcome(c, controller.library.DeleteBook(c.Request.Context(), hash))
}

// GetTransfers returns the last published percentage per running transfer.
func (controller *BooksController) GetTransfers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"transfers": controller.library.TransferProgress()})
}

func (controller *BooksController) CancelTransfer(c *gin.Context) {
	hash, ok := parseHashParam(c, "hash")
	if !ok {
		return
	}
	if !controller.library.CancelTransfer(hash) {
		respondNotFound(c, "transfer")
		return
	}
	c.JSON(http.StatusAccepted, SuccessResponse{Message: "transfer canceled"})
}

func (controller *BooksController) transferContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if controller.transferTimeout > 0 {
		return context.WithTimeout(ctx, controller.transferTimeout)
	}
	return context.WithCancel(ctx)
}
