package http

import (
	"errors"
	"log"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarysync/internal/apiclient"
	"github.com/mrlokans/librarysync/internal/library"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"` // machine-readable error code
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OutcomeResponse reports what a book operation did.
type OutcomeResponse struct {
	Action library.Action `json:"action"`
	Error  string         `json:"error,omitempty"`
	Code   string         `json:"code,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("Internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondError sends an error response with the given status code.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondOutcome maps a book operation outcome to a status code. Remote
// failures carry their kind as the code.
func respondOutcome(c *gin.Context, outcome library.Outcome) {
	resp := OutcomeResponse{Action: outcome.Action}
	if outcome.Err == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Error = outcome.Err.Error()
	if kind := apiclient.KindOf(outcome.Err); kind != apiclient.KindUnknown {
		resp.Code = string(kind)
	}
	c.JSON(outcomeStatus(outcome), resp)
}

func outcomeStatus(outcome library.Outcome) int {
	switch {
	case errors.Is(outcome.Err, library.ErrBookNotFound):
		return http.StatusNotFound
	case errors.Is(outcome.Err, library.ErrTransferInProgress),
		errors.Is(outcome.Err, library.ErrNoLocalContent),
		errors.Is(outcome.Err, library.ErrNotUploaded):
		return http.StatusConflict
	}

	switch apiclient.KindOf(outcome.Err) {
	case apiclient.KindUnauthenticated:
		return http.StatusUnauthorized
	case apiclient.KindQuotaExceeded:
		return http.StatusInsufficientStorage
	case apiclient.KindOffline, apiclient.KindAPIUnavailable:
		return http.StatusServiceUnavailable
	case apiclient.KindCanceled:
		return http.StatusConflict
	case apiclient.KindNetwork, apiclient.KindServer:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// --- Parameter Parsing ---

var hashPattern = regexp.MustCompile(`^[0-9a-fA-F]{1,64}$`)

// parseHashParam extracts a book hash from URL parameters.
// Returns the hash or responds with a 400 error and returns "", false.
func parseHashParam(c *gin.Context, paramName string) (string, bool) {
	hash := c.Param(paramName)
	if !hashPattern.MatchString(hash) {
		respondBadRequest(c, "invalid "+paramName)
		return "", false
	}
	return hash, true
}
