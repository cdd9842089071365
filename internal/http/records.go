package http

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/library"
)

// SaveConfigRequest is the request body for PUT /api/books/:hash/config.
type SaveConfigRequest struct {
	Location string   `json:"location"`
	Progress *float64 `json:"progress"`
}

// SaveNoteRequest is the request body for PUT /api/books/:hash/notes/:id.
type SaveNoteRequest struct {
	Type  string `json:"type" binding:"required,max=32"`
	CFI   string `json:"cfi"`
	Text  string `json:"text"`
	Note  string `json:"note"`
	Style string `json:"style"`
	Color string `json:"color"`
}

var noteIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type RecordsController struct {
	editor RecordEditor
}

func NewRecordsController(editor RecordEditor) *RecordsController {
	return &RecordsController{editor: editor}
}

func (controller *RecordsController) SaveConfig(c *gin.Context) {
	hash, ok := parseHashParam(c, "hash")
	if !ok {
		return
	}
	var req SaveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if req.Progress == nil {
		respondBadRequest(c, "progress is required")
		return
	}
	if *req.Progress < 0 || *req.Progress > 1 {
		respondBadRequest(c, "progress must be between 0 and 1")
		return
	}

	saved, err := controller.editor.SaveConfig(c.Request.Context(), entities.BookConfig{
		BookHash: hash,
		Location: req.Location,
		Progress: *req.Progress,
	})
	if err != nil {
		respondRecordError(c, err, "save config")
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (controller *RecordsController) SaveNote(c *gin.Context) {
	hash, id, ok := parseNoteParams(c)
	if !ok {
		return
	}
	var req SaveNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	saved, err := controller.editor.SaveNote(c.Request.Context(), entities.BookNote{
		ID:       id,
		BookHash: hash,
		Type:     req.Type,
		CFI:      req.CFI,
		Text:     req.Text,
		Note:     req.Note,
		Style:    req.Style,
		Color:    req.Color,
	})
	if err != nil {
		respondRecordError(c, err, "save note")
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (controller *RecordsController) DeleteNote(c *gin.Context) {
	hash, id, ok := parseNoteParams(c)
	if !ok {
		return
	}
	if err := controller.editor.DeleteNote(c.Request.Context(), hash, id); err != nil {
		respondRecordError(c, err, "delete note")
		return
	}
	c.Status(http.StatusNoContent)
}

func parseNoteParams(c *gin.Context) (string, string, bool) {
	hash, ok := parseHashParam(c, "hash")
	if !ok {
		return "", "", false
	}
	id := c.Param("id")
	if !noteIDPattern.MatchString(id) {
		respondBadRequest(c, "invalid id")
		return "", "", false
	}
	return hash, id, true
}

func respondRecordError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, library.ErrBookNotFound):
		respondNotFound(c, "book")
	case errors.Is(err, library.ErrNoteNotFound):
		respondNotFound(c, "note")
	case errors.Is(err, library.ErrNoteConflict):
		respondError(c, http.StatusConflict, err.Error())
	default:
		respondInternalError(c, err, context)
	}
}
