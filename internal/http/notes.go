package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarysync/internal/entities"
)

type NotesController struct {
	library Library
	notes   NoteReader
}

func NewNotesController(library Library, notes NoteReader) *NotesController {
	return &NotesController{library: library, notes: notes}
}

// GetNotes lists the live annotations of a book that is in the library.
func (controller *NotesController) GetNotes(c *gin.Context) {
	hash, ok := parseHashParam(c, "hash")
	if !ok {
		return
	}
	book, found := controller.library.Book(hash)
	if !found || book.IsDeleted() {
		respondNotFound(c, "book")
		return
	}

	notes, err := controller.notes.NotesForBook(hash)
	if err != nil {
		respondInternalError(c, err, "list notes")
		return
	}
	if notes == nil {
		notes = []entities.BookNote{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}
