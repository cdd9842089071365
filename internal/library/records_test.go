package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarysync/internal/entities"
)

func TestSaveConfig(t *testing.T) {
	h := newHarness(t)
	h.seed(t, entities.Book{Hash: "a", Title: "A", UpdatedAt: 100}, "")

	saved, err := h.o.SaveConfig(context.Background(), entities.BookConfig{BookHash: "a", Location: "epubcfi(/6/4)", Progress: 0.25})
	require.NoError(t, err)
	assert.Equal(t, "user-1", saved.UserID)
	assert.NotZero(t, saved.UpdatedAt)

	pending, err := h.records.PendingConfigs()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 0.25, pending[0].Progress)

	_, err = h.o.SaveConfig(context.Background(), entities.BookConfig{BookHash: "missing", Progress: 0.1})
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestSaveConfig_SortsAfterPulledCopy(t *testing.T) {
	h := newHarness(t)
	h.seed(t, entities.Book{Hash: "a", Title: "A", UpdatedAt: 100}, "")
	ahead := entities.NowMillis() + time.Hour.Milliseconds()
	require.NoError(t, h.records.ApplyRemoteConfigs([]entities.BookConfig{{BookHash: "a", UserID: "user-1", Progress: 0.9, UpdatedAt: ahead}}))

	saved, err := h.o.SaveConfig(context.Background(), entities.BookConfig{BookHash: "a", Progress: 0.3})
	require.NoError(t, err)
	assert.Equal(t, ahead+1, saved.UpdatedAt)

	stored, err := h.records.FindConfig("a", "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 0.3, stored.Progress)
	assert.True(t, stored.Dirty)
}

func TestSaveNote(t *testing.T) {
	h := newHarness(t)
	h.seed(t, entities.Book{Hash: "a", Title: "A", UpdatedAt: 100}, "")
	h.seed(t, entities.Book{Hash: "b", Title: "B", UpdatedAt: 100}, "")

	created, err := h.o.SaveNote(context.Background(), entities.BookNote{ID: "n1", BookHash: "a", Type: "highlight", Text: "first"})
	require.NoError(t, err)
	assert.Equal(t, created.UpdatedAt, created.CreatedAt)
	assert.Equal(t, "user-1", created.UserID)

	edited, err := h.o.SaveNote(context.Background(), entities.BookNote{ID: "n1", BookHash: "a", Type: "highlight", Text: "second"})
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, edited.CreatedAt)
	assert.Greater(t, edited.UpdatedAt, created.UpdatedAt)

	notes, err := h.records.NotesForBook("a")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "second", notes[0].Text)

	_, err = h.o.SaveNote(context.Background(), entities.BookNote{ID: "n1", BookHash: "b", Type: "note"})
	assert.ErrorIs(t, err, ErrNoteConflict)
}

func TestDeleteNote(t *testing.T) {
	h := newHarness(t)
	h.seed(t, entities.Book{Hash: "a", Title: "A", UpdatedAt: 100}, "")
	require.NoError(t, h.records.ApplyRemoteNotes([]entities.BookNote{{ID: "n1", BookHash: "a", Type: "note", Text: "kept", UpdatedAt: 50}}))

	require.NoError(t, h.o.DeleteNote(context.Background(), "a", "n1"))

	notes, err := h.records.NotesForBook("a")
	require.NoError(t, err)
	assert.Empty(t, notes)

	pending, err := h.records.PendingNotes()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].DeletedAt)
	assert.Equal(t, "kept", pending[0].Text, "the tombstone keeps the content")

	assert.NoError(t, h.o.DeleteNote(context.Background(), "a", "n1"), "deleting twice is a no-op")
	assert.ErrorIs(t, h.o.DeleteNote(context.Background(), "a", "other"), ErrNoteNotFound)
	assert.ErrorIs(t, h.o.DeleteNote(context.Background(), "b", "n1"), ErrNoteNotFound)
}
