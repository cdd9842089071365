package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarysync/internal/apiclient"
	"github.com/mrlokans/librarysync/internal/connectivity"
	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/oauth2"
	"github.com/mrlokans/librarysync/internal/storage"
	"github.com/mrlokans/librarysync/internal/transfer"
)

const (
	testTimeout = 2 * time.Second
	tick        = 5 * time.Millisecond
)

// countingAPI answers every storage request with status and counts calls.
func countingAPI(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// withRemote replaces the fake storage with a real client against server.
func withRemote(server *httptest.Server, tokens oauth2.TokenSource) harnessOption {
	return func(cfg *Config) {
		gate := connectivity.NewGate(server.URL+"/api", connectivity.NewStaticMonitor(true))
		api := apiclient.NewClient(gate, tokens, apiclient.WithHTTPClient(server.Client()))
		cfg.Checker = gate
		cfg.Tokens = tokens
		cfg.Storage = storage.NewClient(api, transfer.NewFileTransfer(server.Client()))
	}
}

func TestDecideAutoUpload_Order(t *testing.T) {
	book := &entities.Book{Hash: "h", Title: "Dune"}
	uploaded := &entities.Book{Hash: "h", Title: "Dune", UploadedAt: entities.Millis(1)}

	t.Run("unauthenticated wins over everything", func(t *testing.T) {
		h := newHarness(t)
		h.tokens.SetSession("", "")
		require.NoError(t, h.prefs.SetAutoUpload(false))
		h.monitor.SetOnline(false)

		assert.Equal(t, Decision{Reason: SkipUnauthenticated}, h.o.DecideAutoUpload(context.Background(), uploaded))
	})

	t.Run("auto-upload disabled", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.prefs.SetAutoUpload(false))
		h.monitor.SetOnline(false)

		assert.Equal(t, Decision{Reason: SkipAutoUploadDisabled}, h.o.DecideAutoUpload(context.Background(), book))
	})

	t.Run("offline", func(t *testing.T) {
		h := newHarness(t)
		h.monitor.SetOnline(false)

		assert.Equal(t, Decision{Reason: SkipOffline}, h.o.DecideAutoUpload(context.Background(), book))
	})

	t.Run("no API configured", func(t *testing.T) {
		h := newHarness(t, func(cfg *Config) {
			cfg.Checker = connectivity.NewGate("", connectivity.NewStaticMonitor(true))
		})

		assert.Equal(t, Decision{Reason: SkipAPIUnconfigured}, h.o.DecideAutoUpload(context.Background(), book))
	})

	t.Run("already uploaded", func(t *testing.T) {
		h := newHarness(t)
		assert.Equal(t, Decision{Reason: SkipAlreadyUploaded}, h.o.DecideAutoUpload(context.Background(), uploaded))
	})

	t.Run("all checks pass", func(t *testing.T) {
		h := newHarness(t)
		assert.Equal(t, Decision{Upload: true}, h.o.DecideAutoUpload(context.Background(), book))
	})
}

func TestImport_UnauthenticatedMakesNoRequests(t *testing.T) {
	server, calls := countingAPI(t, http.StatusOK, `{}`)
	h := newHarness(t, withRemote(server, oauth2.NewStaticTokenSource("", "")))

	result, err := h.o.Import(context.Background(), "Dune.epub", strings.NewReader("spice"))
	require.NoError(t, err)
	h.o.Wait()

	assert.Equal(t, Decision{Reason: SkipUnauthenticated}, result.Decision)
	assert.Equal(t, int32(0), calls.Load())
	assert.Nil(t, h.stored(t, result.Book.Hash).UploadedAt)
}

func TestUploadBook_QuotaExceeded(t *testing.T) {
	server, calls := countingAPI(t, http.StatusPaymentRequired, `{"error":"Insufficient storage quota"}`)
	h := newHarness(t, withRemote(server, oauth2.NewStaticTokenSource("token-1", "user-1")))
	book := h.seed(t, entities.Book{Hash: "q1", Title: "Dune", Format: "EPUB", UpdatedAt: 10}, "spice")

	outcome := h.o.UploadBook(context.Background(), book.Hash, nil)

	assert.Equal(t, ActionWarned, outcome.Action)
	assert.Equal(t, apiclient.KindQuotaExceeded, apiclient.KindOf(outcome.Err))
	assert.Equal(t, int32(1), calls.Load(), "only the upload URL request is made")

	current, ok := h.o.Book(book.Hash)
	require.True(t, ok)
	assert.Nil(t, current.UploadedAt)
	assert.Nil(t, h.stored(t, book.Hash).UploadedAt)
	assert.Equal(t, []string{"warning: Insufficient storage quota"}, h.noticeMessages())
	assert.Equal(t, 0, h.syncer.pushCount())
}

func TestUploadBook_UnauthenticatedThroughClient(t *testing.T) {
	server, calls := countingAPI(t, http.StatusOK, `{}`)
	h := newHarness(t, withRemote(server, oauth2.NewStaticTokenSource("", "")))
	require.NoError(t, h.prefs.SetKeepLogin(true))
	book := h.seed(t, entities.Book{Hash: "u1", Title: "Dune", Format: "EPUB"}, "spice")

	outcome := h.o.UploadBook(context.Background(), book.Hash, nil)

	assert.Equal(t, ActionRelogin, outcome.Action)
	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, h.prefs.GetKeepLogin())
	assert.True(t, h.board.LoginRequested())
}

func TestUploadBook_FailurePolicy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		keepLogin bool
		action    Action
		notice    string
		relogin   bool
	}{
		{
			name:   "quota",
			err:    &apiclient.Error{Kind: apiclient.KindQuotaExceeded},
			action: ActionWarned,
			notice: "warning: Insufficient storage quota",
		},
		{
			name:   "offline",
			err:    &apiclient.Error{Kind: apiclient.KindOffline},
			action: ActionWarned,
			notice: "warning: Cannot upload in offline mode. Connect to the internet and try again.",
		},
		{
			name:   "api unavailable",
			err:    &apiclient.Error{Kind: apiclient.KindAPIUnavailable},
			action: ActionWarned,
			notice: "warning: Upload service is currently unavailable.",
		},
		{
			name:   "unauthenticated without keep-login",
			err:    &apiclient.Error{Kind: apiclient.KindUnauthenticated},
			action: ActionWarned,
			notice: "warning: You need to be logged in to upload books.",
		},
		{
			name:      "unauthenticated with keep-login",
			err:       &apiclient.Error{Kind: apiclient.KindUnauthenticated},
			keepLogin: true,
			action:    ActionRelogin,
			notice:    "warning: Your session has expired. Please sign in again.",
			relogin:   true,
		},
		{
			name:   "network error",
			err:    &apiclient.Error{Kind: apiclient.KindNetwork},
			action: ActionFailed,
			notice: "error: Failed to upload book: Dune",
		},
		{
			name:   "server error",
			err:    &apiclient.Error{Kind: apiclient.KindServer, StatusCode: 500},
			action: ActionFailed,
			notice: "error: Failed to upload book: Dune",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.prefs.SetKeepLogin(tt.keepLogin))
			h.storage.uploadErr = tt.err
			book := h.seed(t, entities.Book{Hash: "f1", Title: "Dune", Format: "EPUB", UpdatedAt: 10}, "spice")

			outcome := h.o.UploadBook(context.Background(), book.Hash, nil)

			assert.Equal(t, tt.action, outcome.Action)
			assert.ErrorIs(t, outcome.Err, tt.err)
			assert.Equal(t, []string{tt.notice}, h.noticeMessages())
			assert.Equal(t, tt.relogin, h.board.LoginRequested())
			if tt.relogin {
				assert.False(t, h.prefs.GetKeepLogin())
			}

			assert.Len(t, h.storage.uploads, 1, "no automatic retry")
			assert.Nil(t, h.stored(t, book.Hash).UploadedAt)
			assert.Equal(t, 0, h.syncer.pushCount())
			assert.Empty(t, h.o.TransferProgress())
		})
	}
}

func TestUploadBook_Success(t *testing.T) {
	h := newHarness(t)
	book := h.seed(t, entities.Book{Hash: "s1", Title: "Dune", Format: "EPUB", UpdatedAt: 10}, "spice")

	var last transfer.Progress
	outcome := h.o.UploadBook(context.Background(), book.Hash, func(p transfer.Progress) { last = p })

	require.Equal(t, ActionUploaded, outcome.Action)
	require.NoError(t, outcome.Err)
	assert.Equal(t, int64(5), last.Transferred)

	current, _ := h.o.Book(book.Hash)
	require.NotNil(t, current.UploadedAt)
	assert.Greater(t, current.UpdatedAt, int64(10))
	assert.NotNil(t, h.stored(t, book.Hash).UploadedAt)
	assert.Equal(t, 1, h.syncer.pushCount())
	assert.Empty(t, h.o.TransferProgress())
}

func TestUploadBook_MissingContent(t *testing.T) {
	h := newHarness(t)
	h.seed(t, entities.Book{Hash: "m1", Title: "Dune", Format: "EPUB"}, "")

	outcome := h.o.UploadBook(context.Background(), "m1", nil)
	assert.Equal(t, ActionFailed, outcome.Action)
	assert.ErrorIs(t, outcome.Err, ErrNoLocalContent)
	assert.Empty(t, h.storage.uploads)

	outcome = h.o.UploadBook(context.Background(), "nope", nil)
	assert.ErrorIs(t, outcome.Err, ErrBookNotFound)
}

func TestUploadBook_CancelAndConcurrentTransfer(t *testing.T) {
	h := newHarness(t)
	h.storage.started = make(chan struct{})
	h.storage.release = make(chan struct{})
	book := h.seed(t, entities.Book{Hash: "c1", Title: "Dune", Format: "EPUB", UpdatedAt: 10}, "sand")

	done := make(chan Outcome, 1)
	go func() { done <- h.o.UploadBook(context.Background(), book.Hash, nil) }()
	<-h.storage.started

	require.Eventually(t, func() bool {
		_, ok := h.o.TransferProgress()[book.Hash]
		return ok
	}, testTimeout, tick)
	assert.InDelta(t, 50, h.o.TransferProgress()[book.Hash], 0.001)

	second := h.o.UploadBook(context.Background(), book.Hash, nil)
	assert.ErrorIs(t, second.Err, ErrTransferInProgress)
	deleted := h.o.DeleteBook(context.Background(), book.Hash)
	assert.ErrorIs(t, deleted.Err, ErrTransferInProgress)

	assert.True(t, h.o.CancelTransfer(book.Hash))
	outcome := <-done

	assert.Equal(t, ActionCanceled, outcome.Action)
	assert.Empty(t, h.noticeMessages(), "cancellation is silent")
	assert.Nil(t, h.stored(t, book.Hash).UploadedAt)
	assert.Empty(t, h.o.TransferProgress())
	assert.False(t, h.o.CancelTransfer(book.Hash))
}

func TestDownloadBook(t *testing.T) {
	h := newHarness(t)
	h.seed(t, entities.Book{Hash: "d1", Title: "Dune", Format: "EPUB", UploadedAt: entities.Millis(5)}, "")

	outcome := h.o.DownloadBook(context.Background(), "d1", nil)
	require.Equal(t, ActionDownloaded, outcome.Action)

	want := filepath.Join(h.dir, "d1", "Dune.epub")
	content, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "downloaded content", string(content))

	current, _ := h.o.Book("d1")
	assert.Equal(t, want, current.LocalPath)
	assert.NotNil(t, current.DownloadedAt)

	stored := h.stored(t, "d1")
	assert.Equal(t, want, stored.LocalPath)
	assert.NotNil(t, stored.DownloadedAt)
	assert.Equal(t, []string{"info: Book downloaded: Dune"}, h.noticeMessages())
}

func TestDownloadBook_Failures(t *testing.T) {
	h := newHarness(t)
	h.seed(t, entities.Book{Hash: "n1", Title: "Local Only", Format: "EPUB"}, "")
	h.seed(t, entities.Book{Hash: "n2", Title: "Remote", Format: "EPUB", UploadedAt: entities.Millis(5)}, "")

	outcome := h.o.DownloadBook(context.Background(), "n1", nil)
	assert.ErrorIs(t, outcome.Err, ErrNotUploaded)
	assert.Empty(t, h.storage.downloads)

	h.storage.downloadErr = &apiclient.Error{Kind: apiclient.KindServer, StatusCode: 404}
	outcome = h.o.DownloadBook(context.Background(), "n2", nil)
	assert.Equal(t, ActionFailed, outcome.Action)
	assert.Nil(t, h.stored(t, "n2").DownloadedAt)
	assert.Contains(t, h.noticeMessages(), "error: Failed to download book: Remote")
}

func TestDeleteBook(t *testing.T) {
	h := newHarness(t)
	book := h.seed(t, entities.Book{Hash: "x1", Title: "Dune", Format: "EPUB", UpdatedAt: 10, UploadedAt: entities.Millis(5)}, "spice")

	outcome := h.o.DeleteBook(context.Background(), book.Hash)
	require.Equal(t, ActionDeleted, outcome.Action)

	assert.Equal(t, []string{"x1/Dune.epub"}, h.storage.deletes)
	assert.NotNil(t, h.stored(t, book.Hash).DeletedAt, "the row is kept as a tombstone")
	assert.NoFileExists(t, book.LocalPath)
	assert.NoDirExists(t, filepath.Dir(book.LocalPath))
	assert.Empty(t, h.o.Books())

	require.Equal(t, 1, h.syncer.pushCount())
	require.Len(t, h.syncer.pushes[0].Books, 1)
	assert.NotNil(t, h.syncer.pushes[0].Books[0].DeletedAt)

	again := h.o.DeleteBook(context.Background(), book.Hash)
	assert.Equal(t, ActionDeleted, again.Action)
	assert.Len(t, h.storage.deletes, 1)
}

func TestDeleteBook_LocalOnlySkipsRemote(t *testing.T) {
	h := newHarness(t)
	h.seed(t, entities.Book{Hash: "x2", Title: "Dune", Format: "EPUB", UpdatedAt: 10}, "spice")

	outcome := h.o.DeleteBook(context.Background(), "x2")
	require.Equal(t, ActionDeleted, outcome.Action)
	assert.Empty(t, h.storage.deletes)
	assert.NotNil(t, h.stored(t, "x2").DeletedAt)
}

func TestDeleteBook_RemoteFailureKeepsRecord(t *testing.T) {
	h := newHarness(t)
	h.storage.deleteErr = &apiclient.Error{Kind: apiclient.KindNetwork}
	book := h.seed(t, entities.Book{Hash: "x3", Title: "Dune", Format: "EPUB", UpdatedAt: 10, UploadedAt: entities.Millis(5)}, "spice")

	outcome := h.o.DeleteBook(context.Background(), book.Hash)

	assert.Equal(t, ActionFailed, outcome.Action)
	assert.Nil(t, h.stored(t, book.Hash).DeletedAt)
	assert.FileExists(t, book.LocalPath)
	assert.Len(t, h.o.Books(), 1)
	assert.Equal(t, 0, h.syncer.pushCount())
	assert.Equal(t, []string{"error: Failed to delete book: Dune"}, h.noticeMessages())
}
