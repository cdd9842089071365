// Package sync exchanges incremental record changes with the remote sync
// endpoint. It is a typed transport only: conflict resolution happens on
// the server and cursor bookkeeping belongs to the caller.
package sync

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mrlokans/librarysync/internal/apiclient"
	"github.com/mrlokans/librarysync/internal/entities"
)

// Result holds the records returned by a pull or push.
//
// A nil slice means that type was not synchronized at all. An empty slice
// means it was synchronized and nothing changed.
type Result struct {
	Books   []entities.Book       `json:"books"`
	Notes   []entities.BookNote   `json:"notes"`
	Configs []entities.BookConfig `json:"configs"`

	// Skipped is set when the round was not attempted, with the reason.
	Skipped apiclient.Kind `json:"-"`
}

// Pulled reports whether records of type t came back from the server.
func (r *Result) Pulled(t entities.SyncType) bool {
	if r == nil {
		return false
	}
	switch t {
	case entities.SyncTypeBooks:
		return r.Books != nil
	case entities.SyncTypeConfigs:
		return r.Configs != nil
	case entities.SyncTypeNotes:
		return r.Notes != nil
	}
	return false
}

// Payload carries locally modified records to push. Empty types are omitted.
type Payload struct {
	Books   []entities.Book       `json:"books,omitempty"`
	Notes   []entities.BookNote   `json:"notes,omitempty"`
	Configs []entities.BookConfig `json:"configs,omitempty"`
}

// Empty reports whether there is nothing to push.
func (p Payload) Empty() bool {
	return len(p.Books) == 0 && len(p.Notes) == 0 && len(p.Configs) == 0
}

type Client struct {
	api *apiclient.Client
}

func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// PullChanges fetches records changed after since (ms). syncType and
// bookHash narrow the pull when not empty.
//
// Being offline, signed out, unconfigured or unable to reach the server
// yields a skipped Result and no error. Server-side failures are errors.
func (c *Client) PullChanges(ctx context.Context, since int64, syncType entities.SyncType, bookHash string) (*Result, error) {
	session, err := c.api.Preflight(ctx)
	if err != nil {
		return skipped("pull", err)
	}

	query := url.Values{}
	query.Set("since", strconv.FormatInt(since, 10))
	query.Set("type", string(syncType))
	query.Set("book", bookHash)

	var result Result
	if err := c.api.DoJSON(ctx, session, http.MethodGet, apiclient.Endpoint(session, "/sync", query), nil, &result); err != nil {
		if apiclient.KindOf(err) == apiclient.KindNetwork {
			return skipped("pull", err)
		}
		return nil, fmt.Errorf("failed to pull changes: %w", err)
	}
	return &result, nil
}

// PushChanges sends locally modified records. The server applies
// last-writer-wins per record by updatedAt and returns what it stored.
func (c *Client) PushChanges(ctx context.Context, payload Payload) (*Result, error) {
	session, err := c.api.Preflight(ctx)
	if err != nil {
		return skipped("push", err)
	}

	var result Result
	if err := c.api.DoJSON(ctx, session, http.MethodPost, apiclient.Endpoint(session, "/sync", nil), payload, &result); err != nil {
		if apiclient.KindOf(err) == apiclient.KindNetwork {
			return skipped("push", err)
		}
		return nil, fmt.Errorf("failed to push changes: %w", err)
	}
	return &result, nil
}

// skipped turns a gating or network failure into an empty Result. Other
// failures pass through as errors.
func skipped(op string, err error) (*Result, error) {
	kind := apiclient.KindOf(err)
	switch kind {
	case apiclient.KindOffline, apiclient.KindAPIUnavailable, apiclient.KindUnauthenticated, apiclient.KindNetwork:
		log.Printf("Sync: skipping %s: %v", op, err)
		return &Result{Skipped: kind}, nil
	}
	return nil, fmt.Errorf("failed to %s changes: %w", op, err)
}
