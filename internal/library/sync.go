package library

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mrlokans/librarysync/internal/apiclient"
	"github.com/mrlokans/librarysync/internal/entities"
	syncclient "github.com/mrlokans/librarysync/internal/sync"
)

// SyncOptions narrows a sync round. The zero value covers everything.
type SyncOptions struct {
	Type     entities.SyncType
	BookHash string
}

// SyncReport summarizes a sync round.
type SyncReport struct {
	Pulled  map[entities.SyncType]int `json:"pulled"`
	Pushed  map[entities.SyncType]int `json:"pushed"`
	Skipped apiclient.Kind            `json:"skipped,omitempty"`
}

func newSyncReport() SyncReport {
	return SyncReport{
		Pulled: make(map[entities.SyncType]int),
		Pushed: make(map[entities.SyncType]int),
	}
}

func (r SyncReport) String() string {
	if r.Skipped != "" {
		return fmt.Sprintf("skipped: %s", r.Skipped)
	}
	var parts []string
	for _, t := range entities.AllSyncTypes {
		if n, ok := r.Pulled[t]; ok {
			parts = append(parts, fmt.Sprintf("pulled %d %s", n, t))
		}
	}
	for _, t := range entities.AllSyncTypes {
		if n, ok := r.Pushed[t]; ok {
			parts = append(parts, fmt.Sprintf("pushed %d %s", n, t))
		}
	}
	if len(parts) == 0 {
		return "up to date"
	}
	return strings.Join(parts, ", ")
}

// Sync pulls remote changes and then pushes local ones. Rounds never
// overlap: a second caller waits for the first.
func (o *Orchestrator) Sync(ctx context.Context, opts SyncOptions) (SyncReport, error) {
	o.syncMu.Lock()
	defer o.syncMu.Unlock()

	report := newSyncReport()
	if err := o.pull(ctx, opts, &report); err != nil {
		return report, err
	}
	if report.Skipped != "" {
		return report, nil
	}
	if err := o.push(ctx, &report); err != nil {
		return report, err
	}
	log.Printf("Library: sync finished: %s", report)
	return report, nil
}

// PullLibrary merges remote changes into the library.
func (o *Orchestrator) PullLibrary(ctx context.Context, opts SyncOptions) (SyncReport, error) {
	o.syncMu.Lock()
	defer o.syncMu.Unlock()

	report := newSyncReport()
	err := o.pull(ctx, opts, &report)
	return report, err
}

// PushLibrary sends the records changed on this device since their last
// accepted push.
func (o *Orchestrator) PushLibrary(ctx context.Context) (SyncReport, error) {
	o.syncMu.Lock()
	defer o.syncMu.Unlock()

	report := newSyncReport()
	err := o.push(ctx, &report)
	return report, err
}

// pull fetches each type from its cursor. The cursor is committed only
// after the pulled records are stored, and only for unfiltered pulls: a
// single-book pull says nothing about other books.
func (o *Orchestrator) pull(ctx context.Context, opts SyncOptions, report *SyncReport) error {
	types := entities.AllSyncTypes
	if opts.Type != "" {
		types = []entities.SyncType{opts.Type}
	}

	for _, t := range types {
		since := o.cfg.Preferences.GetSyncCursor(t)
		result, err := o.cfg.Syncer.PullChanges(ctx, since, t, opts.BookHash)
		if err != nil {
			return err
		}
		if result.Skipped != "" {
			report.Skipped = result.Skipped
			return nil
		}
		if !result.Pulled(t) {
			continue
		}

		next, n, err := o.apply(t, result)
		if err != nil {
			return fmt.Errorf("failed to store pulled %s: %w", t, err)
		}
		report.Pulled[t] = n

		if opts.BookHash == "" && next > since {
			if err := o.cfg.Preferences.SetSyncCursor(t, next); err != nil {
				return fmt.Errorf("failed to commit %s cursor: %w", t, err)
			}
		}
	}
	return nil
}

// apply stores pulled records of type t and returns the newest timestamp
// among them together with their count.
func (o *Orchestrator) apply(t entities.SyncType, result *syncclient.Result) (int64, int, error) {
	var next int64
	switch t {
	case entities.SyncTypeBooks:
		for _, b := range result.Books {
			next = max(next, b.UpdatedAt, deref(b.DeletedAt))
		}
		return next, len(result.Books), o.mergeBooks(result.Books)

	case entities.SyncTypeConfigs:
		for _, c := range result.Configs {
			next = max(next, c.UpdatedAt, deref(c.DeletedAt))
		}
		return next, len(result.Configs), o.cfg.Records.ApplyRemoteConfigs(result.Configs)

	case entities.SyncTypeNotes:
		for _, n := range result.Notes {
			next = max(next, n.UpdatedAt, deref(n.DeletedAt))
		}
		return next, len(result.Notes), o.cfg.Records.ApplyRemoteNotes(result.Notes)
	}
	return 0, 0, nil
}

// mergeBooks applies last-writer-wins by UpdatedAt. Device-local fields
// survive a remote overwrite.
func (o *Orchestrator) mergeBooks(remote []entities.Book) error {
	if len(remote) == 0 {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	merged := make([]entities.Book, 0, len(remote))
	for _, rb := range remote {
		if lb, ok := o.books[rb.Hash]; ok {
			if lb.UpdatedAt > rb.UpdatedAt {
				continue
			}
			rb.LocalPath = lb.LocalPath
			rb.DownloadedAt = lb.DownloadedAt
			if rb.CreatedAt == 0 {
				rb.CreatedAt = lb.CreatedAt
			}
		}
		merged = append(merged, rb)
	}

	if err := o.cfg.Catalog.ApplyRemoteBooks(merged); err != nil {
		return err
	}
	for i := range merged {
		b := merged[i]
		o.books[b.Hash] = &b
	}
	return nil
}

// push sends the records changed on this device that the server has not
// accepted yet. Records stored by a pull are never part of it. Once the
// server accepts the payload the pushed records stop being pending, unless
// they changed again in the meantime.
func (o *Orchestrator) push(ctx context.Context, report *SyncReport) error {
	books, err := o.cfg.Catalog.Pending()
	if err != nil {
		return fmt.Errorf("failed to collect books to push: %w", err)
	}
	configs, err := o.cfg.Records.PendingConfigs()
	if err != nil {
		return fmt.Errorf("failed to collect configs to push: %w", err)
	}
	notes, err := o.cfg.Records.PendingNotes()
	if err != nil {
		return fmt.Errorf("failed to collect notes to push: %w", err)
	}

	payload := syncclient.Payload{Books: books, Configs: configs, Notes: notes}
	if payload.Empty() {
		return nil
	}

	result, err := o.cfg.Syncer.PushChanges(ctx, payload)
	if err != nil {
		return err
	}
	if result.Skipped != "" {
		report.Skipped = result.Skipped
		return nil
	}

	if err := o.cfg.Catalog.MarkPushed(books); err != nil {
		return fmt.Errorf("failed to mark books pushed: %w", err)
	}
	if err := o.cfg.Records.MarkConfigsPushed(configs); err != nil {
		return fmt.Errorf("failed to mark configs pushed: %w", err)
	}
	if err := o.cfg.Records.MarkNotesPushed(notes); err != nil {
		return fmt.Errorf("failed to mark notes pushed: %w", err)
	}

	report.Pushed[entities.SyncTypeBooks] = len(books)
	report.Pushed[entities.SyncTypeConfigs] = len(configs)
	report.Pushed[entities.SyncTypeNotes] = len(notes)
	return nil
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
