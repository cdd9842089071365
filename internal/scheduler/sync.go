package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/library"
	"github.com/mrlokans/librarysync/internal/settingsstore"
)

// ErrSyncInProgress is returned by RunNow while another round is running.
var ErrSyncInProgress = errors.New("a sync round is already running")

const roundTimeout = 10 * time.Minute

// Runner performs one sync round.
type Runner interface {
	Sync(ctx context.Context, opts library.SyncOptions) (library.SyncReport, error)
}

// StatusStore provides the schedule and keeps the outcome of the last round.
type StatusStore interface {
	GetSyncConfig() settingsstore.SyncConfig
	SetSyncStatus(status entities.SyncStatus, message string) error
}

// SyncScheduler runs library sync rounds on a cron schedule.
type SyncScheduler struct {
	runner Runner
	store  StatusStore

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	cancelFunc context.CancelFunc
}

func NewSyncScheduler(runner Runner, store StatusStore) *SyncScheduler {
	return &SyncScheduler{
		runner: runner,
		store:  store,
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if sync is enabled
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	config := s.store.GetSyncConfig()
	if !config.Enabled {
		log.Printf("Sync scheduler: disabled")
		return nil
	}

	if err := settingsstore.ValidateCronSchedule(config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", config.Schedule, err)
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	entryID, err := s.cron.AddFunc(config.Schedule, func() {
		if _, err := s.run(cancelCtx, library.SyncOptions{}); errors.Is(err, ErrSyncInProgress) {
			log.Printf("Sync: skipped (already syncing)")
		}
	})
	if err != nil {
		s.cancelFunc()
		s.cancelFunc = nil
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := settingsstore.GetNextRunTime(config.Schedule)
	log.Printf("Sync scheduler: started with schedule '%s' (%s). Next run: %v",
		config.Schedule,
		settingsstore.GetCronDescription(config.Schedule),
		nextRun)

	// Stop also cancels cancelCtx; only a canceled parent stops the scheduler.
	go func() {
		<-cancelCtx.Done()
		if ctx.Err() != nil {
			s.Stop()
		}
	}()

	return nil
}

// Stop cancels a running scheduled round, waits for it to return and stops
// the scheduler.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}

	s.cron.Remove(s.entryID)
	stopped := s.cron.Stop()
	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.mu.Unlock()

	// The round takes the lock on its way out.
	<-stopped.Done()
	log.Printf("Sync scheduler: stopped")
}

// Reschedule restarts the scheduler with the current settings.
func (s *SyncScheduler) Reschedule(ctx context.Context) error {
	s.Stop()
	return s.Start(ctx)
}

// RunNow runs a round immediately and returns its report. It does not wait
// for a round that is already running.
func (s *SyncScheduler) RunNow(ctx context.Context, opts library.SyncOptions) (library.SyncReport, error) {
	return s.run(ctx, opts)
}

func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *SyncScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// NextRunTime returns when the next scheduled round will start, or nil when
// the scheduler is not running.
func (s *SyncScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *SyncScheduler) run(ctx context.Context, opts library.SyncOptions) (library.SyncReport, error) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		return library.SyncReport{}, ErrSyncInProgress
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, roundTimeout)
	defer cancel()

	log.Printf("Sync: starting round")
	startTime := time.Now()

	report, err := s.runner.Sync(ctx, opts)
	duration := time.Since(startTime).Round(time.Millisecond)

	switch {
	case err != nil:
		log.Printf("Sync: failed after %v: %v", duration, err)
		s.record(entities.SyncStatusFailed, err.Error())
	case report.Skipped != "":
		log.Printf("Sync: %s", report)
		s.record(entities.SyncStatusSkipped, report.String())
	default:
		log.Printf("Sync: %s in %v", report, duration)
		s.record(entities.SyncStatusCompleted, report.String())
	}
	return report, err
}

func (s *SyncScheduler) record(status entities.SyncStatus, message string) {
	if err := s.store.SetSyncStatus(status, message); err != nil {
		log.Printf("Sync: failed to save status: %v", err)
	}
}
