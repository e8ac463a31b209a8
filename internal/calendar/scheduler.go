package calendar

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rental-manager/backend/internal/storage/models"
	"github.com/rental-manager/backend/internal/websocket"
)

// DefaultSyncInterval is how often the scheduler re-syncs all properties.
const DefaultSyncInterval = 2 * time.Hour

// SchedulerState is the lifecycle state of a Scheduler.
type SchedulerState string

// Scheduler states
const (
	StateStopped  SchedulerState = "stopped"
	StateStarting SchedulerState = "starting"
	StateRunning  SchedulerState = "running"
)

// SchedulerStatus is a snapshot of the scheduler for the API.
type SchedulerStatus struct {
	State     SchedulerState `json:"state"`
	Interval  string         `json:"interval"`
	LastRunAt *time.Time     `json:"lastRunAt,omitempty"`
	NextRunAt *time.Time     `json:"nextRunAt,omitempty"`
}

// AllSyncer runs a sync pass over every enabled property.
type AllSyncer interface {
	SyncAll(ctx context.Context) ([]models.SyncResult, error)
}

// Scheduler periodically syncs all properties with calendar sync enabled.
type Scheduler struct {
	syncer      AllSyncer
	broadcaster *websocket.EventBroadcaster
	interval    time.Duration

	// initial tracks the pass Start runs before arming cron.
	initial sync.WaitGroup

	mu        sync.Mutex
	state     SchedulerState
	cron      *cron.Cron
	entryID   cron.EntryID
	lastRunAt time.Time
}

// NewScheduler creates a new calendar sync scheduler. A nil hub disables
// broadcasting of results.
func NewScheduler(syncer AllSyncer, hub *websocket.Hub, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	return &Scheduler{
		syncer:      syncer,
		broadcaster: websocket.NewEventBroadcaster(hub),
		interval:    interval,
		state:       StateStopped,
	}
}

// Start runs an immediate sync pass and then repeats it every interval.
// Calling Start while the scheduler is starting or running is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if state := s.state; state != StateStopped {
		s.mu.Unlock()
		log.Printf("Calendar scheduler already %s", state)
		return nil
	}
	s.state = StateStarting
	s.initial.Add(1)
	s.mu.Unlock()

	log.Println("Starting calendar sync scheduler...")
	s.broadcaster.BroadcastSchedulerStatusChanged(string(StateStarting), nil)

	s.runPass(ctx)
	s.initial.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarting {
		// Stopped during the initial pass
		return nil
	}

	c := cron.New()
	entryID, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.runPass(context.Background())
	})
	if err != nil {
		s.state = StateStopped
		return fmt.Errorf("scheduling calendar sync: %w", err)
	}
	c.Start()

	s.cron = c
	s.entryID = entryID
	s.state = StateRunning
	log.Printf("Calendar scheduler started, syncing every %s", s.interval)
	s.broadcaster.BroadcastSchedulerStatusChanged(string(StateRunning), s.lastRunPtr())

	return nil
}

// Stop disarms the recurring sync and waits for any pass in progress, the
// initial one included, to finish. Passes themselves are never aborted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.cron = nil
	s.state = StateStopped
	s.mu.Unlock()

	log.Println("Stopping calendar sync scheduler...")
	s.initial.Wait()
	if c != nil {
		<-c.Stop().Done()
	}
	log.Println("Calendar scheduler stopped")
	s.broadcaster.BroadcastSchedulerStatusChanged(string(StateStopped), nil)
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		State:     s.state,
		Interval:  s.interval.String(),
		LastRunAt: s.lastRunPtr(),
	}
	if s.cron != nil {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRunAt = &next
		}
	}
	return status
}

// runPass syncs all properties, logs aggregated counts and broadcasts each result.
func (s *Scheduler) runPass(ctx context.Context) {
	started := time.Now().UTC()
	results, err := s.syncer.SyncAll(ctx)

	s.mu.Lock()
	s.lastRunAt = started
	s.mu.Unlock()

	if err != nil {
		log.Printf("Scheduled calendar sync failed: %v", err)
		s.broadcaster.BroadcastNotification("error", "Calendar sync", err.Error())
		return
	}

	var created, updated, failed int
	for _, r := range results {
		created += r.BookingsCreated
		updated += r.BookingsUpdated
		if !r.Success {
			failed++
		}
		s.broadcaster.BroadcastSyncResult(r)
	}

	log.Printf("Scheduled calendar sync completed: %d properties, %d bookings created, %d updated, %d failed (%s)",
		len(results), created, updated, failed, time.Since(started).Round(time.Millisecond))
	s.broadcaster.BroadcastSyncPassSummary(results)
}

func (s *Scheduler) lastRunPtr() *time.Time {
	if s.lastRunAt.IsZero() {
		return nil
	}
	t := s.lastRunAt
	return &t
}
