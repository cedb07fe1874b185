package actions

import (
	"context"
	"sync"
	"time"

	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/outbound"
	"github.com/vendazap/vendazap/internal/store"
)

// Scheduler arms timers for deferred follow-up messages. Followups are
// persisted so pending ones survive a restart; Start re-arms them.
type Scheduler struct {
	followups  *store.FollowupStore
	contacts   *store.ContactStore
	dispatcher *outbound.Dispatcher
	log        *logging.Logger
	now        func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewScheduler creates a followup scheduler. A nil clock defaults to time.Now.
func NewScheduler(followups *store.FollowupStore, contacts *store.ContactStore, dispatcher *outbound.Dispatcher, log *logging.Logger, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		followups:  followups,
		contacts:   contacts,
		dispatcher: dispatcher,
		log:        log.Component("followups"),
		now:        now,
		timers:     make(map[string]*time.Timer),
	}
}

// Schedule persists a followup and arms its timer.
func (s *Scheduler) Schedule(storeID, contactAddress, text string, delay time.Duration) error {
	f := &store.Followup{
		StoreID:        storeID,
		ContactAddress: contactAddress,
		Message:        text,
		DueAt:          s.now().Add(delay),
	}
	if err := s.followups.Insert(f); err != nil {
		return err
	}

	s.arm(*f, delay)
	s.log.Info().
		Str("store", storeID).
		Str("to", contactAddress).
		Time("dueAt", f.DueAt).
		Msg("followup scheduled")
	return nil
}

// Start re-arms all pending followups. Overdue ones fire immediately.
func (s *Scheduler) Start() error {
	pending, err := s.followups.Pending()
	if err != nil {
		return err
	}

	for _, f := range pending {
		delay := time.Until(f.DueAt)
		if delay < 0 {
			delay = 0
		}
		s.arm(f, delay)
	}

	if len(pending) > 0 {
		s.log.Info().Int("count", len(pending)).Msg("pending followups rescheduled")
	}
	return nil
}

// Stop cancels all armed timers. Persisted rows stay pending.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) arm(f store.Followup, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.timers[f.ID] = time.AfterFunc(delay, func() { s.fire(f) })
}

func (s *Scheduler) fire(f store.Followup) {
	s.mu.Lock()
	delete(s.timers, f.ID)
	s.mu.Unlock()

	contact, err := s.contacts.GetByAddress(f.StoreID, f.ContactAddress)
	if err != nil || contact == nil {
		s.log.Warn().Err(err).Str("store", f.StoreID).Str("to", f.ContactAddress).Msg("followup contact lookup failed")
		return
	}

	if _, err := s.dispatcher.SendText(context.Background(), f.StoreID, contact.ID, f.ContactAddress, f.Message); err != nil {
		// Left pending: Start will retry it on the next boot.
		s.log.Warn().Err(err).Str("store", f.StoreID).Str("to", f.ContactAddress).Msg("followup send failed")
		return
	}

	if err := s.followups.MarkSent(f.ID); err != nil {
		s.log.Warn().Err(err).Str("followup", f.ID).Msg("failed to mark followup sent")
	}
}
