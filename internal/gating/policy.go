// Package gating decides whether automated reply generation runs for an
// inbound message.
package gating

import (
	"strconv"
	"strings"
	"time"

	"github.com/vendazap/vendazap/internal/domain"
)

// Result is the gating verdict for one inbound message. When Allow is
// false a non-empty OverrideText instructs the caller to send that text
// (the after-hours notice) instead of generating a reply.
type Result struct {
	Allow        bool
	OverrideText string
}

// Policy evaluates store configuration against the current time.
type Policy struct {
	now func() time.Time
}

// New creates a policy. A nil clock defaults to time.Now.
func New(now func() time.Time) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{now: now}
}

// ShouldAutoRespond applies the gating rules in order: store auto-reply
// switch, contact opt-out, then business hours. Missing settings mean
// automation was never enabled for the store.
func (p *Policy) ShouldAutoRespond(settings *domain.StoreSettings, contact *domain.Contact, msg domain.InboundMessage) Result {
	if settings == nil || !settings.AutoReply {
		return Result{Allow: false}
	}

	if contact != nil && contact.OptedOut {
		return Result{Allow: false}
	}

	if !p.withinBusinessHours(settings) {
		return Result{Allow: false, OverrideText: settings.AwayMessage}
	}

	return Result{Allow: true}
}

// withinBusinessHours evaluates the weekly schedule in the store's
// timezone. A store with no schedule at all is always open; a schedule
// that omits the current day (or marks it closed) closes that day fully.
func (p *Policy) withinBusinessHours(settings *domain.StoreSettings) bool {
	if len(settings.Hours) == 0 {
		return true
	}

	loc := time.UTC
	if settings.Timezone != "" {
		if l, err := time.LoadLocation(settings.Timezone); err == nil {
			loc = l
		}
	}

	now := p.now().In(loc)
	day, ok := settings.Hours[int(now.Weekday())]
	if !ok || !day.IsOpen {
		return false
	}

	openM, ok1 := parseClock(day.Open)
	closeM, ok2 := parseClock(day.Close)
	if !ok1 || !ok2 || openM == closeM {
		return false
	}

	cur := now.Hour()*60 + now.Minute()
	if openM < closeM {
		return cur >= openM && cur < closeM
	}
	// Overnight span, e.g. 18:00–02:00.
	return cur >= openM || cur < closeM
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	hours, err1 := strconv.Atoi(h)
	mins, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hours < 0 || hours > 23 || mins < 0 || mins > 59 {
		return 0, false
	}
	return hours*60 + mins, true
}
