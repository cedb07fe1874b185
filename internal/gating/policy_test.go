package gating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vendazap/vendazap/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func openSettings() *domain.StoreSettings {
	return &domain.StoreSettings{
		StoreID:   "store-1",
		AutoReply: true,
		Timezone:  "UTC",
		Hours: map[int]domain.DaySchedule{
			1: {IsOpen: true, Open: "09:00", Close: "18:00"}, // Monday
		},
	}
}

// 2026-03-09 is a Monday.
var mondayNoon = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func TestShouldAutoRespond_DisabledStore(t *testing.T) {
	p := New(fixedClock(mondayNoon))
	cfg := openSettings()
	cfg.AutoReply = false

	res := p.ShouldAutoRespond(cfg, nil, domain.InboundMessage{})
	assert.False(t, res.Allow)
	assert.Empty(t, res.OverrideText)
}

func TestShouldAutoRespond_MissingSettings(t *testing.T) {
	p := New(fixedClock(mondayNoon))

	res := p.ShouldAutoRespond(nil, nil, domain.InboundMessage{})
	assert.False(t, res.Allow)
	assert.Empty(t, res.OverrideText)
}

func TestShouldAutoRespond_OptedOutContact(t *testing.T) {
	p := New(fixedClock(mondayNoon))
	contact := &domain.Contact{OptedOut: true}

	res := p.ShouldAutoRespond(openSettings(), contact, domain.InboundMessage{})
	assert.False(t, res.Allow)
	assert.Empty(t, res.OverrideText, "opt-out must not trigger the away message")
}

func TestShouldAutoRespond_InsideHours(t *testing.T) {
	p := New(fixedClock(mondayNoon))

	res := p.ShouldAutoRespond(openSettings(), nil, domain.InboundMessage{})
	assert.True(t, res.Allow)
}

func TestShouldAutoRespond_OutsideHours_WithAwayMessage(t *testing.T) {
	lateNight := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	p := New(fixedClock(lateNight))

	cfg := openSettings()
	cfg.AwayMessage = "Estamos fechados! Voltamos às 9h."

	res := p.ShouldAutoRespond(cfg, nil, domain.InboundMessage{})
	assert.False(t, res.Allow)
	assert.Equal(t, "Estamos fechados! Voltamos às 9h.", res.OverrideText)
}

func TestShouldAutoRespond_OutsideHours_NoAwayMessage(t *testing.T) {
	lateNight := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	p := New(fixedClock(lateNight))

	res := p.ShouldAutoRespond(openSettings(), nil, domain.InboundMessage{})
	assert.False(t, res.Allow)
	assert.Empty(t, res.OverrideText)
}

func TestWithinBusinessHours_ClosedDay(t *testing.T) {
	p := New(fixedClock(mondayNoon))
	cfg := openSettings()
	cfg.Hours[1] = domain.DaySchedule{IsOpen: false, Open: "09:00", Close: "18:00"}

	res := p.ShouldAutoRespond(cfg, nil, domain.InboundMessage{})
	assert.False(t, res.Allow, "isOpen=false closes the whole day regardless of time")
}

func TestWithinBusinessHours_DayWithoutSchedule(t *testing.T) {
	// Tuesday has no entry in the schedule.
	tuesdayNoon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := New(fixedClock(tuesdayNoon))

	res := p.ShouldAutoRespond(openSettings(), nil, domain.InboundMessage{})
	assert.False(t, res.Allow)
}

func TestWithinBusinessHours_NoScheduleAtAll(t *testing.T) {
	p := New(fixedClock(mondayNoon))
	cfg := openSettings()
	cfg.Hours = nil

	res := p.ShouldAutoRespond(cfg, nil, domain.InboundMessage{})
	assert.True(t, res.Allow, "a store with no weekly schedule is always open")
}

func TestWithinBusinessHours_Boundaries(t *testing.T) {
	cfg := openSettings()

	atOpen := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	assert.True(t, New(fixedClock(atOpen)).ShouldAutoRespond(cfg, nil, domain.InboundMessage{}).Allow)

	atClose := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)
	assert.False(t, New(fixedClock(atClose)).ShouldAutoRespond(cfg, nil, domain.InboundMessage{}).Allow)
}

func TestWithinBusinessHours_Timezone(t *testing.T) {
	cfg := openSettings()
	cfg.Timezone = "America/Sao_Paulo" // UTC-3

	// 13:00 UTC is 10:00 in São Paulo: inside 09:00-18:00.
	utcMorning := time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC)
	assert.True(t, New(fixedClock(utcMorning)).ShouldAutoRespond(cfg, nil, domain.InboundMessage{}).Allow)

	// 23:00 UTC is 20:00 in São Paulo: outside.
	utcNight := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.False(t, New(fixedClock(utcNight)).ShouldAutoRespond(cfg, nil, domain.InboundMessage{}).Allow)
}

func TestWithinBusinessHours_OvernightSpan(t *testing.T) {
	cfg := openSettings()
	cfg.Hours[1] = domain.DaySchedule{IsOpen: true, Open: "18:00", Close: "02:00"}

	evening := time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)
	assert.True(t, New(fixedClock(evening)).ShouldAutoRespond(cfg, nil, domain.InboundMessage{}).Allow)

	afternoon := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.False(t, New(fixedClock(afternoon)).ShouldAutoRespond(cfg, nil, domain.InboundMessage{}).Allow)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"09:00", 540, true},
		{"00:00", 0, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"09:60", 0, false},
		{"garbage", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseClock(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}
