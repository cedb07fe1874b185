package domain

// DaySchedule is the opening window for one weekday. Times are "HH:MM"
// in the store's timezone. A day with IsOpen=false (or no schedule at
// all) is treated as fully closed.
type DaySchedule struct {
	IsOpen bool   `json:"isOpen"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
}

// StoreSettings is the per-store engagement configuration read by the
// gating policy and the reply orchestrator.
type StoreSettings struct {
	StoreID     string `json:"storeId"`
	StoreName   string `json:"storeName,omitempty"`
	AutoReply   bool   `json:"autoReply"`
	AllowGroups bool   `json:"allowGroups"`
	AwayMessage string `json:"awayMessage,omitempty"`

	// Weekly schedule keyed by time.Weekday (0 = Sunday).
	Timezone string              `json:"timezone,omitempty"`
	Hours    map[int]DaySchedule `json:"hours,omitempty"`

	// Reply persona.
	Tone         string `json:"tone,omitempty"`
	PersonaNotes string `json:"personaNotes,omitempty"`
	UseEmoji     bool   `json:"useEmoji"`

	// Spontaneous coupon promotion on positive interactions.
	CouponCode        string  `json:"couponCode,omitempty"`
	CouponProbability float64 `json:"couponProbability,omitempty"`
}
