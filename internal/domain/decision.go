package domain

import "time"

// ActionKind discriminates ActionRequest variants.
type ActionKind string

const (
	ActionAddToWishlist    ActionKind = "add_to_wishlist"
	ActionSendCoupon       ActionKind = "send_coupon"
	ActionScheduleFollowup ActionKind = "schedule_followup"
)

// ActionRequest is one side effect requested by a generated reply.
// Exactly one of the payload fields below is meaningful for each kind.
type ActionRequest struct {
	Kind ActionKind `json:"kind"`

	// add_to_wishlist
	ProductID string `json:"productId,omitempty"`

	// send_coupon
	CouponCode string `json:"couponCode,omitempty"`

	// schedule_followup
	Delay       time.Duration `json:"delay,omitempty"`
	MessageText string        `json:"messageText,omitempty"`
}

// ReplyDecision is the transient output of the response generator for a
// single inbound message. An empty Text means "stay silent". Consumed
// once, never persisted.
type ReplyDecision struct {
	Text                  string          `json:"text,omitempty"`
	Intent                string          `json:"intent,omitempty"`
	Sentiment             string          `json:"sentiment,omitempty"`
	RecommendedProductIDs []string        `json:"recommendedProductIds,omitempty"`
	Actions               []ActionRequest `json:"actions,omitempty"`
}
