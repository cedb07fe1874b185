package domain

import "time"

// Contact is an external chat participant known to a store.
// Unique on (StoreID, ExternalAddress). Created lazily on first inbound
// message and never hard-deleted by the engagement core.
type Contact struct {
	ID                string    `json:"id"`
	StoreID           string    `json:"storeId"`
	ExternalAddress   string    `json:"externalAddress"`
	DisplayName       string    `json:"displayName,omitempty"`
	LastInteractionAt time.Time `json:"lastInteractionAt"`
	OptedOut          bool      `json:"optedOut,omitempty"`
	Wishlist          []string  `json:"wishlist,omitempty"`
}

// Product is a storefront item that replies may recommend.
type Product struct {
	ID          string  `json:"id"`
	StoreID     string  `json:"storeId"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	MediaRef    string  `json:"mediaRef,omitempty"`
	Keywords    string  `json:"keywords,omitempty"`
}
