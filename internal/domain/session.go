package domain

import "time"

// ConnectionState is the lifecycle state of a store's chat-network session.
type ConnectionState string

const (
	StateDisconnected    ConnectionState = "disconnected"
	StateAwaitingPairing ConnectionState = "awaiting_pairing"
	StateConnected       ConnectionState = "connected"
	StateFailed          ConnectionState = "failed"
)

// SessionStatus is a point-in-time snapshot of a store session.
type SessionStatus struct {
	StoreID     string          `json:"storeId"`
	State       ConnectionState `json:"state"`
	PairingCode string          `json:"pairingCode,omitempty"`
	ConnectedAt time.Time       `json:"connectedAt,omitzero"`
}
