// Package transport defines the narrow contract to the chat-network
// client. The wire protocol, framing, encryption and QR pairing all
// live on the other side of this interface.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/vendazap/vendazap/internal/domain"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// Ack is the transport's immediate acknowledgement of a send.
type Ack struct {
	Ref    string                `json:"ref"`
	Status domain.DeliveryStatus `json:"status"`
}

// EventType discriminates connection events.
type EventType string

const (
	EventReady          EventType = "ready"
	EventDisconnected   EventType = "disconnected"
	EventInbound        EventType = "inbound"
	EventDeliveryStatus EventType = "delivery_status"
)

// InboundEvent is a raw inbound chat event before normalization.
type InboundEvent struct {
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	Body      string    `json:"body"`
	MediaRef  string    `json:"mediaRef,omitempty"`
	Group     bool      `json:"group,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is one lifecycle or message event emitted by a connection.
type Event struct {
	Type    EventType
	Reason  string        // disconnected
	Inbound *InboundEvent // inbound
	Ref     string        // delivery_status
	Status  domain.DeliveryStatus
}

// Conn is one live chat-network connection for a single store.
type Conn interface {
	// RequestPairing asks the network for a pairing code. It blocks
	// until the code materializes or ctx is cancelled; the network may
	// take arbitrarily long, so callers bound the wait themselves.
	RequestPairing(ctx context.Context) (string, error)

	// SendText delivers a text message and returns the immediate ack.
	SendText(ctx context.Context, to, text string) (Ack, error)

	// SendMedia delivers a media item with an optional caption.
	SendMedia(ctx context.Context, to, mediaRef, caption string) (Ack, error)

	// Events returns the connection's event stream. The channel is
	// closed when the connection shuts down.
	Events() <-chan Event

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Dialer opens connections to the chat network.
type Dialer interface {
	Dial(ctx context.Context, storeID string) (Conn, error)
}
