package domain

import "time"

// Direction marks which way a message travelled.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryStatus tracks the transport-reported state of an outbound message.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryFailed    DeliveryStatus = "failed"
)

// ChatType classifies the origin of an inbound event.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// Message is one inbound or outbound unit of conversation.
// Immutable once created except for DeliveryStatus transitions driven
// by transport acknowledgements.
type Message struct {
	ID             string         `json:"id"`
	StoreID        string         `json:"storeId"`
	ContactID      string         `json:"contactId"`
	Direction      Direction      `json:"direction"`
	Content        string         `json:"content"`
	MediaRef       string         `json:"mediaRef,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
	TransportRef   string         `json:"transportRef,omitempty"`
}

// InboundMessage is a normalized transport event before contact resolution.
type InboundMessage struct {
	StoreID     string    `json:"storeId"`
	FromAddress string    `json:"fromAddress"`
	FromName    string    `json:"fromName,omitempty"`
	ChatType    ChatType  `json:"chatType"`
	Body        string    `json:"body"`
	MediaRef    string    `json:"mediaRef,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ConversationWindow is a bounded, chronologically ordered slice of the
// most recent messages for a (store, contact) pair. Derived, never persisted.
type ConversationWindow []Message
