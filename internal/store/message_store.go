package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vendazap/vendazap/internal/domain"
)

// MessageStore persists conversation messages and delivery metadata.
type MessageStore struct {
	db *DB
}

// NewMessageStore creates a message store using the given database.
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// Insert records a message. A zero ID and timestamp are filled in.
func (s *MessageStore) Insert(msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.DeliveryStatus == "" {
		msg.DeliveryStatus = domain.DeliveryPending
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO messages (id, store_id, contact_id, direction, content, media_ref, timestamp, delivery_status, transport_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.StoreID, msg.ContactID, string(msg.Direction), msg.Content,
		msg.MediaRef, msg.Timestamp.Format(time.DateTime), string(msg.DeliveryStatus), msg.TransportRef,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// UpdateStatus sets the delivery status of a message by ID.
func (s *MessageStore) UpdateStatus(id string, status domain.DeliveryStatus) error {
	_, err := s.db.sql.Exec(
		`UPDATE messages SET delivery_status = ? WHERE id = ?`, string(status), id,
	)
	return err
}

// UpdateStatusByRef sets the delivery status of the message carrying the
// given transport reference. Unknown references are ignored: status
// callbacks can outlive the message rows they refer to.
func (s *MessageStore) UpdateStatusByRef(storeID, transportRef string, status domain.DeliveryStatus) error {
	if transportRef == "" {
		return nil
	}
	_, err := s.db.sql.Exec(
		`UPDATE messages SET delivery_status = ? WHERE store_id = ? AND transport_ref = ?`,
		string(status), storeID, transportRef,
	)
	return err
}

// Recent returns the last limit messages for a (store, contact) pair in
// chronological order.
func (s *MessageStore) Recent(storeID, contactID string, limit int) (domain.ConversationWindow, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.sql.Query(
		`SELECT id, store_id, contact_id, direction, content, media_ref, timestamp, delivery_status, transport_ref
		 FROM messages WHERE store_id = ? AND contact_id = ?
		 ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		storeID, contactID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListByContact returns all messages for a contact in chronological order.
func (s *MessageStore) ListByContact(storeID, contactID string) ([]domain.Message, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, store_id, contact_id, direction, content, media_ref, timestamp, delivery_status, transport_ref
		 FROM messages WHERE store_id = ? AND contact_id = ?
		 ORDER BY timestamp, rowid`,
		storeID, contactID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// CountOutbound returns how many outbound messages exist for a contact.
func (s *MessageStore) CountOutbound(storeID, contactID string) (int, error) {
	var count int
	err := s.db.sql.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE store_id = ? AND contact_id = ? AND direction = ?`,
		storeID, contactID, string(domain.DirectionOutbound),
	).Scan(&count)
	return count, err
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var direction, status, ts string
		if err := rows.Scan(&m.ID, &m.StoreID, &m.ContactID, &direction, &m.Content,
			&m.MediaRef, &ts, &status, &m.TransportRef); err != nil {
			continue
		}
		m.Direction = domain.Direction(direction)
		m.DeliveryStatus = domain.DeliveryStatus(status)
		m.Timestamp, _ = time.Parse(time.DateTime, ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
