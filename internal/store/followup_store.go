package store

import (
	"time"

	"github.com/google/uuid"
)

// Followup is a deferred outbound message scheduled by an action.
// Rows survive restarts so pending followups can be rescheduled; no
// exactly-once guarantee is made across a crash mid-send.
type Followup struct {
	ID             string     `json:"id"`
	StoreID        string     `json:"storeId"`
	ContactAddress string     `json:"contactAddress"`
	Message        string     `json:"message"`
	DueAt          time.Time  `json:"dueAt"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
}

// FollowupStore persists scheduled followups.
type FollowupStore struct {
	db *DB
}

// NewFollowupStore creates a followup store using the given database.
func NewFollowupStore(db *DB) *FollowupStore {
	return &FollowupStore{db: db}
}

// Insert records a scheduled followup. A zero ID is filled in.
func (s *FollowupStore) Insert(f *Followup) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := s.db.sql.Exec(
		`INSERT INTO followups (id, store_id, contact_address, message, due_at)
		 VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.StoreID, f.ContactAddress, f.Message, f.DueAt.Format(time.DateTime),
	)
	return err
}

// Pending returns unsent followups ordered by due time.
func (s *FollowupStore) Pending() ([]Followup, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, store_id, contact_address, message, due_at
		 FROM followups WHERE sent_at IS NULL ORDER BY due_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Followup
	for rows.Next() {
		var f Followup
		var due string
		if err := rows.Scan(&f.ID, &f.StoreID, &f.ContactAddress, &f.Message, &due); err != nil {
			continue
		}
		f.DueAt, _ = time.Parse(time.DateTime, due)
		out = append(out, f)
	}
	return out, rows.Err()
}

// MarkSent stamps a followup as delivered.
func (s *FollowupStore) MarkSent(id string) error {
	_, err := s.db.sql.Exec(
		`UPDATE followups SET sent_at = ? WHERE id = ?`,
		time.Now().Format(time.DateTime), id,
	)
	return err
}
