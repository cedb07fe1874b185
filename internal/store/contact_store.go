package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vendazap/vendazap/internal/domain"
)

// ContactStore persists contacts and their wishlists.
type ContactStore struct {
	db *DB
}

// NewContactStore creates a contact store using the given database.
func NewContactStore(db *DB) *ContactStore {
	return &ContactStore{db: db}
}

// Upsert finds or creates the contact for (storeID, externalAddress) as a
// single logical operation and refreshes last_interaction_at either way.
// A non-empty nameHint updates the display name; an empty one leaves the
// stored name untouched. Concurrent callers for the same key never
// produce duplicate rows.
func (s *ContactStore) Upsert(storeID, externalAddress, nameHint string) (*domain.Contact, error) {
	now := time.Now()

	_, err := s.db.sql.Exec(
		`INSERT INTO contacts (id, store_id, external_address, display_name, last_interaction_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(store_id, external_address) DO UPDATE SET
		   last_interaction_at = excluded.last_interaction_at,
		   display_name = CASE WHEN excluded.display_name != ''
		     THEN excluded.display_name ELSE contacts.display_name END`,
		uuid.New().String(), storeID, externalAddress, nameHint, now.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting contact: %w", err)
	}

	return s.GetByAddress(storeID, externalAddress)
}

// Get returns a contact by ID, or nil if not found.
func (s *ContactStore) Get(id string) (*domain.Contact, error) {
	return s.scanOne(s.db.sql.QueryRow(
		`SELECT id, store_id, external_address, display_name, last_interaction_at, opted_out
		 FROM contacts WHERE id = ?`, id,
	))
}

// GetByAddress returns a contact by its store-scoped address, or nil if not found.
func (s *ContactStore) GetByAddress(storeID, externalAddress string) (*domain.Contact, error) {
	return s.scanOne(s.db.sql.QueryRow(
		`SELECT id, store_id, external_address, display_name, last_interaction_at, opted_out
		 FROM contacts WHERE store_id = ? AND external_address = ?`,
		storeID, externalAddress,
	))
}

// ListByStore returns a store's contacts, most recently active first.
func (s *ContactStore) ListByStore(storeID string, limit int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.sql.Query(
		`SELECT id, store_id, external_address, display_name, last_interaction_at, opted_out
		 FROM contacts WHERE store_id = ?
		 ORDER BY last_interaction_at DESC LIMIT ?`,
		storeID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var c domain.Contact
		var last string
		var optedOut int
		if err := rows.Scan(&c.ID, &c.StoreID, &c.ExternalAddress, &c.DisplayName, &last, &optedOut); err != nil {
			continue
		}
		c.LastInteractionAt, _ = time.Parse(time.DateTime, last)
		c.OptedOut = optedOut != 0
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// AddToWishlist adds a product to a contact's wishlist. Adding a product
// that is already present is a no-op, not an error.
func (s *ContactStore) AddToWishlist(contactID, productID string) error {
	_, err := s.db.sql.Exec(
		`INSERT OR IGNORE INTO wishlist_items (contact_id, product_id, added_at)
		 VALUES (?, ?, ?)`,
		contactID, productID, time.Now().Format(time.DateTime),
	)
	return err
}

// SetOptOut flips a contact's opt-out flag for automated replies.
func (s *ContactStore) SetOptOut(contactID string, optedOut bool) error {
	_, err := s.db.sql.Exec(
		`UPDATE contacts SET opted_out = ? WHERE id = ?`, boolToInt(optedOut), contactID,
	)
	return err
}

// Wishlist returns the product IDs on a contact's wishlist in insertion order.
func (s *ContactStore) Wishlist(contactID string) ([]string, error) {
	rows, err := s.db.sql.Query(
		`SELECT product_id FROM wishlist_items WHERE contact_id = ? ORDER BY added_at, product_id`,
		contactID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ContactStore) scanOne(row *sql.Row) (*domain.Contact, error) {
	var c domain.Contact
	var last string
	var optedOut int
	err := row.Scan(&c.ID, &c.StoreID, &c.ExternalAddress, &c.DisplayName, &last, &optedOut)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.LastInteractionAt, _ = time.Parse(time.DateTime, last)
	c.OptedOut = optedOut != 0

	wishlist, err := s.Wishlist(c.ID)
	if err != nil {
		return nil, err
	}
	c.Wishlist = wishlist
	return &c, nil
}
