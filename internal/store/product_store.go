package store

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/vendazap/vendazap/internal/domain"
)

// ProductStore persists storefront products for recommendation lookups.
type ProductStore struct {
	db *DB
}

// NewProductStore creates a product store using the given database.
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

// Put creates or replaces a product. A zero ID is filled in.
func (s *ProductStore) Put(p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO products (id, store_id, name, description, price, media_ref, keywords)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   price = excluded.price,
		   media_ref = excluded.media_ref,
		   keywords = excluded.keywords`,
		p.ID, p.StoreID, p.Name, p.Description, p.Price, p.MediaRef, p.Keywords,
	)
	return err
}

// Get returns a product by ID scoped to a store, or nil if not found.
func (s *ProductStore) Get(storeID, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.sql.QueryRow(
		`SELECT id, store_id, name, description, price, media_ref, keywords
		 FROM products WHERE store_id = ? AND id = ?`, storeID, id,
	).Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Price, &p.MediaRef, &p.Keywords)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ByIDs returns the products matching ids, preserving the requested
// order. Unknown IDs are skipped silently.
func (s *ProductStore) ByIDs(storeID string, ids []string) ([]domain.Product, error) {
	var products []domain.Product
	for _, id := range ids {
		p, err := s.Get(storeID, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			products = append(products, *p)
		}
	}
	return products, nil
}

// ListByStore returns the store's catalog ordered by name.
func (s *ProductStore) ListByStore(storeID string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.sql.Query(
		`SELECT id, store_id, name, description, price, media_ref, keywords
		 FROM products WHERE store_id = ? ORDER BY name LIMIT ?`,
		storeID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Price, &p.MediaRef, &p.Keywords); err != nil {
			continue
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SearchKeyword returns products whose name or keywords contain the term.
func (s *ProductStore) SearchKeyword(storeID, term string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + strings.ToLower(term) + "%"

	rows, err := s.db.sql.Query(
		`SELECT id, store_id, name, description, price, media_ref, keywords
		 FROM products
		 WHERE store_id = ? AND (LOWER(name) LIKE ? OR LOWER(keywords) LIKE ?)
		 ORDER BY name LIMIT ?`,
		storeID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Price, &p.MediaRef, &p.Keywords); err != nil {
			continue
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
