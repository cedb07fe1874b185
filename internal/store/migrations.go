package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create contacts and messages",
		SQL: `
			CREATE TABLE contacts (
				id                   TEXT PRIMARY KEY,
				store_id             TEXT NOT NULL,
				external_address     TEXT NOT NULL,
				display_name         TEXT NOT NULL DEFAULT '',
				last_interaction_at  TEXT NOT NULL DEFAULT (datetime('now')),
				opted_out            INTEGER NOT NULL DEFAULT 0
			);

			CREATE UNIQUE INDEX idx_contacts_store_addr ON contacts (store_id, external_address);
			CREATE INDEX idx_contacts_store ON contacts (store_id, last_interaction_at);

			CREATE TABLE messages (
				id               TEXT PRIMARY KEY,
				store_id         TEXT NOT NULL,
				contact_id       TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				direction        TEXT NOT NULL,
				content          TEXT NOT NULL,
				media_ref        TEXT NOT NULL DEFAULT '',
				timestamp        TEXT NOT NULL DEFAULT (datetime('now')),
				delivery_status  TEXT NOT NULL DEFAULT 'pending',
				transport_ref    TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_messages_contact ON messages (store_id, contact_id, timestamp);
			CREATE INDEX idx_messages_ref ON messages (store_id, transport_ref);
		`,
	},
	{
		Version: 2,
		Name:    "create store settings, products and wishlists",
		SQL: `
			CREATE TABLE store_settings (
				store_id            TEXT PRIMARY KEY,
				store_name          TEXT NOT NULL DEFAULT '',
				auto_reply          INTEGER NOT NULL DEFAULT 0,
				allow_groups        INTEGER NOT NULL DEFAULT 0,
				away_message        TEXT NOT NULL DEFAULT '',
				timezone            TEXT NOT NULL DEFAULT '',
				hours               TEXT NOT NULL DEFAULT '{}',
				tone                TEXT NOT NULL DEFAULT '',
				persona_notes       TEXT NOT NULL DEFAULT '',
				use_emoji           INTEGER NOT NULL DEFAULT 0,
				coupon_code         TEXT NOT NULL DEFAULT '',
				coupon_probability  REAL NOT NULL DEFAULT 0
			);

			CREATE TABLE products (
				id           TEXT PRIMARY KEY,
				store_id     TEXT NOT NULL,
				name         TEXT NOT NULL,
				description  TEXT NOT NULL DEFAULT '',
				price        REAL NOT NULL DEFAULT 0,
				media_ref    TEXT NOT NULL DEFAULT '',
				keywords     TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_products_store ON products (store_id);

			CREATE TABLE wishlist_items (
				contact_id  TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
				product_id  TEXT NOT NULL,
				added_at    TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (contact_id, product_id)
			);
		`,
	},
	{
		Version: 3,
		Name:    "create followups",
		SQL: `
			CREATE TABLE followups (
				id               TEXT PRIMARY KEY,
				store_id         TEXT NOT NULL,
				contact_address  TEXT NOT NULL,
				message          TEXT NOT NULL,
				due_at           TEXT NOT NULL,
				sent_at          TEXT
			);

			CREATE INDEX idx_followups_due ON followups (due_at) WHERE sent_at IS NULL;
		`,
	},
}
