package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vendazap/vendazap/internal/domain"
)

// SettingsStore persists per-store engagement configuration.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a settings store using the given database.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the settings for a store, or nil if none are configured.
func (s *SettingsStore) Get(storeID string) (*domain.StoreSettings, error) {
	var (
		cfg       domain.StoreSettings
		autoReply int
		groups    int
		emoji     int
		hoursJSON string
	)

	err := s.db.sql.QueryRow(
		`SELECT store_id, store_name, auto_reply, allow_groups, away_message, timezone,
		        hours, tone, persona_notes, use_emoji, coupon_code, coupon_probability
		 FROM store_settings WHERE store_id = ?`, storeID,
	).Scan(
		&cfg.StoreID, &cfg.StoreName, &autoReply, &groups, &cfg.AwayMessage, &cfg.Timezone,
		&hoursJSON, &cfg.Tone, &cfg.PersonaNotes, &emoji, &cfg.CouponCode, &cfg.CouponProbability,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg.AutoReply = autoReply != 0
	cfg.AllowGroups = groups != 0
	cfg.UseEmoji = emoji != 0

	if hoursJSON != "" && hoursJSON != "{}" {
		if err := json.Unmarshal([]byte(hoursJSON), &cfg.Hours); err != nil {
			s.db.log.Warn().Err(err).Str("store", storeID).Msg("malformed hours schedule, treating as closed")
			cfg.Hours = nil
		}
	}

	return &cfg, nil
}

// Put creates or replaces the settings for a store.
func (s *SettingsStore) Put(cfg *domain.StoreSettings) error {
	hoursJSON := "{}"
	if len(cfg.Hours) > 0 {
		data, err := json.Marshal(cfg.Hours)
		if err != nil {
			return fmt.Errorf("encoding hours schedule: %w", err)
		}
		hoursJSON = string(data)
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO store_settings (store_id, store_name, auto_reply, allow_groups, away_message,
		   timezone, hours, tone, persona_notes, use_emoji, coupon_code, coupon_probability)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(store_id) DO UPDATE SET
		   store_name = excluded.store_name,
		   auto_reply = excluded.auto_reply,
		   allow_groups = excluded.allow_groups,
		   away_message = excluded.away_message,
		   timezone = excluded.timezone,
		   hours = excluded.hours,
		   tone = excluded.tone,
		   persona_notes = excluded.persona_notes,
		   use_emoji = excluded.use_emoji,
		   coupon_code = excluded.coupon_code,
		   coupon_probability = excluded.coupon_probability`,
		cfg.StoreID, cfg.StoreName, boolToInt(cfg.AutoReply), boolToInt(cfg.AllowGroups),
		cfg.AwayMessage, cfg.Timezone, hoursJSON, cfg.Tone, cfg.PersonaNotes,
		boolToInt(cfg.UseEmoji), cfg.CouponCode, cfg.CouponProbability,
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
