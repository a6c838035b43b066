package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Meta returns the value stored under key for the asset. ok is false when the
// key is absent.
func (s *Store) Meta(ctx context.Context, id int64, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM asset_meta WHERE asset_id = ? AND key = ?`, id, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta stores value under key, replacing any previous value.
func (s *Store) SetMeta(ctx context.Context, id int64, key, value string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO asset_meta (asset_id, key, value) VALUES (?, ?, ?)
         ON CONFLICT(asset_id, key) DO UPDATE SET value = excluded.value`,
		id, key, value)
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

// DeleteMeta removes key from the asset. Deleting an absent key is not an error.
func (s *Store) DeleteMeta(ctx context.Context, id int64, key string) error {
	if _, err := s.execWithRetry(ctx,
		`DELETE FROM asset_meta WHERE asset_id = ? AND key = ?`, id, key); err != nil {
		return fmt.Errorf("delete meta %s: %w", key, err)
	}
	return nil
}

// DeleteMetaPrefix removes every key starting with prefix across all assets
// and returns how many rows were deleted.
func (s *Store) DeleteMetaPrefix(ctx context.Context, prefix string) (int64, error) {
	if strings.TrimSpace(prefix) == "" {
		return 0, errors.New("meta prefix is empty")
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM asset_meta WHERE substr(key, 1, ?) = ?`, len(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("delete meta prefix %s: %w", prefix, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AllMeta returns every key/value pair stored for the asset.
func (s *Store) AllMeta(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM asset_meta WHERE asset_id = ? ORDER BY key`, id)
	if err != nil {
		return nil, fmt.Errorf("list meta: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}
