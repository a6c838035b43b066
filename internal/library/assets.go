package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"imgvault/internal/codec"
)

const assetColumns = `id, path, mime, size, width, height, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var (
		asset            Asset
		created, updated string
	)
	if err := row.Scan(&asset.ID, &asset.Path, &asset.MIME, &asset.Size, &asset.Width, &asset.Height, &created, &updated); err != nil {
		return nil, err
	}
	asset.CreatedAt = parseTime(created)
	asset.UpdatedAt = parseTime(updated)
	return &asset, nil
}

// Add registers the image at path. The MIME type comes from the extension and
// size and dimensions are read from the file. Adding a path that is already
// known returns the existing asset.
func (s *Store) Add(ctx context.Context, path string) (*Asset, error) {
	path = filepath.Clean(path)
	if existing, err := s.FindByPath(ctx, path); err != nil || existing != nil {
		return existing, err
	}
	mime, ok := codec.MIMEForPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported image extension: %s", path)
	}
	size, width, height, err := probe(path)
	if err != nil {
		return nil, err
	}
	ts := now()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO assets (path, mime, size, width, height, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		path, mime, size, width, height, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches an asset by identifier.
func (s *Store) Get(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// FindByPath returns the asset registered at path, or nil.
func (s *Store) FindByPath(ctx context.Context, path string) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE path = ?`, filepath.Clean(path))
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find asset by path: %w", err)
	}
	return asset, nil
}

// List returns assets in insertion order. An empty mimes slice lists everything.
func (s *Store) List(ctx context.Context, mimes ...string) ([]Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	args := make([]any, 0, len(mimes))
	if len(mimes) > 0 {
		query += ` WHERE mime IN (` + placeholders(len(mimes)) + `)`
		for _, m := range mimes {
			args = append(args, m)
		}
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// Remove deletes an asset and its metadata.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove asset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrAssetNotFound, id)
	}
	return nil
}

// LivePath returns the asset's current file path.
func (s *Store) LivePath(ctx context.Context, id int64) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM assets WHERE id = ?`, id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d", ErrAssetNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("live path: %w", err)
	}
	return path, nil
}

// FileSize returns the size in bytes of the file at path.
func (s *Store) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// SetLivePath points the asset at a new file.
func (s *Store) SetLivePath(ctx context.Context, id int64, path string) error {
	return s.updateColumn(ctx, id, "path", filepath.Clean(path))
}

// SetFormat records the asset's MIME type.
func (s *Store) SetFormat(ctx context.Context, id int64, mime string) error {
	return s.updateColumn(ctx, id, "mime", mime)
}

func (s *Store) updateColumn(ctx context.Context, id int64, column, value string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE assets SET `+column+` = ?, updated_at = ? WHERE id = ?`, value, now(), id)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrAssetNotFound, id)
	}
	return nil
}

// RegenerateDerived refreshes the size and pixel dimensions recorded for the
// asset from its current file. This is the library's equivalent of
// thumbnail regeneration.
func (s *Store) RegenerateDerived(ctx context.Context, id int64) error {
	path, err := s.LivePath(ctx, id)
	if err != nil {
		return err
	}
	size, width, height, err := probe(path)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(ctx,
		`UPDATE assets SET size = ?, width = ?, height = ?, updated_at = ? WHERE id = ?`,
		size, width, height, now(), id)
	if err != nil {
		return fmt.Errorf("update derived data: %w", err)
	}
	return nil
}

// QueryEligible returns up to limit asset IDs whose MIME type is in mimes and
// that carry none of the excluded metadata keys, in insertion order.
func (s *Store) QueryEligible(ctx context.Context, mimes []string, excludeKeys []string, limit int) ([]int64, error) {
	if len(mimes) == 0 || limit <= 0 {
		return nil, nil
	}
	query := `SELECT a.id FROM assets a WHERE a.mime IN (` + placeholders(len(mimes)) + `)`
	args := make([]any, 0, len(mimes)+len(excludeKeys)+1)
	for _, m := range mimes {
		args = append(args, m)
	}
	if len(excludeKeys) > 0 {
		query += ` AND NOT EXISTS (SELECT 1 FROM asset_meta m WHERE m.asset_id = a.id AND m.key IN (` + placeholders(len(excludeKeys)) + `))`
		for _, k := range excludeKeys {
			args = append(args, k)
		}
	}
	query += ` ORDER BY a.id LIMIT ?`
	args = append(args, limit)
	return s.queryIDs(ctx, query, args...)
}

// ListWithMeta returns IDs of every asset carrying key, in insertion order.
func (s *Store) ListWithMeta(ctx context.Context, key string) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT asset_id FROM asset_meta WHERE key = ? ORDER BY asset_id`, key)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query asset ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan asset id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// probe reads size and, when the header decodes, pixel dimensions.
func probe(path string) (int64, int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return info.Size(), 0, 0, nil
	}
	return info.Size(), cfg.Width, cfg.Height, nil
}
