package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// MemStore is an in-memory media library for optimizer and batch tests. IDs
// are chosen by the caller.
type MemStore struct {
	mu          sync.Mutex
	assets      map[int64]*memAsset
	meta        map[int64]map[string]string
	regenerated map[int64]int

	// FailSetMeta, when set, is returned by SetMeta for the matching key.
	FailSetMeta map[string]error
}

type memAsset struct {
	path string
	mime string
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		assets:      make(map[int64]*memAsset),
		meta:        make(map[int64]map[string]string),
		regenerated: make(map[int64]int),
	}
}

// Put registers an asset with an explicit ID.
func (s *MemStore) Put(id int64, path, mime string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[id] = &memAsset{path: filepath.Clean(path), mime: mime}
}

// MIME returns the asset's recorded MIME type.
func (s *MemStore) MIME(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assets[id]; ok {
		return a.mime
	}
	return ""
}

// Regenerated returns how often derived data was regenerated for id.
func (s *MemStore) Regenerated(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regenerated[id]
}

// MetaValue returns a metadata value, or "" when absent.
func (s *MemStore) MetaValue(id int64, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[id][key]
}

func (s *MemStore) LivePath(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return "", fmt.Errorf("asset %d not found", id)
	}
	return a.path, nil
}

func (s *MemStore) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *MemStore) SetLivePath(_ context.Context, id int64, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("asset %d not found", id)
	}
	a.path = filepath.Clean(path)
	return nil
}

func (s *MemStore) SetFormat(_ context.Context, id int64, mime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("asset %d not found", id)
	}
	a.mime = mime
	return nil
}

func (s *MemStore) Meta(_ context.Context, id int64, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.meta[id][key]
	return v, ok, nil
}

func (s *MemStore) SetMeta(_ context.Context, id int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailSetMeta[key]; err != nil {
		return err
	}
	if s.meta[id] == nil {
		s.meta[id] = make(map[string]string)
	}
	s.meta[id][key] = value
	return nil
}

func (s *MemStore) DeleteMeta(_ context.Context, id int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta[id], key)
	return nil
}

func (s *MemStore) DeleteMetaPrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, kv := range s.meta {
		for k := range kv {
			if strings.HasPrefix(k, prefix) {
				delete(kv, k)
				n++
			}
		}
	}
	return n, nil
}

func (s *MemStore) RegenerateDerived(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[id]; !ok {
		return fmt.Errorf("asset %d not found", id)
	}
	s.regenerated[id]++
	return nil
}

func (s *MemStore) QueryEligible(_ context.Context, mimes []string, excludeKeys []string, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, id := range s.sortedIDs() {
		if len(ids) >= limit {
			break
		}
		if !slices.Contains(mimes, s.assets[id].mime) {
			continue
		}
		excluded := false
		for _, k := range excludeKeys {
			if _, ok := s.meta[id][k]; ok {
				excluded = true
				break
			}
		}
		if !excluded {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemStore) ListWithMeta(_ context.Context, key string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, id := range s.sortedIDs() {
		if _, ok := s.meta[id][key]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.assets))
	for id := range s.assets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
