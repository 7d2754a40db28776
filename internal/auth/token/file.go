package token

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists token sets to a JSON file so a session survives a
// process restart. Writes go through a temp file and rename, so a concurrent
// reader never observes a half-written set.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Get(p Provider) (Set, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sets := f.load()
	s, ok := sets[p]
	if !ok || !s.Valid() {
		return Set{}, false
	}
	return s, true
}

func (f *FileStore) Put(p Provider, s Set) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sets := f.load()
	sets[p] = s
	f.save(sets)
}

func (f *FileStore) Clear(p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sets := f.load()
	delete(sets, p)
	f.save(sets)
}

func (f *FileStore) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = os.Remove(f.path)
}

func (f *FileStore) load() map[Provider]Set {
	sets := map[Provider]Set{}
	b, err := os.ReadFile(f.path)
	if err != nil {
		return sets
	}
	_ = json.Unmarshal(b, &sets)
	return sets
}

func (f *FileStore) save(sets map[Provider]Set) {
	b, err := json.Marshal(sets)
	if err != nil {
		return
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, f.path)
}
