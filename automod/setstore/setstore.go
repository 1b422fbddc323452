package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// Named sets of strings, such as shared phrase lists referenced by blacklist rules.
type SetStore interface {
	// returns the sorted members of the named set, and false if no such set exists
	Members(ctx context.Context, name string) ([]string, bool, error)
}

type MemSetStore struct {
	lk   sync.RWMutex
	Sets map[string]map[string]bool
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) Members(ctx context.Context, name string) ([]string, bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, true, nil
}

// Replaces (or creates) a set.
func (s *MemSetStore) Put(name string, vals ...string) {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	s.lk.Lock()
	s.Sets[name] = m
	s.lk.Unlock()
}

// Loads sets from a JSON object of name => list of strings.
func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return fmt.Errorf("parsing set file %s: %w", p, err)
	}

	for name, l := range sets {
		s.Put(name, l...)
	}
	return nil
}
