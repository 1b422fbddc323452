package strikestore

import (
	"sync"
	"time"
)

// In-process strike marks keyed by subject, with lazy per-mark expiry.
//
// A mark recorded at T is live while now < T+Window; expired marks are swept at the start of every Update on that subject, so no background timers are needed. With a zero Window, only marks added during the current Update are live.
type MemStrikeStore[T any] struct {
	Window time.Duration
	// defaults to time.Now; overridden in tests
	Now func() time.Time

	lk       sync.Mutex
	subjects map[string]*Subject[T]
}

func NewMemStrikeStore[T any](window time.Duration) *MemStrikeStore[T] {
	return &MemStrikeStore[T]{
		Window:   window,
		Now:      time.Now,
		subjects: make(map[string]*Subject[T]),
	}
}

func (s *MemStrikeStore[T]) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Atomically reads and mutates the subject's record, creating it if needed. Expired marks are removed before fn runs.
func (s *MemStrikeStore[T]) Update(key string, fn func(now time.Time, subj *Subject[T])) {
	s.lk.Lock()
	defer s.lk.Unlock()

	now := s.now()
	subj, ok := s.subjects[key]
	if !ok {
		subj = &Subject[T]{}
		s.subjects[key] = subj
	}
	subj.sweep(now, s.Window)
	subj.Touched = now
	fn(now, subj)
}

// Number of live marks for the subject, as of now.
func (s *MemStrikeStore[T]) Count(key string) int {
	s.lk.Lock()
	defer s.lk.Unlock()
	subj, ok := s.subjects[key]
	if !ok {
		return 0
	}
	subj.sweep(s.now(), s.Window)
	return subj.Live()
}

func (s *MemStrikeStore[T]) Delete(key string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.subjects, key)
}

// Number of tracked subjects.
func (s *MemStrikeStore[T]) Len() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.subjects)
}

// Forgets subjects with no live marks which haven't been updated for at least idle. Returns the number removed.
func (s *MemStrikeStore[T]) Prune(idle time.Duration) int {
	s.lk.Lock()
	defer s.lk.Unlock()
	now := s.now()
	removed := 0
	for key, subj := range s.subjects {
		subj.sweep(now, s.Window)
		if subj.Live() == 0 && now.Sub(subj.Touched) >= idle {
			delete(s.subjects, key)
			removed++
		}
	}
	return removed
}
