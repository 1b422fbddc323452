package strikestore

import (
	"time"
)

// A single timestamped violation. Token is opaque to the store; rules typically use a message ID.
type Mark struct {
	Token string
	At    time.Time
}

// Mutable tracking record for one subject (usually a member within a guild).
//
// Only reachable inside a MemStrikeStore.Update callback, which holds the store lock.
type Subject[T any] struct {
	Marks []Mark
	// rule-specific extra state, eg the last message content seen
	Data T
	// last time the subject was updated
	Touched time.Time
}

func (s *Subject[T]) Add(at time.Time, tokens ...string) {
	for _, tok := range tokens {
		s.Marks = append(s.Marks, Mark{Token: tok, At: at})
	}
}

// Number of live (unexpired) marks.
func (s *Subject[T]) Live() int {
	return len(s.Marks)
}

// Tokens of all live marks, oldest first.
func (s *Subject[T]) Tokens() []string {
	out := make([]string, 0, len(s.Marks))
	for _, m := range s.Marks {
		out = append(out, m.Token)
	}
	return out
}

// Drops all marks. Data is left untouched.
func (s *Subject[T]) Clear() {
	s.Marks = nil
}

// removes marks recorded at or before now-window
func (s *Subject[T]) sweep(now time.Time, window time.Duration) {
	idx := 0
	for idx < len(s.Marks) && !now.Before(s.Marks[idx].At.Add(window)) {
		idx++
	}
	if idx == 0 {
		return
	}
	s.Marks = append(s.Marks[:0:0], s.Marks[idx:]...)
}
