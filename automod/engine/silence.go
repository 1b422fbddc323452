package engine

import (
	"strings"
	"sync"
	"time"
)

// Per-channel counter which suppresses public punishment announcements while above zero.
//
// Each Bump increments the channel's counter and schedules a matching decrement after Window. Decrements never take a counter below zero, so a Clear racing with pending decrements is harmless.
type SilenceCounter struct {
	Window time.Duration

	lk     sync.Mutex
	counts map[string]int
}

func NewSilenceCounter(window time.Duration) *SilenceCounter {
	return &SilenceCounter{
		Window: window,
		counts: make(map[string]int),
	}
}

func (s *SilenceCounter) Bump(channelID string) {
	s.lk.Lock()
	s.counts[channelID]++
	s.lk.Unlock()
	time.AfterFunc(s.Window, func() { s.decrement(channelID) })
}

func (s *SilenceCounter) decrement(channelID string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	n, ok := s.counts[channelID]
	if !ok {
		return
	}
	if n <= 1 {
		delete(s.counts, channelID)
		return
	}
	s.counts[channelID] = n - 1
}

func (s *SilenceCounter) Count(channelID string) int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.counts[channelID]
}

func (s *SilenceCounter) Silenced(channelID string) bool {
	return s.Count(channelID) > 0
}

// Resets the channel's counter, returning the previous value. Pending decrements become no-ops.
func (s *SilenceCounter) Clear(channelID string) int {
	s.lk.Lock()
	defer s.lk.Unlock()
	n := s.counts[channelID]
	delete(s.counts, channelID)
	return n
}

// Returns a snapshot of every non-zero counter.
func (s *SilenceCounter) Snapshot() map[string]int {
	s.lk.Lock()
	defer s.lk.Unlock()
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

func containsAnyTrigger(content string, triggers []string) bool {
	for _, t := range triggers {
		if t != "" && strings.Contains(content, t) {
			return true
		}
	}
	return false
}
