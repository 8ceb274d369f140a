package store

import (
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SeenTracks is a thread-safe bounded memory of (playlist, track) pairs that
// were already announced. The coordinator consults it so a track removed and
// re-added between polls is not announced twice. The bloom filter makes the
// common miss cheap; the LRU bounds memory by evicting the oldest pairs
// first. Losing an entry only risks an extra notification, never a missed
// one, so the store is not persisted.
type SeenTracks struct {
	keys              map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	mutex             sync.RWMutex
	maxEntries        int
	falsePositiveRate float64
}

// NewSeenTracks creates a seen-track store holding up to maxEntries pairs.
func NewSeenTracks(maxEntries int, falsePositiveRate float64) *SeenTracks {
	if maxEntries <= 0 {
		panic("maxEntries must be positive")
	}

	s := &SeenTracks{
		keys:              make(map[string]struct{}),
		bloom:             bloom.NewWithEstimates(uint(maxEntries), falsePositiveRate),
		maxEntries:        maxEntries,
		falsePositiveRate: falsePositiveRate,
	}

	// The eviction callback keeps the exact-key map in step with the LRU.
	// It runs synchronously inside lru.Add, under the mutex AddTrack holds.
	lruCache, _ := lru.NewWithEvict[string, struct{}](maxEntries, func(key string, _ struct{}) {
		delete(s.keys, key)
	})
	s.lru = lruCache

	return s
}

func seenKey(playlistID int64, trackID string) string {
	return strconv.FormatInt(playlistID, 10) + ":" + trackID
}

// HasTrack reports whether the pair was already announced.
func (s *SeenTracks) HasTrack(playlistID int64, trackID string) bool {
	key := seenKey(playlistID, trackID)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.bloom.TestString(key) {
		return false
	}

	_, exists := s.keys[key]
	return exists
}

// AddTrack records the pair as announced.
func (s *SeenTracks) AddTrack(playlistID int64, trackID string) {
	key := seenKey(playlistID, trackID)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.keys[key]; exists {
		return
	}

	s.keys[key] = struct{}{}
	s.bloom.AddString(key)
	// At capacity this evicts the oldest pair, and the eviction callback
	// drops it from the map. The bloom filter cannot forget the evicted
	// key; the map lookup after the filter keeps the answer correct.
	s.lru.Add(key, struct{}{})
}

// Size returns the number of pairs currently remembered.
func (s *SeenTracks) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.keys)
}
