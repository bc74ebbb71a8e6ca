package storage

import (
	"math"
	"sync"
	"time"
)

// DefaultCapacity is the number of records a MemoryStore keeps by default.
const DefaultCapacity = 10000

// MemoryStore implements Store using an in-memory slice. Once full, the
// oldest records are dropped.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []ScanRecord
	capacity int
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory store holding at most capacity
// records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		records:  make([]ScanRecord, 0),
		capacity: capacity,
		now:      time.Now,
	}
}

// Save stores a record.
func (s *MemoryStore) Save(rec ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= s.capacity {
		drop := len(s.records) - s.capacity + 1
		s.records = append(s.records[:0], s.records[drop:]...)
	}
	s.records = append(s.records, rec)
	return nil
}

// Query retrieves records matching the given criteria, newest first.
func (s *MemoryStore) Query(opts QueryOptions) ([]ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]ScanRecord, 0)

	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]

		if opts.Since != nil && rec.Timestamp.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && rec.Timestamp.After(*opts.Until) {
			continue
		}
		if opts.Language != "" && rec.Language != opts.Language {
			continue
		}
		if opts.SemanticStatus != "" && rec.SemanticStatus != opts.SemanticStatus {
			continue
		}
		if opts.MaxScore != nil && rec.Score > *opts.MaxScore {
			continue
		}

		results = append(results, rec)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(results) {
			return []ScanRecord{}, nil
		}
		results = results[opts.Offset:]
	}

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

// Stats aggregates every record still held.
func (s *MemoryStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		SemanticStatus: make(map[string]int64),
		Languages:      make(map[string]int64),
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var scoreSum float64

	for _, rec := range s.records {
		stats.TotalScans++
		if !rec.Timestamp.Before(today) {
			stats.ScansToday++
		}

		stats.Findings.Critical += rec.Summary.Critical
		stats.Findings.High += rec.Summary.High
		stats.Findings.Medium += rec.Summary.Medium
		stats.Findings.Low += rec.Summary.Low
		stats.Findings.Total += rec.Summary.Total
		stats.Suppressed += int64(rec.Suppressed)

		if rec.SemanticStatus != "" {
			stats.SemanticStatus[rec.SemanticStatus]++
		}
		if rec.Language != "" {
			stats.Languages[rec.Language]++
		}

		// Normalize to a 100 point scale so mixed scales average sensibly.
		if rec.MaxScore > 0 {
			scoreSum += rec.Score / rec.MaxScore * 100
		}
	}

	if stats.TotalScans > 0 {
		stats.AverageScore = math.Round(scoreSum/float64(stats.TotalScans)*10) / 10
	}

	return stats, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all stored records (for testing).
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]ScanRecord, 0)
}

// Close closes the storage (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}
