package sync

import (
	"database/sql"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/podfund/internal/domain"
)

// CachedAnalysis is an explicit versioned cache entry. Analyses are
// never mutated in place; a recomputation stores a new entry with a
// bumped version.
type CachedAnalysis struct {
	Analysis          domain.PodFundingAnalysis `msgpack:"analysis"`
	LastTransactionAt time.Time                 `msgpack:"last_transaction_at"`
	Version           int64                     `msgpack:"version"`
}

// AnalysisCache is an in-memory versioned cache keyed by pod id, with
// optional sqlite persistence. Writes per pod are serialized by the
// cache; Swap implements the (podID, lastTransactionAt) compare-and-swap
// discipline for hosts racing change events on the same pod.
type AnalysisCache struct {
	mu      gosync.RWMutex
	entries map[string]CachedAnalysis
	store   *CacheStore
	log     zerolog.Logger
}

// NewAnalysisCache creates an analysis cache. store may be nil for a
// purely in-memory cache.
func NewAnalysisCache(store *CacheStore, log zerolog.Logger) *AnalysisCache {
	cache := &AnalysisCache{
		entries: make(map[string]CachedAnalysis),
		store:   store,
		log:     log.With().Str("module", "analysis_cache").Logger(),
	}
	if store != nil {
		if entries, err := store.LoadAll(); err != nil {
			cache.log.Warn().Err(err).Msg("Failed to warm analysis cache from store")
		} else {
			for podID, entry := range entries {
				cache.entries[podID] = entry
			}
		}
	}
	return cache
}

// Get returns the cached entry for a pod
func (c *AnalysisCache) Get(podID string) (CachedAnalysis, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[podID]
	return entry, ok
}

// Store unconditionally replaces the entry for a pod, bumping its version
func (c *AnalysisCache) Store(podID string, analysis domain.PodFundingAnalysis, lastTransactionAt time.Time) CachedAnalysis {
	c.mu.Lock()
	entry := CachedAnalysis{
		Analysis:          analysis,
		LastTransactionAt: lastTransactionAt,
		Version:           c.entries[podID].Version + 1,
	}
	c.entries[podID] = entry
	c.mu.Unlock()

	c.persist(podID, entry)
	return entry
}

// Swap replaces the entry only if the stored LastTransactionAt still
// matches expect, preventing lost updates between racing change events.
func (c *AnalysisCache) Swap(podID string, expect time.Time, analysis domain.PodFundingAnalysis, lastTransactionAt time.Time) bool {
	c.mu.Lock()
	current := c.entries[podID]
	if !current.LastTransactionAt.Equal(expect) {
		c.mu.Unlock()
		return false
	}
	entry := CachedAnalysis{
		Analysis:          analysis,
		LastTransactionAt: lastTransactionAt,
		Version:           current.Version + 1,
	}
	c.entries[podID] = entry
	c.mu.Unlock()

	c.persist(podID, entry)
	return true
}

// Invalidate drops the entry for a pod
func (c *AnalysisCache) Invalidate(podID string) {
	c.mu.Lock()
	delete(c.entries, podID)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(podID); err != nil {
			c.log.Warn().Err(err).Str("pod_id", podID).Msg("Failed to delete cached analysis")
		}
	}
}

// Analyses returns all cached analyses
func (c *AnalysisCache) Analyses() []domain.PodFundingAnalysis {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]domain.PodFundingAnalysis, 0, len(c.entries))
	for _, entry := range c.entries {
		result = append(result, entry.Analysis)
	}
	return result
}

func (c *AnalysisCache) persist(podID string, entry CachedAnalysis) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(podID, entry); err != nil {
		c.log.Warn().Err(err).Str("pod_id", podID).Msg("Failed to persist cached analysis")
	}
}

// CacheStore persists cache entries to the cache database as msgpack
// blobs.
type CacheStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCacheStore creates a cache store on the given cache database
func NewCacheStore(db *sql.DB, log zerolog.Logger) *CacheStore {
	return &CacheStore{
		db:  db,
		log: log.With().Str("repo", "analysis_cache").Logger(),
	}
}

// Init creates the cache table if missing
func (s *CacheStore) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_cache (
			pod_id  TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			payload BLOB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analysis_cache table: %w", err)
	}
	return nil
}

// Save upserts one cache entry
func (s *CacheStore) Save(podID string, entry CachedAnalysis) error {
	payload, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cached analysis: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO analysis_cache (pod_id, version, payload) VALUES (?, ?, ?)
		ON CONFLICT(pod_id) DO UPDATE SET version = excluded.version, payload = excluded.payload
	`, podID, entry.Version, payload)
	if err != nil {
		return fmt.Errorf("failed to save cached analysis: %w", err)
	}
	return nil
}

// Delete removes one cache entry
func (s *CacheStore) Delete(podID string) error {
	if _, err := s.db.Exec("DELETE FROM analysis_cache WHERE pod_id = ?", podID); err != nil {
		return fmt.Errorf("failed to delete cached analysis: %w", err)
	}
	return nil
}

// LoadAll reads every cache entry, keyed by pod id
func (s *CacheStore) LoadAll() (map[string]CachedAnalysis, error) {
	rows, err := s.db.Query("SELECT pod_id, payload FROM analysis_cache")
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis cache: %w", err)
	}
	defer rows.Close()

	result := make(map[string]CachedAnalysis)
	for rows.Next() {
		var podID string
		var payload []byte
		if err := rows.Scan(&podID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan cached analysis: %w", err)
		}
		var entry CachedAnalysis
		if err := msgpack.Unmarshal(payload, &entry); err != nil {
			s.log.Warn().Err(err).Str("pod_id", podID).Msg("Dropping undecodable cache entry")
			continue
		}
		result[podID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis cache: %w", err)
	}
	return result, nil
}
