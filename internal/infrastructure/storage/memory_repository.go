package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// MemoryRepository keeps items and digests in process memory with the same
// dedup contract as the Postgres store.
type MemoryRepository struct {
	mu         sync.RWMutex
	now        func() time.Time
	items      []domain.CandidateItem
	byOrigin   map[string]int64
	digests    []domain.DigestEntry
	digestItem map[int64]int64
	nextItem   int64
	nextDigest int64
}

var _ ports.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return NewMemoryRepositoryWithClock(time.Now)
}

// NewMemoryRepositoryWithClock builds an empty store that stamps records with now.
func NewMemoryRepositoryWithClock(now func() time.Time) *MemoryRepository {
	return &MemoryRepository{
		now:        now,
		byOrigin:   map[string]int64{},
		digestItem: map[int64]int64{},
	}
}

// IngestItem stores the item unless its origin id is already known.
func (m *MemoryRepository) IngestItem(_ context.Context, item domain.CandidateItem) (domain.IngestOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byOrigin[item.OriginID]; ok {
		return domain.OutcomeAlreadyExists, nil
	}

	m.nextItem++
	item.ID = m.nextItem
	item.ScrapedAt = m.now().UTC()
	item.PublishedAt = item.PublishedAt.UTC()
	item.Metadata = copyMetadata(item.Metadata)

	m.items = append(m.items, item)
	m.byOrigin[item.OriginID] = item.ID
	return domain.OutcomeCreated, nil
}

// ItemsBySource returns items of one source, newest first.
func (m *MemoryRepository) ItemsBySource(_ context.Context, source string, limit int) ([]domain.CandidateItem, error) {
	return m.filterItems(func(it domain.CandidateItem) bool { return it.SourceName == source }, limit), nil
}

// RecentItems returns items published at or after since, newest first.
func (m *MemoryRepository) RecentItems(_ context.Context, since time.Time, limit int) ([]domain.CandidateItem, error) {
	return m.filterItems(func(it domain.CandidateItem) bool { return !it.PublishedAt.Before(since) }, limit), nil
}

// AllItems returns every item, newest first.
func (m *MemoryRepository) AllItems(_ context.Context, limit int) ([]domain.CandidateItem, error) {
	return m.filterItems(func(domain.CandidateItem) bool { return true }, limit), nil
}

// CountBySource counts items of one source.
func (m *MemoryRepository) CountBySource(_ context.Context, source string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, it := range m.items {
		if it.SourceName == source {
			count++
		}
	}
	return count, nil
}

// DigestExists reports whether the item already has a digest.
func (m *MemoryRepository) DigestExists(_ context.Context, itemID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.digestItem[itemID]
	return ok, nil
}

// SaveDigest stores a digest unless the item already has one. The item must exist.
func (m *MemoryRepository) SaveDigest(_ context.Context, entry domain.DigestEntry) (domain.DigestEntry, domain.IngestOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.SourceItemID < 1 || entry.SourceItemID > m.nextItem {
		return entry, "", fmt.Errorf("insert digest for item %d: %w", entry.SourceItemID, ErrUnknownItem)
	}

	if _, ok := m.digestItem[entry.SourceItemID]; ok {
		return entry, domain.OutcomeAlreadyExists, nil
	}

	m.nextDigest++
	entry.ID = m.nextDigest
	entry.CreatedAt = m.now().UTC()

	m.digests = append(m.digests, entry)
	m.digestItem[entry.SourceItemID] = entry.ID
	return entry, domain.OutcomeCreated, nil
}

// DigestByID returns one digest joined with its item's source name.
func (m *MemoryRepository) DigestByID(_ context.Context, id int64) (domain.DigestEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.digests {
		if d.ID == id {
			return m.joinSource(d), true, nil
		}
	}
	return domain.DigestEntry{}, false, nil
}

// RecentDigests returns digests created at or after since, newest first.
func (m *MemoryRepository) RecentDigests(_ context.Context, since time.Time, limit int) ([]domain.DigestEntry, error) {
	return m.filterDigests(func(d domain.DigestEntry) bool { return !d.CreatedAt.Before(since) }, limit), nil
}

// AllDigests returns every digest, newest first.
func (m *MemoryRepository) AllDigests(_ context.Context, limit int) ([]domain.DigestEntry, error) {
	return m.filterDigests(func(domain.DigestEntry) bool { return true }, limit), nil
}

func (m *MemoryRepository) filterItems(keep func(domain.CandidateItem) bool, limit int) []domain.CandidateItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.CandidateItem, 0)
	for _, it := range m.items {
		if keep(it) {
			it.Metadata = copyMetadata(it.Metadata)
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, limit)
}

func (m *MemoryRepository) filterDigests(keep func(domain.DigestEntry) bool, limit int) []domain.DigestEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.DigestEntry, 0)
	for _, d := range m.digests {
		if keep(d) {
			out = append(out, m.joinSource(d))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return truncate(out, limit)
}

// joinSource expects the read lock to be held.
func (m *MemoryRepository) joinSource(d domain.DigestEntry) domain.DigestEntry {
	if idx := int(d.SourceItemID) - 1; idx >= 0 && idx < len(m.items) {
		d.SourceName = m.items[idx].SourceName
	}
	return d
}

func truncate[T any](values []T, limit int) []T {
	if limit > 0 && len(values) > limit {
		return values[:limit]
	}
	return values
}

func copyMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
