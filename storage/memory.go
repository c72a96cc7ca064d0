package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"propertyguru-scraper/models"
)

// MemoryStore is an in-memory Store with the same transactional contract as
// the Postgres store. It backs the test suites and --dry-run scrapes where
// no database is available.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[models.ListingKey]*models.Listing
	order  []models.ListingKey // insertion order, the store-default order
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[models.ListingKey]*models.Listing)}
}

type memTx struct {
	store   *MemoryStore
	inserts []*models.Listing
	updates []*models.Listing
}

func (t *memTx) FetchByKey(key models.ListingKey) (*models.Listing, error) {
	for _, l := range t.inserts {
		if l.Key() == key {
			return l.Clone(), nil
		}
	}
	if l, ok := t.store.rows[key]; ok {
		return l.Clone(), nil
	}
	return nil, nil
}

func (t *memTx) Insert(l *models.Listing) error {
	key := l.Key()
	if _, ok := t.store.rows[key]; ok {
		return fmt.Errorf("%w: %s", ErrConflict, key)
	}
	for _, staged := range t.inserts {
		if staged.Key() == key {
			return fmt.Errorf("%w: %s", ErrConflict, key)
		}
	}
	c := l.Clone()
	t.store.nextID++
	c.ID = t.store.nextID
	c.CreatedAt = time.Now()
	l.ID = c.ID
	l.CreatedAt = c.CreatedAt
	t.inserts = append(t.inserts, c)
	return nil
}

func (t *memTx) Update(l *models.Listing) error {
	key := l.Key()
	if _, ok := t.store.rows[key]; !ok {
		return fmt.Errorf("memory: update %s: %w", key, ErrNotFound)
	}
	t.updates = append(t.updates, l.Clone())
	return nil
}

// WithTx holds the store lock for the duration of fn. Writes are staged and
// applied only when fn returns nil, mirroring commit/rollback semantics.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	for _, l := range tx.inserts {
		s.rows[l.Key()] = l
		s.order = append(s.order, l.Key())
	}
	for _, l := range tx.updates {
		prev := s.rows[l.Key()]
		c := l.Clone()
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
		s.rows[l.Key()] = c
	}
	return nil
}

func (s *MemoryStore) FetchByKey(ctx context.Context, key models.ListingKey) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.rows[key]; ok {
		return l.Clone(), nil
	}
	return nil, nil
}

func (s *MemoryStore) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listings := make([]*models.Listing, 0, len(s.order))
	for _, key := range s.order {
		listings = append(listings, s.rows[key].Clone())
	}
	return listings, nil
}

func (s *MemoryStore) PendingDetails(ctx context.Context, limit int) ([]*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*models.Listing
	for _, key := range s.order {
		l := s.rows[key]
		if l.DetailsFetched {
			continue
		}
		pending = append(pending, l.Clone())
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored rows; test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
