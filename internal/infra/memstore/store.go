package memstore

import (
	"context"
	"errors"
	"fmt"

	"vizpilot/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCapacity = 1024

// Store keeps the most recent request records in memory. Older records are
// evicted once capacity is reached.
type Store struct {
	records *lru.Cache[string, domain.RequestRecord]
}

func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, domain.RequestRecord](capacity)
	if err != nil {
		return nil, fmt.Errorf("init record cache: %w", err)
	}
	return &Store{records: cache}, nil
}

func (s *Store) Save(_ context.Context, rec domain.RequestRecord) error {
	if rec.RequestID == "" {
		return errors.New("request_id is required")
	}
	s.records.Add(rec.RequestID, rec)
	return nil
}

func (s *Store) Load(_ context.Context, requestID string) (domain.RequestRecord, error) {
	rec, ok := s.records.Get(requestID)
	if !ok {
		return domain.RequestRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *Store) Len() int { return s.records.Len() }
