package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jromeu/vitalink/internal/record"
)

// localStore is the in-process fallback collection, one slice per entity
// kind, newest-first insertion order. It lives for the process lifetime.
// A mutex guards every collection: unlike the original single-threaded
// environment, gateway calls here may race.
type localStore struct {
	mu   sync.Mutex
	data map[record.Kind][]record.Reading
	now  func() time.Time
}

func newLocalStore(now func() time.Time) *localStore {
	if now == nil {
		now = time.Now
	}
	return &localStore{
		data: make(map[record.Kind][]record.Reading),
		now:  now,
	}
}

// seed preloads a collection, e.g. with bundled sample data.
func (s *localStore) seed(kind record.Kind, readings []record.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[kind] = append(s.data[kind], readings...)
}

// list returns a sorted copy of the collection.
func (s *localStore) list(kind record.Kind, sort string) []record.Reading {
	s.mu.Lock()
	src := s.data[kind]
	out := make([]record.Reading, len(src))
	copy(out, src)
	s.mu.Unlock()

	record.SortBy(out, sort)
	return out
}

// create synthesizes an id and prepends the record. The uuid suffix keeps
// ids collision-free even when two creates land in the same millisecond.
func (s *localStore) create(kind record.Kind, payload record.Reading) record.Reading {
	payload.ID = fmt.Sprintf("%s-%d-%s",
		strings.ToLower(string(kind)),
		s.now().UnixMilli(),
		uuid.NewString()[:8])

	s.mu.Lock()
	s.data[kind] = append([]record.Reading{payload}, s.data[kind]...)
	s.mu.Unlock()
	return payload
}

// update merges patch fields over the record with the given id, in place.
func (s *localStore) update(kind record.Kind, id string, patch record.Patch) (record.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.data[kind]
	for i, r := range collection {
		if r.ID != id {
			continue
		}
		merged, err := record.Apply(r, patch)
		if err != nil {
			return record.Reading{}, err
		}
		merged.ID = id
		collection[i] = merged
		return merged, nil
	}
	return record.Reading{}, &NotFoundError{Kind: kind, ID: id}
}
