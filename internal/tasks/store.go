package tasks

import (
	"maps"
	"sync"

	"github.com/google/uuid"

	"taskdesk/internal/schema"
)

// Record is one task. Values always carries every schema field.
type Record struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
}

// Value returns the field value, or "" when the field is absent.
func (r Record) Value(name string) string {
	return r.Values[name]
}

func (r Record) clone() Record {
	return Record{ID: r.ID, Values: maps.Clone(r.Values)}
}

// Subscriber receives a snapshot of the full sequence after each mutation.
// It runs on the mutating goroutine, must not block and must not call back
// into the Store. Snapshots arrive in mutation order.
type Subscriber func([]Record)

// Store is the in-memory, ordered task collection for a session.
type Store struct {
	schema schema.Schema
	newID  func() string

	mu      sync.RWMutex
	records []Record
	issued  map[string]struct{}
	subs    []Subscriber

	// notifyMu is taken before mu is released, so deliveries keep the
	// order of the mutations that produced them.
	notifyMu sync.Mutex
}

type Option func(*Store)

// WithIDFunc overrides id generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewStore(sc schema.Schema, opts ...Option) *Store {
	s := &Store{
		schema: sc,
		newID:  uuid.NewString,
		issued: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Schema() schema.Schema {
	return s.schema
}

// Subscribe registers fn for mutation notifications.
func (s *Store) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Seed loads records without notifying subscribers. Used once at startup
// with what the persistence gateway returned.
func (s *Store) Seed(records []Record) {
	s.mu.Lock()
	s.records = s.adopt(records)
	s.mu.Unlock()
}

func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.records[i].clone(), true
	}
	return Record{}, false
}

func (s *Store) Create(values map[string]string) (Record, error) {
	if missing := s.schema.Missing(values); len(missing) > 0 {
		return Record{}, ValidationError{Missing: missing}
	}
	s.mu.Lock()
	rec := Record{ID: s.nextIDLocked(), Values: s.schema.Normalize(values)}
	s.records = append(s.records, rec)
	s.unlockAndNotify()
	return rec.clone(), nil
}

// Update replaces the field values of id, keeping its id and position.
func (s *Store) Update(id string, values map[string]string) (Record, error) {
	if missing := s.schema.Missing(values); len(missing) > 0 {
		return Record{}, ValidationError{Missing: missing}
	}
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Record{}, NotFoundError{ID: id}
	}
	s.records[i] = Record{ID: id, Values: s.schema.Normalize(values)}
	rec := s.records[i].clone()
	s.unlockAndNotify()
	return rec, nil
}

// Delete removes id. An unknown id is a no-op and notifies nobody.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.records = append(s.records[:i:i], s.records[i+1:]...)
	s.unlockAndNotify()
	return true
}

// ReplaceAll discards the sequence and substitutes records. Records without
// an id, or whose id repeats an earlier one in the input, get a fresh id.
func (s *Store) ReplaceAll(records []Record) []Record {
	s.mu.Lock()
	s.records = s.adopt(records)
	return s.unlockAndNotify()
}

func (s *Store) Clear() {
	s.ReplaceAll(nil)
}

// MergeAppend appends records under fresh ids, ignoring any id they carry.
// Existing records are never modified.
func (s *Store) MergeAppend(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	added := make([]Record, 0, len(records))
	for _, r := range records {
		rec := Record{ID: s.nextIDLocked(), Values: s.schema.Normalize(r.Values)}
		s.records = append(s.records, rec)
		added = append(added, rec.clone())
	}
	s.unlockAndNotify()
	return added
}

func (s *Store) adopt(records []Record) []Record {
	out := make([]Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		id := r.ID
		if _, dup := seen[id]; id == "" || dup {
			id = s.nextIDLocked()
		}
		seen[id] = struct{}{}
		s.issued[id] = struct{}{}
		out = append(out, Record{ID: id, Values: s.schema.Normalize(r.Values)})
	}
	return out
}

func (s *Store) nextIDLocked() string {
	for {
		id := s.newID()
		if id == "" {
			continue
		}
		if _, used := s.issued[id]; used {
			continue
		}
		s.issued[id] = struct{}{}
		return id
	}
}

func (s *Store) indexLocked(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []Record {
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}

// unlockAndNotify releases mu, which the caller holds for writing, and
// delivers the resulting snapshot to every subscriber.
func (s *Store) unlockAndNotify() []Record {
	snap, subs := s.snapshotLocked(), s.subs
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	return snap
}
