package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"crosslend/core/events"
)

// ErrBlobNotFound is returned when a journal entry id has no stored blob.
var ErrBlobNotFound = errors.New("audit: blob not found")

// BlobStore persists opaque audit payloads under caller-supplied keys.
type BlobStore interface {
	Store(key string, payload []byte) error
	Retrieve(key string) ([]byte, error)
}

// MemoryBlobStore is an in-process BlobStore used in tests and single-node
// deployments.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore constructs an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// Store implements BlobStore.
func (s *MemoryBlobStore) Store(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), payload...)
	return nil
}

// Retrieve implements BlobStore.
func (s *MemoryBlobStore) Retrieve(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Len reports the number of stored blobs.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

type entry struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	RecordedAt time.Time       `json:"recordedAt"`
	Event      json.RawMessage `json:"event"`
}

// Recorder journals every emitted event into a BlobStore as a JSON entry
// keyed by a fresh UUID. It satisfies events.Emitter so it can sit directly
// behind the engines, optionally fanning out to a wrapped emitter.
type Recorder struct {
	store BlobStore
	next  events.Emitter
	now   func() time.Time

	mu  sync.Mutex
	ids []string
}

// NewRecorder wraps next with audit journaling. A nil next discards events
// after recording them.
func NewRecorder(store BlobStore, next events.Emitter) *Recorder {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &Recorder{store: store, next: next, now: time.Now}
}

// Emit implements events.Emitter. Journal failures are logged and never block
// the originating operation.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	if err := r.record(evt); err != nil {
		slog.Warn("audit journal write failed", "type", evt.EventType(), "error", err)
	}
	r.next.Emit(evt)
}

func (r *Recorder) record(evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	id := uuid.NewString()
	blob, err := json.Marshal(entry{
		ID:         id,
		Type:       evt.EventType(),
		RecordedAt: r.now().UTC(),
		Event:      payload,
	})
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if err := r.store.Store(id, blob); err != nil {
		return fmt.Errorf("audit: store entry: %w", err)
	}
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	return nil
}

// Entries returns the journal entry ids in emission order.
func (r *Recorder) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// Lookup retrieves and decodes a journal entry by id.
func (r *Recorder) Lookup(id string) (string, json.RawMessage, error) {
	blob, err := r.store.Retrieve(id)
	if err != nil {
		return "", nil, err
	}
	var decoded entry
	if err := json.Unmarshal(blob, &decoded); err != nil {
		return "", nil, fmt.Errorf("audit: decode entry: %w", err)
	}
	return decoded.Type, decoded.Event, nil
}
