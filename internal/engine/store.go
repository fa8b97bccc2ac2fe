package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// MasteryState is the persisted mastery probability for one
// (student, topic) pair. Created lazily on first observation, overwritten
// on every update, never deleted.
type MasteryState struct {
	StudentID string
	TopicID   string
	P         float64
	UpdatedAt time.Time
}

// ExerciseEvent is one append-only practice observation.
type ExerciseEvent struct {
	ID         string
	StudentID  string
	ItemID     string
	TopicID    string
	Correct    bool
	DurationMs int
	CreatedAt  time.Time
}

// Store persists mastery states, review schedules, exercise events and the
// item bank.
type Store interface {
	GetMastery(ctx context.Context, studentID, topicID string) (*MasteryState, error)
	PutMastery(ctx context.Context, state MasteryState) error
	// MasteryByStudent returns topicID -> p for every topic the student
	// has attempted.
	MasteryByStudent(ctx context.Context, studentID string) (map[string]float64, error)

	GetReview(ctx context.Context, studentID, itemID string) (*ReviewEntry, error)
	PutReview(ctx context.Context, entry ReviewEntry) error

	AppendEvent(ctx context.Context, event ExerciseEvent) error

	GetItem(ctx context.Context, itemID string) (*catalog.Item, error)
	InsertItem(ctx context.Context, item catalog.Item) error
	// PickItem returns one bank item for the topic, lowest item ID first
	// so selection is reproducible. Returns nil when the bank has none.
	PickItem(ctx context.Context, topicID string) (*catalog.Item, error)
}

// MemoryStore is an in-memory Store implementation for tests and
// single-node development.
type MemoryStore struct {
	mu      sync.RWMutex
	mastery map[string]MasteryState // studentID|topicID
	reviews map[string]ReviewEntry  // studentID|itemID
	events  []ExerciseEvent
	items   map[string]catalog.Item
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mastery: make(map[string]MasteryState),
		reviews: make(map[string]ReviewEntry),
		items:   make(map[string]catalog.Item),
	}
}

func pairKey(a, b string) string { return a + "|" + b }

func (s *MemoryStore) GetMastery(_ context.Context, studentID, topicID string) (*MasteryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.mastery[pairKey(studentID, topicID)]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *MemoryStore) PutMastery(_ context.Context, state MasteryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mastery[pairKey(state.StudentID, state.TopicID)] = state
	return nil
}

func (s *MemoryStore) MasteryByStudent(_ context.Context, studentID string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64)
	for _, st := range s.mastery {
		if st.StudentID == studentID {
			out[st.TopicID] = st.P
		}
	}
	return out, nil
}

func (s *MemoryStore) GetReview(_ context.Context, studentID, itemID string) (*ReviewEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.reviews[pairKey(studentID, itemID)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) PutReview(_ context.Context, entry ReviewEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[pairKey(entry.StudentID, entry.ItemID)] = entry
	return nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, event ExerciseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the append-only event log. Test helper.
func (s *MemoryStore) Events() []ExerciseEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ExerciseEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemoryStore) GetItem(_ context.Context, itemID string) (*catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *MemoryStore) InsertItem(_ context.Context, item catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *MemoryStore) PickItem(_ context.Context, topicID string) (*catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, item := range s.items {
		if item.TopicID == topicID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	item := s.items[ids[0]]
	return &item, nil
}
