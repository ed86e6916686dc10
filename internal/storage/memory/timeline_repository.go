package memory

import (
	"sort"
	"sync"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

// timelineRepositoryInMemory хранит события черновиков в памяти.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие в хранилище.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.DraftID] = append(r.events[event.DraftID], event)

	sort.SliceStable(r.events[event.DraftID], func(i, j int) bool {
		return r.events[event.DraftID][i].Occurred.Before(r.events[event.DraftID][j].Occurred)
	})

	return nil
}

// List возвращает события черновика в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(draftID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[draftID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
