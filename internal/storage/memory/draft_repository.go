package memory

import (
	"sync"
	"time"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

// draftRepositoryInMemory — хранилище черновиков checkout-сеансов.
// Черновики не долговременны, поэтому память — основная реализация.
type draftRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Draft
}

// NewDraftRepository возвращает in-memory репозиторий черновиков.
func NewDraftRepository() domain.DraftRepository {
	return &draftRepositoryInMemory{
		items: make(map[string]domain.Draft),
	}
}

// Create сохраняет новый черновик, если ID ещё не занят.
func (r *draftRepositoryInMemory) Create(draft domain.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[draft.ID]; exists {
		return domain.ErrDraftVersionConflict
	}
	r.items[draft.ID] = cloneDraft(draft)
	return nil
}

// Get возвращает черновик или ErrDraftNotFound.
func (r *draftRepositoryInMemory) Get(id string) (domain.Draft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	draft, ok := r.items[id]
	if !ok {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	return cloneDraft(draft), nil
}

// Save перезаписывает черновик с проверкой версии (optimistic locking).
// Через эту проверку обеспечивается не более одной отправки в полёте:
// конкурирующий переход в submitting упрётся в конфликт версий.
func (r *draftRepositoryInMemory) Save(draft domain.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[draft.ID]
	if !ok {
		return domain.ErrDraftNotFound
	}
	if current.Version != draft.Version {
		return domain.ErrDraftVersionConflict
	}
	draft.Version++
	draft.UpdatedAt = time.Now().UTC()
	r.items[draft.ID] = cloneDraft(draft)
	return nil
}

// Delete уничтожает черновик при явной отмене.
func (r *draftRepositoryInMemory) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrDraftNotFound
	}
	delete(r.items, id)
	return nil
}

// cloneDraft копирует черновик вместе с позициями, чтобы изменения снаружи
// не просачивались в хранилище.
func cloneDraft(src domain.Draft) domain.Draft {
	dst := src
	if src.Lines != nil {
		dst.Lines = append([]domain.CartLine(nil), src.Lines...)
	}
	if src.Installment != nil {
		terms := *src.Installment
		dst.Installment = &terms
	}
	return dst
}

var _ domain.DraftRepository = (*draftRepositoryInMemory)(nil)
