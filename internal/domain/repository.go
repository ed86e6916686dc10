package domain

// DraftRepository описывает требования к хранилищу черновиков сеанса.
// Черновики живут в пределах сеанса и не являются долговременными записями.
type DraftRepository interface {
	// Create сохраняет новый черновик. Возвращает ошибку, если ID уже занят.
	Create(draft Draft) error
	// Get возвращает черновик по идентификатору или ErrDraftNotFound.
	Get(id string) (Draft, error)
	// Save применяет обновления с учётом optimistic locking.
	Save(draft Draft) error
	// Delete уничтожает черновик при явной отмене сеанса.
	Delete(id string) error
}
