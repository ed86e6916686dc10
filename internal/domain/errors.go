package domain

import "errors"

var (
	// Ошибка отсутствующей валюты черновика.
	ErrCurrencyRequired = errors.New("currency_id is required")
	// Ошибка отсутствующего поставщика в закупке.
	ErrSupplierRequired = errors.New("supplier_id is required")
	// Ошибка отсутствующего клиента при продаже в рассрочку.
	ErrCounterpartyRequired = errors.New("counterparty_id is required for installment sale")
	// Ошибка пустой корзины при сборке транзакции.
	ErrEmptyCart = errors.New("draft must contain at least one line")
	// Ошибка отсутствующей кассы при немедленном расчёте.
	ErrKassaRequired = errors.New("kassa_id is required for immediate settlement")
	// Ошибка выбора кассы в валюте, отличной от валюты черновика.
	ErrKassaCurrencyMismatch = errors.New("kassa currency does not match draft currency")
	// Ошибка скидки, превышающей цену позиции.
	ErrInvalidDiscount = errors.New("line discount must not exceed unit price")
	// Скидка на позицию допустима только в закупках.
	ErrDiscountNotAllowed = errors.New("line discount is allowed for purchase drafts only")
	// Приходные реквизиты (партия, срок годности) допустимы только в закупках.
	ErrBatchNotAllowed = errors.New("batch details are allowed for purchase drafts only")
	// Ошибка первоначального взноса, покрывающего всю сумму или больше.
	ErrInvalidInitialPayment = errors.New("initial payment must be less than total amount")
	// Ошибка количества позиции (< 1).
	ErrInvalidQuantity = errors.New("line quantity must be at least 1")
	// Ошибка отрицательной цены позиции.
	ErrInvalidUnitPrice = errors.New("unit price must be non-negative")
	// Запрошенное количество превышает доступный остаток.
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	// Режим оплаты не поддерживается для данного вида черновика.
	ErrInvalidPaymentMode = errors.New("payment mode is not valid for draft kind")
	// Смена валюты при непустой корзине требует явного подтверждения.
	ErrCurrencyChangeConfirmation = errors.New("currency change clears all lines and must be confirmed")

	// ErrDraftNotFound возвращается, если черновик не найден в репозитории.
	ErrDraftNotFound = errors.New("draft not found")
	// ErrDraftVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrDraftVersionConflict = errors.New("draft version conflict")
	// ErrLineNotFound возвращается при операции над отсутствующей позицией.
	ErrLineNotFound = errors.New("draft line not found")
	// ErrVariantNotFound — вариант товара отсутствует в каталоге.
	ErrVariantNotFound = errors.New("product variant not found")
	// ErrKassaNotFound — касса отсутствует в справочнике.
	ErrKassaNotFound = errors.New("kassa not found")
	// ErrPlanNotFound — план рассрочки отсутствует в справочнике.
	ErrPlanNotFound = errors.New("installment plan not found")
	// ErrPriceEntryNotFound — в прайс-листе нет записи для запрошенного типа/валюты.
	ErrPriceEntryNotFound = errors.New("price list entry not found")

	// ErrSubmissionInFlight — по черновику уже выполняется отправка.
	ErrSubmissionInFlight = errors.New("submission already in flight for draft")
	// ErrSubmissionFailed — внешний сервис отклонил транзакцию или недоступен.
	ErrSubmissionFailed = errors.New("transaction submission failed")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — запрос с этим ключом уже принят.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — тот же ключ использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий черновика.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrDraftVersionConflict)
}
