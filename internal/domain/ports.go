package domain

import (
	"context"
	"time"
)

// VariantRepository — каталог вариантов товара (только чтение).
type VariantRepository interface {
	Get(ctx context.Context, id string) (Variant, error)
}

// PriceListRepository — прайс-лист с ключом (productID, currencyID, type).
type PriceListRepository interface {
	// Find возвращает ErrPriceEntryNotFound, если записи нет.
	Find(ctx context.Context, productID, currencyID string, priceType PriceType) (PriceEntry, error)
}

// KassaRepository — справочник касс организации.
type KassaRepository interface {
	Get(ctx context.Context, id string) (Kassa, error)
	// ListByCurrency возвращает кассы в указанной валюте; пустая валюта — все.
	ListByCurrency(ctx context.Context, currencyID string) ([]Kassa, error)
}

// PlanRepository — справочник планов рассрочки организации.
type PlanRepository interface {
	Get(ctx context.Context, id string) (InstallmentPlan, error)
	List(ctx context.Context) ([]InstallmentPlan, error)
}

// StockService — остатки по варианту (сумма по всем локациям). Используется
// до того, как количество попадает в ledger.
type StockService interface {
	Available(ctx context.Context, variantID string) (int64, error)
}

// SubmissionItem — позиция в payload создаваемой транзакции.
type SubmissionItem struct {
	ProductVariantID string `json:"productVariantId"`
	Quantity         int32  `json:"quantity"`
	PriceMinor       int64  `json:"price"`
	// DiscountMinor, BatchNumber и ExpiryAtMillis передаются только для закупок.
	DiscountMinor int64  `json:"discount,omitempty"`
	BatchNumber   string `json:"batchNumber,omitempty"`
	// ExpiryAtMillis — срок годности как абсолютный timestamp (unix millis).
	ExpiryAtMillis int64 `json:"expiryDate,omitempty"`
}

// SubmissionInstallment — параметры рассрочки в payload продажи.
// Ежемесячный платёж не передаётся: его пересчитывает внешний сервис.
type SubmissionInstallment struct {
	TotalAmountMinor    int64     `json:"totalAmount"`
	InitialPaymentMinor int64     `json:"initialPayment"`
	TotalMonths         int32     `json:"totalMonths"`
	DueDate             time.Time `json:"dueDate"`
}

// SaleSubmission — payload вызова Create Sale внешнего сервиса.
type SaleSubmission struct {
	CurrencyID  string                 `json:"currencyId"`
	CustomerID  string                 `json:"customerId,omitempty"`
	KassaID     string                 `json:"kassaId,omitempty"`
	Status      string                 `json:"status"`
	Items       []SubmissionItem       `json:"items"`
	Notes       string                 `json:"notes,omitempty"`
	Installment *SubmissionInstallment `json:"installment,omitempty"`
}

// PurchaseSubmission — payload вызова Create Purchase внешнего сервиса.
type PurchaseSubmission struct {
	SupplierID          string           `json:"supplierId"`
	CurrencyID          string           `json:"currencyId"`
	KassaID             string           `json:"kassaId,omitempty"`
	Status              string           `json:"status"`
	Notes               string           `json:"notes,omitempty"`
	InitialPaymentMinor int64            `json:"initialPayment,omitempty"`
	Items               []SubmissionItem `json:"items"`
}

// SubmissionReceipt — подтверждение создания транзакции внешним сервисом.
type SubmissionReceipt struct {
	TransactionID string `json:"id"`
	Status        string `json:"status"`
}

// SubmissionGateway — внешний сервис персистентности. Assembler вызывает его
// ровно один раз на попытку отправки; любой не-2xx ответ трактуется как отказ.
type SubmissionGateway interface {
	CreateSale(ctx context.Context, req SaleSubmission) (SubmissionReceipt, error)
	CreatePurchase(ctx context.Context, req PurchaseSubmission) (SubmissionReceipt, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит аудит действий над черновиком.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(draftID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
