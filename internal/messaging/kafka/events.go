package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События черновика
	EventTypeDraftOpened    EventType = "draft.opened"
	EventTypeDraftDiscarded EventType = "draft.discarded"

	// События отправки
	EventTypeDraftSubmitted    EventType = "draft.submitted"
	EventTypeSubmissionFailed  EventType = "submission.failed"
	EventTypeSubmissionStarted EventType = "submission.started"
)

// Topics для Kafka
const (
	TopicTransactionEvents = "checkout.transaction.events"
	TopicDeadLetterQueue   = "checkout.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// TransactionEvent представляет событие жизненного цикла черновика
type TransactionEvent struct {
	EventType     EventType              `json:"event_type"`
	DraftID       string                 `json:"draft_id"`
	DraftKind     string                 `json:"draft_kind"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Status        string                 `json:"status,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewTransactionEvent создает новое событие черновика
func NewTransactionEvent(eventType EventType, draftID, draftKind string, metadata map[string]interface{}) *TransactionEvent {
	return &TransactionEvent{
		EventType: eventType,
		DraftID:   draftID,
		DraftKind: draftKind,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
