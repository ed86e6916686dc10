package assembler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rustamdavlatov/checkout/internal/domain"
	"github.com/rustamdavlatov/checkout/internal/messaging/kafka"
	"github.com/rustamdavlatov/checkout/internal/metrics"
)

// Статусы транзакции, которые внешний сервис ожидает в payload.
const (
	statusCompleted   = "completed"
	statusInstallment = "installment"
)

// Assembler собирает payload транзакции из черновика, валидирует его и
// выполняет ровно один вызов внешнего сервиса на попытку отправки. Успех
// сбрасывает черновик, отказ возвращает его в composing без потери позиций.
type Assembler struct {
	drafts        domain.DraftRepository
	gateway       domain.SubmissionGateway
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	logger        *log.Entry
	metrics       *metrics.CheckoutMetrics
	kafkaProducer *kafka.Producer // опциональный Kafka producer для event-driven архитектуры
}

// NewAssembler создаёт рабочий экземпляр сборщика.
func NewAssembler(
	drafts domain.DraftRepository,
	gateway domain.SubmissionGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Assembler {
	if logger == nil {
		logger = log.New().WithField("component", "assembler")
	}
	return &Assembler{
		drafts:   drafts,
		gateway:  gateway,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
	}
}

// NewAssemblerWithKafka создаёт сборщик с Kafka producer для прямой публикации событий.
func NewAssemblerWithKafka(
	drafts domain.DraftRepository,
	gateway domain.SubmissionGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *Assembler {
	assembler := NewAssembler(drafts, gateway, outbox, timeline, logger)
	assembler.kafkaProducer = kafkaProducer
	return assembler
}

// NewAssemblerWithoutMetrics создаёт сборщик без метрик (для тестов).
func NewAssemblerWithoutMetrics(
	drafts domain.DraftRepository,
	gateway domain.SubmissionGateway,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Assembler {
	if logger == nil {
		logger = log.New().WithField("component", "assembler")
	}
	return &Assembler{
		drafts:   drafts,
		gateway:  gateway,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
		metrics:  nil, // Отключаем метрики для тестов
	}
}

// Submit проводит полный цикл отправки черновика. Пока отправка выполняется,
// черновик находится в статусе submitting и повторный Submit того же
// черновика возвращает ErrSubmissionInFlight.
func (a *Assembler) Submit(ctx context.Context, draftID string) (domain.SubmissionReceipt, error) {
	start := time.Now()
	if a.metrics != nil {
		a.metrics.RecordSubmissionStarted()
	}
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordSubmissionDuration(time.Since(start))
		}
	}()

	draft, err := a.drafts.Get(draftID)
	if err != nil {
		return domain.SubmissionReceipt{}, err
	}
	if draft.Status == domain.DraftStatusSubmitting {
		return domain.SubmissionReceipt{}, domain.ErrSubmissionInFlight
	}

	if errs := draft.ValidateForSubmission(); len(errs) > 0 {
		if a.metrics != nil {
			a.metrics.RecordSubmissionRejected()
		}
		a.logger.WithFields(log.Fields{
			"draft_id":   draft.ID,
			"draft_kind": draft.Kind,
			"violations": len(errs),
		}).Warn("draft failed submission validation")
		return domain.SubmissionReceipt{}, errors.Join(errs...)
	}

	if err := a.markSubmitting(&draft); err != nil {
		return domain.SubmissionReceipt{}, err
	}
	a.appendTimeline(draft.ID, domain.TimelineSubmissionStarted, "")

	receipt, submitErr := a.callGateway(ctx, &draft)
	if submitErr != nil {
		a.restoreComposing(&draft)
		a.appendTimeline(draft.ID, domain.TimelineSubmissionFailed, submitErr.Error())
		a.emitEvent(&draft, string(kafka.EventTypeSubmissionFailed), map[string]interface{}{
			"reason": submitErr.Error(),
		})
		if a.metrics != nil {
			a.metrics.RecordSubmissionFailed()
		}
		a.logger.WithError(submitErr).WithFields(log.Fields{
			"draft_id":   draft.ID,
			"draft_kind": draft.Kind,
		}).Warn("submission rejected by persistence service")
		return domain.SubmissionReceipt{}, submitErr
	}

	draft.Reset()
	if err := a.drafts.Save(draft); err != nil {
		// Транзакция уже создана; несохранённый сброс корзины хуже для
		// пользователя, чем потерянная метка, поэтому только логируем.
		a.logger.WithError(err).WithField("draft_id", draft.ID).Error("failed to reset draft after submission")
	} else {
		draft.Version++
	}

	a.appendTimeline(draft.ID, domain.TimelineSubmitted, "")
	a.emitEvent(&draft, string(kafka.EventTypeDraftSubmitted), map[string]interface{}{
		"transaction_id": receipt.TransactionID,
		"status":         receipt.Status,
	})
	if a.metrics != nil {
		a.metrics.RecordSubmissionSucceeded()
	}
	a.logger.WithFields(log.Fields{
		"draft_id":       draft.ID,
		"draft_kind":     draft.Kind,
		"transaction_id": receipt.TransactionID,
	}).Info("draft submitted")

	return receipt, nil
}

func (a *Assembler) callGateway(ctx context.Context, draft *domain.Draft) (domain.SubmissionReceipt, error) {
	switch draft.Kind {
	case domain.DraftKindSale:
		return a.gateway.CreateSale(ctx, buildSaleSubmission(draft))
	case domain.DraftKindPurchase:
		return a.gateway.CreatePurchase(ctx, buildPurchaseSubmission(draft))
	default:
		return domain.SubmissionReceipt{}, fmt.Errorf("%w: unknown draft kind %q", domain.ErrSubmissionFailed, draft.Kind)
	}
}

// markSubmitting переводит черновик в submitting через optimistic locking:
// проигравший гонку конкурентный Submit получает ErrSubmissionInFlight.
func (a *Assembler) markSubmitting(draft *domain.Draft) error {
	draft.Status = domain.DraftStatusSubmitting
	if err := a.drafts.Save(*draft); err != nil {
		draft.Status = domain.DraftStatusComposing
		if domain.IsVersionConflict(err) {
			return domain.ErrSubmissionInFlight
		}
		return err
	}
	draft.Version++
	return nil
}

func (a *Assembler) restoreComposing(draft *domain.Draft) {
	draft.Status = domain.DraftStatusComposing
	if err := a.drafts.Save(*draft); err != nil {
		a.logger.WithError(err).WithField("draft_id", draft.ID).Error("failed to restore draft after rejection")
		return
	}
	draft.Version++
}

// buildSaleSubmission собирает payload продажи. Ежемесячный платёж не
// передаётся: внешний сервис пересчитывает его сам.
func buildSaleSubmission(draft *domain.Draft) domain.SaleSubmission {
	submission := domain.SaleSubmission{
		CurrencyID: draft.CurrencyID,
		CustomerID: draft.CounterpartyID,
		KassaID:    draft.KassaID,
		Status:     statusCompleted,
		Notes:      draft.Notes,
		Items:      buildItems(draft),
	}

	if draft.PaymentMode == domain.PaymentModeInstallment && draft.Installment != nil {
		submission.Status = statusInstallment
		submission.Installment = &domain.SubmissionInstallment{
			TotalAmountMinor:    draft.GrandTotalMinor(),
			InitialPaymentMinor: draft.Installment.InitialPaymentMinor,
			TotalMonths:         draft.Installment.TotalMonths,
			DueDate:             draft.Installment.DueDate,
		}
	}

	return submission
}

// buildPurchaseSubmission собирает payload закупки. Режим оплаты закупки
// передаётся как статус транзакции без преобразования.
func buildPurchaseSubmission(draft *domain.Draft) domain.PurchaseSubmission {
	submission := domain.PurchaseSubmission{
		SupplierID: draft.CounterpartyID,
		CurrencyID: draft.CurrencyID,
		KassaID:    draft.KassaID,
		Status:     string(draft.PaymentMode),
		Notes:      draft.Notes,
		Items:      buildItems(draft),
	}
	if draft.PaymentMode == domain.PaymentModePartial {
		submission.InitialPaymentMinor = draft.InitialPaymentMinor
	}
	return submission
}

func buildItems(draft *domain.Draft) []domain.SubmissionItem {
	items := make([]domain.SubmissionItem, 0, len(draft.Lines))
	for i := range draft.Lines {
		line := &draft.Lines[i]
		item := domain.SubmissionItem{
			ProductVariantID: line.VariantID,
			Quantity:         line.Qty,
			PriceMinor:       line.UnitPriceMinor,
		}
		if draft.Kind == domain.DraftKindPurchase {
			item.DiscountMinor = line.UnitDiscountMinor
			item.BatchNumber = line.BatchNumber
			if line.ExpiryAt != nil {
				item.ExpiryAtMillis = line.ExpiryAt.UnixMilli()
			}
		}
		items = append(items, item)
	}
	return items
}

func (a *Assembler) appendTimeline(draftID, eventType, reason string) {
	if a.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		DraftID:  draftID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := a.timeline.Append(event); err != nil {
		a.logger.WithError(err).WithFields(log.Fields{
			"draft_id": draftID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	} else if a.metrics != nil {
		a.metrics.RecordTimelineEvent()
	}
}

func (a *Assembler) emitEvent(draft *domain.Draft, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["draft_id"] = draft.ID
	payload["draft_kind"] = string(draft.Kind)
	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.WithError(err).WithFields(log.Fields{
			"draft_id": draft.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	if a.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "draft",
			AggregateID:   draft.ID,
			EventType:     eventType,
			Payload:       data,
		}
		if _, err := a.outbox.Enqueue(msg); err != nil {
			a.logger.WithError(err).WithFields(log.Fields{
				"draft_id": draft.ID,
				"event":    eventType,
			}).Error("enqueue event failed")
		} else if a.metrics != nil {
			a.metrics.RecordOutboxEvent()
		}
	}

	a.publishKafkaEvent(kafka.EventType(eventType), draft, payload)
}

// publishKafkaEvent публикует событие черновика в Kafka (если producer настроен)
func (a *Assembler) publishKafkaEvent(eventType kafka.EventType, draft *domain.Draft, metadata map[string]interface{}) {
	if a.kafkaProducer == nil {
		return // Kafka не настроен, пропускаем
	}

	event := kafka.NewTransactionEvent(eventType, draft.ID, string(draft.Kind), metadata)
	if err := a.kafkaProducer.PublishEvent(kafka.TopicTransactionEvents, draft.ID, event); err != nil {
		// Логируем ошибку, но не прерываем отправку - Kafka опциональный
		a.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"draft_id":   draft.ID,
		}).Warn("failed to publish draft event to kafka")
	}
}
