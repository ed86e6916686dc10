package checkout

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rustamdavlatov/checkout/internal/domain"
	"github.com/rustamdavlatov/checkout/internal/metrics"
	"github.com/rustamdavlatov/checkout/internal/service/assembler"
	"github.com/rustamdavlatov/checkout/internal/service/pricing"
)

// Deps перечисляет зависимости checkout-сервиса.
type Deps struct {
	Drafts    domain.DraftRepository
	Variants  domain.VariantRepository
	Kassy     domain.KassaRepository
	Plans     domain.PlanRepository
	Stock     domain.StockService
	Resolver  *pricing.Resolver
	Assembler *assembler.Assembler
	Timeline  domain.TimelineRepository
	Logger    *log.Entry
	Metrics   *metrics.CheckoutMetrics
}

// Service — единственная точка мутаций черновика. Каждая мутация проходит
// цикл load → mutate → save и оставляет событие в timeline, поэтому любое
// изменение состояния корзины наблюдаемо и упорядочено optimistic locking.
type Service struct {
	drafts    domain.DraftRepository
	variants  domain.VariantRepository
	kassy     domain.KassaRepository
	plans     domain.PlanRepository
	stock     domain.StockService
	resolver  *pricing.Resolver
	assembler *assembler.Assembler
	timeline  domain.TimelineRepository
	logger    *log.Entry
	metrics   *metrics.CheckoutMetrics
}

// NewService создаёт checkout-сервис.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	return &Service{
		drafts:    deps.Drafts,
		variants:  deps.Variants,
		kassy:     deps.Kassy,
		plans:     deps.Plans,
		stock:     deps.Stock,
		resolver:  deps.Resolver,
		assembler: deps.Assembler,
		timeline:  deps.Timeline,
		logger:    logger,
		metrics:   deps.Metrics,
	}
}

// CreateDraft открывает новый черновик указанного вида.
func (s *Service) CreateDraft(ctx context.Context, kind domain.DraftKind) (domain.Draft, error) {
	if kind != domain.DraftKindSale && kind != domain.DraftKindPurchase {
		return domain.Draft{}, domain.ErrInvalidPaymentMode
	}

	draft := domain.NewDraft(kind)
	if err := s.drafts.Create(draft); err != nil {
		return domain.Draft{}, err
	}
	s.appendTimeline(draft.ID, domain.TimelineDraftCreated, string(kind))
	if s.metrics != nil {
		s.metrics.RecordDraftOpened()
	}
	s.logger.WithFields(log.Fields{
		"draft_id":   draft.ID,
		"draft_kind": kind,
	}).Info("draft created")
	return draft, nil
}

// GetDraft возвращает текущее состояние черновика.
func (s *Service) GetDraft(ctx context.Context, draftID string) (domain.Draft, error) {
	return s.drafts.Get(draftID)
}

// AddItem разрешает цену варианта и добавляет его в корзину. Повторное
// добавление того же варианта увеличивает количество на 1 без переразрешения
// цены. Для продаж итоговое количество проверяется по остаткам.
func (s *Service) AddItem(ctx context.Context, draftID, variantID string, priceType domain.PriceType) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	if draft.CurrencyID == "" {
		return domain.Draft{}, domain.ErrCurrencyRequired
	}

	variant, err := s.variants.Get(ctx, variantID)
	if err != nil {
		return domain.Draft{}, err
	}

	if draft.Kind == domain.DraftKindSale {
		if err := s.checkStock(ctx, &draft, variantID, currentQty(&draft, variantID)+1); err != nil {
			return domain.Draft{}, err
		}
	}

	quote, err := s.resolver.Resolve(ctx, variant, draft.CurrencyID, priceType)
	if err != nil {
		return domain.Draft{}, err
	}

	merged := draft.AddLine(variant, quote.AmountMinor, quote.Provenance)
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}

	if merged {
		s.appendTimeline(draft.ID, domain.TimelineLineUpdated, variantID)
	} else {
		s.appendTimeline(draft.ID, domain.TimelineLineAdded, variantID)
	}
	return draft, nil
}

// UpdateQuantity записывает новое количество позиции. Для продаж количество
// проверяется по остаткам до записи в корзину.
func (s *Service) UpdateQuantity(ctx context.Context, draftID, variantID string, qty int32) (domain.Draft, error) {
	return s.mutateLine(ctx, draftID, variantID, func(ctx context.Context, draft *domain.Draft) error {
		if draft.Kind == domain.DraftKindSale {
			if err := s.checkStock(ctx, draft, variantID, int64(qty)); err != nil {
				return err
			}
		}
		return draft.SetQuantity(variantID, qty)
	})
}

// SetUnitPrice задаёт цену позиции вручную.
func (s *Service) SetUnitPrice(ctx context.Context, draftID, variantID string, priceMinor int64) (domain.Draft, error) {
	return s.mutateLine(ctx, draftID, variantID, func(_ context.Context, draft *domain.Draft) error {
		return draft.SetUnitPrice(variantID, priceMinor)
	})
}

// SetUnitDiscount задаёт скидку за единицу позиции закупки.
func (s *Service) SetUnitDiscount(ctx context.Context, draftID, variantID string, discountMinor int64) (domain.Draft, error) {
	return s.mutateLine(ctx, draftID, variantID, func(_ context.Context, draft *domain.Draft) error {
		return draft.SetUnitDiscount(variantID, discountMinor)
	})
}

// SetBatch записывает приходные реквизиты позиции закупки.
func (s *Service) SetBatch(ctx context.Context, draftID, variantID, batchNumber string, expiryAt *time.Time) (domain.Draft, error) {
	return s.mutateLine(ctx, draftID, variantID, func(_ context.Context, draft *domain.Draft) error {
		return draft.SetBatch(variantID, batchNumber, expiryAt)
	})
}

// RemoveItem удаляет позицию из корзины.
func (s *Service) RemoveItem(ctx context.Context, draftID, variantID string) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	if err := draft.RemoveLine(variantID); err != nil {
		return domain.Draft{}, err
	}
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}
	s.appendTimeline(draft.ID, domain.TimelineLineRemoved, variantID)
	return draft, nil
}

// SetCurrency меняет валюту черновика. При непустой корзине требуется
// подтверждение: позиции будут очищены, касса прежней валюты сброшена.
func (s *Service) SetCurrency(ctx context.Context, draftID, currencyID string, confirmed bool) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	previous := draft.CurrencyID
	if err := draft.SetCurrency(currencyID, confirmed); err != nil {
		return domain.Draft{}, err
	}
	if previous == draft.CurrencyID {
		return draft, nil
	}
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}
	s.appendTimeline(draft.ID, domain.TimelineCurrencyChanged, currencyID)
	return draft, nil
}

// SetKassa выбирает кассу расчёта. Валюта кассы обязана совпадать с валютой
// черновика; кросс-валютные расчёты не поддерживаются.
func (s *Service) SetKassa(ctx context.Context, draftID, kassaID string) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	if draft.CurrencyID == "" {
		return domain.Draft{}, domain.ErrCurrencyRequired
	}

	kassa, err := s.kassy.Get(ctx, kassaID)
	if err != nil {
		return domain.Draft{}, err
	}
	if kassa.CurrencyID != draft.CurrencyID {
		return domain.Draft{}, domain.ErrKassaCurrencyMismatch
	}

	draft.KassaID = kassa.ID
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}
	s.appendTimeline(draft.ID, domain.TimelineKassaSelected, kassaID)
	return draft, nil
}

// SetCounterparty выбирает клиента (продажа) или поставщика (закупка).
func (s *Service) SetCounterparty(ctx context.Context, draftID, counterpartyID string) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	draft.CounterpartyID = counterpartyID
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}
	s.appendTimeline(draft.ID, domain.TimelinePartySelected, counterpartyID)
	return draft, nil
}

// SetNotes записывает произвольную заметку транзакции.
func (s *Service) SetNotes(ctx context.Context, draftID, notes string) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	draft.Notes = notes
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}
	return draft, nil
}

// SetPaymentMode меняет режим оплаты. Выход из режима рассрочки очищает её
// параметры.
func (s *Service) SetPaymentMode(ctx context.Context, draftID string, mode domain.PaymentMode) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	if !mode.ValidFor(draft.Kind) {
		return domain.Draft{}, domain.ErrInvalidPaymentMode
	}

	draft.PaymentMode = mode
	if mode != domain.PaymentModeInstallment {
		draft.Installment = nil
	}
	if mode == domain.PaymentModeDraft {
		draft.InitialPaymentMinor = 0
	}
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}
	s.appendTimeline(draft.ID, domain.TimelinePaymentModeSet, string(mode))
	return draft, nil
}

// SetInitialPayment задаёт сумму частичной оплаты закупки.
func (s *Service) SetInitialPayment(ctx context.Context, draftID string, amountMinor int64) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	if err := draft.SetInitialPayment(amountMinor); err != nil {
		return domain.Draft{}, err
	}
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}
	return draft, nil
}

// InstallmentInput — параметры настройки рассрочки.
type InstallmentInput struct {
	InitialPaymentMinor int64
	TotalMonths         int32
	PlanID              string
	DueDate             time.Time
}

// SetInstallment настраивает рассрочку продажи и возвращает предпросмотр
// графика платежей. Взнос, равный сумме корзины или превышающий её,
// сохраняется, но помечается ErrInvalidInitialPayment и блокирует отправку.
func (s *Service) SetInstallment(ctx context.Context, draftID string, input InstallmentInput) (domain.Draft, domain.InstallmentQuote, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, domain.InstallmentQuote{}, err
	}
	if draft.Kind != domain.DraftKindSale || draft.PaymentMode != domain.PaymentModeInstallment {
		return domain.Draft{}, domain.InstallmentQuote{}, domain.ErrInvalidPaymentMode
	}

	terms := domain.InstallmentTerms{
		InitialPaymentMinor: input.InitialPaymentMinor,
		TotalMonths:         input.TotalMonths,
		DueDate:             input.DueDate,
	}
	if input.PlanID != "" {
		plan, err := s.plans.Get(ctx, input.PlanID)
		if err != nil {
			return domain.Draft{}, domain.InstallmentQuote{}, err
		}
		terms.ApplyPlan(plan)
	}

	draft.Installment = &terms
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, domain.InstallmentQuote{}, err
	}
	s.appendTimeline(draft.ID, domain.TimelineInstallmentSet, terms.PlanID)

	quote, quoteErr := terms.Quote(draft.GrandTotalMinor())
	return draft, quote, quoteErr
}

// Submit собирает и отправляет черновик через assembler.
func (s *Service) Submit(ctx context.Context, draftID string) (domain.SubmissionReceipt, error) {
	return s.assembler.Submit(ctx, draftID)
}

// Discard уничтожает черновик по явной отмене сеанса.
func (s *Service) Discard(ctx context.Context, draftID string) error {
	if _, err := s.drafts.Get(draftID); err != nil {
		return err
	}
	s.appendTimeline(draftID, domain.TimelineDraftDiscarded, "")
	if err := s.drafts.Delete(draftID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordDraftClosed()
	}
	s.logger.WithField("draft_id", draftID).Info("draft discarded")
	return nil
}

// Timeline возвращает события аудита черновика в хронологическом порядке.
func (s *Service) Timeline(ctx context.Context, draftID string) ([]domain.TimelineEvent, error) {
	if s.timeline == nil {
		return nil, nil
	}
	return s.timeline.List(draftID)
}

// ListKassy возвращает кассы; непустой currencyID ограничивает выбор кассами
// этой валюты.
func (s *Service) ListKassy(ctx context.Context, currencyID string) ([]domain.Kassa, error) {
	return s.kassy.ListByCurrency(ctx, currencyID)
}

// ListPlans возвращает планы рассрочки организации.
func (s *Service) ListPlans(ctx context.Context) ([]domain.InstallmentPlan, error) {
	return s.plans.List(ctx)
}

func (s *Service) mutateLine(ctx context.Context, draftID, variantID string, mutate func(context.Context, *domain.Draft) error) (domain.Draft, error) {
	draft, err := s.drafts.Get(draftID)
	if err != nil {
		return domain.Draft{}, err
	}
	if err := mutate(ctx, &draft); err != nil {
		return domain.Draft{}, err
	}
	if err := s.save(&draft); err != nil {
		return domain.Draft{}, err
	}
	s.appendTimeline(draft.ID, domain.TimelineLineUpdated, variantID)
	return draft, nil
}

// checkStock сверяет желаемое количество с остатками до записи в корзину.
func (s *Service) checkStock(ctx context.Context, draft *domain.Draft, variantID string, wantQty int64) error {
	if s.stock == nil {
		return nil
	}
	available, err := s.stock.Available(ctx, variantID)
	if err != nil {
		return err
	}
	if wantQty > available {
		s.logger.WithFields(log.Fields{
			"draft_id":   draft.ID,
			"variant_id": variantID,
			"want":       wantQty,
			"available":  available,
		}).Debug("stock check rejected quantity")
		return domain.ErrInsufficientStock
	}
	return nil
}

func (s *Service) save(draft *domain.Draft) error {
	if err := s.drafts.Save(*draft); err != nil {
		return err
	}
	draft.Version++
	return nil
}

func (s *Service) appendTimeline(draftID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		DraftID:  draftID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"draft_id": draftID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	} else if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

func currentQty(draft *domain.Draft, variantID string) int64 {
	for i := range draft.Lines {
		if draft.Lines[i].VariantID == variantID {
			return int64(draft.Lines[i].Qty)
		}
	}
	return 0
}
