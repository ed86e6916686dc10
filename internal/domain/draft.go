package domain

import (
	"time"

	"github.com/google/uuid"
)

// DraftKind различает черновики продаж и закупок.
type DraftKind string

const (
	// DraftKindSale — продажа клиенту.
	DraftKindSale DraftKind = "sale"
	// DraftKindPurchase — закупка у поставщика.
	DraftKindPurchase DraftKind = "purchase"
)

// DraftStatus описывает состояние черновика при отправке.
type DraftStatus string

const (
	// DraftStatusComposing — черновик собирается, позиции можно менять.
	DraftStatusComposing DraftStatus = "composing"
	// DraftStatusSubmitting — отправка во внешний сервис выполняется,
	// повторная отправка того же черновика запрещена.
	DraftStatusSubmitting DraftStatus = "submitting"
)

// PaymentMode задаёт режим оплаты. Допустимые значения зависят от вида черновика.
type PaymentMode string

const (
	// PaymentModeFull — продажа с полной оплатой.
	PaymentModeFull PaymentMode = "full"
	// PaymentModeInstallment — продажа в рассрочку.
	PaymentModeInstallment PaymentMode = "installment"
	// PaymentModeDraft — закупка без оплаты (черновой документ).
	PaymentModeDraft PaymentMode = "draft"
	// PaymentModePartial — закупка с частичной оплатой через кассу.
	PaymentModePartial PaymentMode = "partial"
	// PaymentModePaid — закупка, оплаченная полностью через кассу.
	PaymentModePaid PaymentMode = "paid"
)

// ValidFor проверяет, допустим ли режим оплаты для вида черновика.
func (m PaymentMode) ValidFor(kind DraftKind) bool {
	switch kind {
	case DraftKindSale:
		return m == PaymentModeFull || m == PaymentModeInstallment
	case DraftKindPurchase:
		return m == PaymentModeDraft || m == PaymentModePartial || m == PaymentModePaid
	default:
		return false
	}
}

// RequiresKassa сообщает, требует ли режим немедленного расчёта через кассу.
func (m PaymentMode) RequiresKassa() bool {
	return m == PaymentModePaid || m == PaymentModePartial
}

// DefaultPaymentMode возвращает режим оплаты по умолчанию для вида черновика.
func DefaultPaymentMode(kind DraftKind) PaymentMode {
	if kind == DraftKindPurchase {
		return PaymentModeDraft
	}
	return PaymentModeFull
}

// CartLine представляет одну позицию черновика транзакции.
type CartLine struct {
	// ID позиции нужен для аудита; ключом слияния служит VariantID.
	ID string
	// VariantID — идентификатор варианта товара, уникален в пределах черновика.
	VariantID string
	// Title и SKU фиксируются в момент добавления и далее не меняются.
	Title string
	SKU   string
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах.
	UnitPriceMinor int64
	// UnitDiscountMinor — скидка за единицу (только для закупок).
	UnitDiscountMinor int64
	// Qty — количество единиц, не меньше 1.
	Qty int32
	// Provenance — источник цены позиции.
	Provenance PriceProvenance
	// BatchNumber и ExpiryAt — приходные реквизиты закупки, корзина их не трактует.
	BatchNumber string
	ExpiryAt    *time.Time
	// CreatedAt фиксирует момент добавления позиции.
	CreatedAt time.Time
}

// TotalMinor возвращает сумму позиции. Значение всегда вычисляется из
// текущих цены, скидки и количества и нигде не кэшируется.
func (l *CartLine) TotalMinor() int64 {
	return (l.UnitPriceMinor - l.UnitDiscountMinor) * int64(l.Qty)
}

// Draft агрегирует состояние собираемой транзакции: контекст валюты/кассы,
// позиции и параметры оплаты. Один checkout-сеанс владеет одним черновиком.
type Draft struct {
	ID     string
	Kind   DraftKind
	Status DraftStatus
	// CurrencyID — валюта транзакции; обязательна до отправки.
	CurrencyID string
	// KassaID — касса расчёта; валюта кассы должна совпадать с CurrencyID.
	KassaID string
	// CounterpartyID — клиент для продажи, поставщик для закупки.
	CounterpartyID string
	PaymentMode    PaymentMode
	Lines          []CartLine
	Notes          string
	// Installment присутствует только при PaymentModeInstallment.
	Installment *InstallmentTerms
	// InitialPaymentMinor — сумма, внесённая через кассу при частичной
	// оплате закупки. Для продаж не используется.
	InitialPaymentMinor int64
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDraft создаёт пустой черновик указанного вида.
func NewDraft(kind DraftKind) Draft {
	now := time.Now().UTC()
	return Draft{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      DraftStatusComposing,
		PaymentMode: DefaultPaymentMode(kind),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddLine добавляет позицию. Повторное добавление того же варианта увеличивает
// количество существующей позиции на 1, не меняя её сохранённую цену.
// Возвращает true, если произошло слияние с существующей позицией.
func (d *Draft) AddLine(variant Variant, unitPriceMinor int64, provenance PriceProvenance) bool {
	if existing := d.findLine(variant.ID); existing != nil {
		existing.Qty++
		return true
	}

	d.Lines = append(d.Lines, CartLine{
		ID:             uuid.NewString(),
		VariantID:      variant.ID,
		Title:          variant.Title,
		SKU:            variant.SKU,
		UnitPriceMinor: unitPriceMinor,
		Qty:            1,
		Provenance:     provenance,
		CreatedAt:      time.Now().UTC(),
	})
	return false
}

// SetQuantity записывает новое количество позиции. Проверка остатков — зона
// ответственности вызывающей стороны, ledger хранит то, что ему передали.
func (d *Draft) SetQuantity(variantID string, qty int32) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	line := d.findLine(variantID)
	if line == nil {
		return ErrLineNotFound
	}
	line.Qty = qty
	return nil
}

// SetUnitPrice задаёт цену позиции вручную. Источник цены становится manual
// и больше не перезаписывается автоматическим разрешением.
func (d *Draft) SetUnitPrice(variantID string, unitPriceMinor int64) error {
	if unitPriceMinor < 0 {
		return ErrInvalidUnitPrice
	}
	line := d.findLine(variantID)
	if line == nil {
		return ErrLineNotFound
	}
	line.UnitPriceMinor = unitPriceMinor
	line.Provenance = ProvenanceManual
	return nil
}

// SetUnitDiscount задаёт скидку за единицу. Допустимо только для закупок.
func (d *Draft) SetUnitDiscount(variantID string, discountMinor int64) error {
	if d.Kind != DraftKindPurchase {
		return ErrDiscountNotAllowed
	}
	line := d.findLine(variantID)
	if line == nil {
		return ErrLineNotFound
	}
	if discountMinor < 0 || discountMinor > line.UnitPriceMinor {
		return ErrInvalidDiscount
	}
	line.UnitDiscountMinor = discountMinor
	return nil
}

// SetBatch записывает приходные реквизиты позиции закупки.
func (d *Draft) SetBatch(variantID, batchNumber string, expiryAt *time.Time) error {
	if d.Kind != DraftKindPurchase {
		return ErrBatchNotAllowed
	}
	line := d.findLine(variantID)
	if line == nil {
		return ErrLineNotFound
	}
	line.BatchNumber = batchNumber
	line.ExpiryAt = expiryAt
	return nil
}

// SetInitialPayment задаёт сумму, внесённую при частичной оплате закупки.
func (d *Draft) SetInitialPayment(amountMinor int64) error {
	if d.Kind != DraftKindPurchase {
		return ErrInvalidPaymentMode
	}
	if amountMinor < 0 {
		return ErrInvalidInitialPayment
	}
	d.InitialPaymentMinor = amountMinor
	return nil
}

// RemoveLine удаляет позицию. Последующее добавление того же варианта
// начинается заново с количества 1.
func (d *Draft) RemoveLine(variantID string) error {
	for i := range d.Lines {
		if d.Lines[i].VariantID == variantID {
			d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// SetCurrency меняет валюту транзакции. Цены позиций между валютами не
// переразрешаются, поэтому смена валюты при непустой корзине очищает все
// позиции и требует явного подтверждения вызывающей стороны. Касса прежней
// валюты при этом сбрасывается.
func (d *Draft) SetCurrency(currencyID string, confirmed bool) error {
	if d.CurrencyID == currencyID {
		return nil
	}
	if len(d.Lines) > 0 && !confirmed {
		return ErrCurrencyChangeConfirmation
	}
	d.CurrencyID = currencyID
	d.Lines = nil
	d.KassaID = ""
	return nil
}

// Reset очищает позиции, заметки и параметры рассрочки после успешной
// отправки или явной отмены. Валюта и касса — пользовательское предпочтение
// сеанса и сохраняются.
func (d *Draft) Reset() {
	d.Lines = nil
	d.Notes = ""
	d.Installment = nil
	d.InitialPaymentMinor = 0
	d.PaymentMode = DefaultPaymentMode(d.Kind)
	d.Status = DraftStatusComposing
}

// GrandTotalMinor суммирует позиции. Итог всегда пересчитывается из текущего
// состояния строк; черновик никогда не хранит готовую сумму.
func (d *Draft) GrandTotalMinor() int64 {
	var total int64
	for i := range d.Lines {
		total += d.Lines[i].TotalMinor()
	}
	return total
}

// ValidateForSubmission проверяет полный набор правил перед сборкой
// транзакции и возвращает список нарушений.
func (d *Draft) ValidateForSubmission() []error {
	var errs []error

	if d.CurrencyID == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(d.Lines) == 0 {
		errs = append(errs, ErrEmptyCart)
	}
	if !d.PaymentMode.ValidFor(d.Kind) {
		errs = append(errs, ErrInvalidPaymentMode)
	}

	switch d.Kind {
	case DraftKindSale:
		if d.PaymentMode == PaymentModeInstallment {
			if d.CounterpartyID == "" {
				errs = append(errs, ErrCounterpartyRequired)
			}
			if d.Installment == nil {
				errs = append(errs, ErrInvalidInitialPayment)
			} else if _, err := d.Installment.Quote(d.GrandTotalMinor()); err != nil {
				errs = append(errs, err)
			}
		}
	case DraftKindPurchase:
		if d.CounterpartyID == "" {
			errs = append(errs, ErrSupplierRequired)
		}
		if d.PaymentMode.RequiresKassa() && d.KassaID == "" {
			errs = append(errs, ErrKassaRequired)
		}
		if d.PaymentMode == PaymentModePartial {
			if d.InitialPaymentMinor <= 0 || d.InitialPaymentMinor >= d.GrandTotalMinor() {
				errs = append(errs, ErrInvalidInitialPayment)
			}
		}
	}

	for i := range d.Lines {
		line := &d.Lines[i]
		if line.Qty < 1 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrInvalidUnitPrice)
		}
		if line.UnitDiscountMinor > line.UnitPriceMinor {
			errs = append(errs, ErrInvalidDiscount)
		}
	}

	return errs
}

func (d *Draft) findLine(variantID string) *CartLine {
	for i := range d.Lines {
		if d.Lines[i].VariantID == variantID {
			return &d.Lines[i]
		}
	}
	return nil
}
