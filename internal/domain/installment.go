package domain

import (
	"math"
	"time"
)

// InstallmentPlan — справочный план рассрочки: срок и коэффициент наценки.
// Данные только для чтения, выбор плана его не мутирует.
type InstallmentPlan struct {
	ID string
	// Months — срок рассрочки в месяцах.
	Months int32
	// Coefficient — мультипликативная наценка на остаток для этого срока.
	Coefficient float64
}

// InstallmentTerms — параметры рассрочки, привязанные к черновику продажи.
type InstallmentTerms struct {
	// InitialPaymentMinor — первоначальный взнос в минимальных единицах.
	InitialPaymentMinor int64
	// TotalMonths — срок; при выбранном плане равен Months плана.
	TotalMonths int32
	// PlanID и Coefficient заполнены, если выбран план.
	PlanID      string
	Coefficient float64
	// DueDate — дата первого платежа, передаётся внешнему сервису как есть.
	DueDate time.Time
}

// InstallmentQuote — расчёт графика платежей для отображения. Итоговый
// ежемесячный платёж пересчитывается внешним сервисом при создании продажи;
// клиентская цифра — только предпросмотр.
type InstallmentQuote struct {
	RemainingMinor int64
	MonthlyMinor   int64
	TotalMonths    int32
}

// ApplyPlan привязывает план: срок плана становится авторитетным.
func (t *InstallmentTerms) ApplyPlan(plan InstallmentPlan) {
	t.PlanID = plan.ID
	t.Coefficient = plan.Coefficient
	t.TotalMonths = plan.Months
}

// Quote вычисляет остаток и ежемесячный платёж от суммы totalMinor.
// Первоначальный взнос, равный сумме или превышающий её, — некорректное
// состояние: возвращается ErrInvalidInitialPayment, остаток не обнуляется.
func (t *InstallmentTerms) Quote(totalMinor int64) (InstallmentQuote, error) {
	if t.InitialPaymentMinor < 0 || t.InitialPaymentMinor >= totalMinor {
		return InstallmentQuote{}, ErrInvalidInitialPayment
	}

	remaining := totalMinor - t.InitialPaymentMinor
	quote := InstallmentQuote{RemainingMinor: remaining, TotalMonths: t.TotalMonths}

	// Округление везде одно: half-up до минимальной денежной единицы.
	switch {
	case t.PlanID != "" && t.TotalMonths > 0:
		quote.MonthlyMinor = roundHalfUp(float64(remaining) * t.Coefficient / float64(t.TotalMonths))
	case t.TotalMonths > 0:
		quote.MonthlyMinor = roundHalfUp(float64(remaining) / float64(t.TotalMonths))
	default:
		quote.MonthlyMinor = 0
	}

	return quote, nil
}

func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
