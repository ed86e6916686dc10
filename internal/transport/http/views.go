package http

import (
	"time"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

// Представления ответов draft API. Все суммы — в минимальных денежных
// единицах, имена полей повторяют контракт внешнего сервиса персистентности.

type lineView struct {
	ID          string     `json:"id"`
	VariantID   string     `json:"variantId"`
	Title       string     `json:"title"`
	SKU         string     `json:"sku"`
	Price       int64      `json:"price"`
	Discount    int64      `json:"discount,omitempty"`
	Quantity    int32      `json:"quantity"`
	Provenance  string     `json:"provenance"`
	BatchNumber string     `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
	Total       int64      `json:"total"`
}

type installmentView struct {
	InitialPayment int64     `json:"initialPayment"`
	TotalMonths    int32     `json:"totalMonths"`
	PlanID         string    `json:"planId,omitempty"`
	DueDate        time.Time `json:"dueDate"`
	// RemainingAmount и MonthlyPayment — предпросмотр; авторитетный график
	// считает внешний сервис при создании продажи.
	RemainingAmount int64 `json:"remainingAmount,omitempty"`
	MonthlyPayment  int64 `json:"monthlyPayment,omitempty"`
	// Invalid выставлен, когда взнос не меньше суммы корзины.
	Invalid bool `json:"invalid,omitempty"`
}

type draftView struct {
	ID             string           `json:"id"`
	Kind           string           `json:"kind"`
	Status         string           `json:"status"`
	CurrencyID     string           `json:"currencyId,omitempty"`
	KassaID        string           `json:"kassaId,omitempty"`
	CounterpartyID string           `json:"counterpartyId,omitempty"`
	PaymentMode    string           `json:"paymentMode"`
	Notes          string           `json:"notes,omitempty"`
	InitialPayment int64            `json:"initialPayment,omitempty"`
	Lines          []lineView       `json:"lines"`
	Installment    *installmentView `json:"installment,omitempty"`
	GrandTotal     int64            `json:"grandTotal"`
	Version        int64            `json:"version"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

type timelineEventView struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type kassaView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CurrencyID string `json:"currencyId"`
}

type planView struct {
	ID          string  `json:"id"`
	Months      int32   `json:"months"`
	Coefficient float64 `json:"coefficient"`
}

func newDraftView(d domain.Draft) draftView {
	view := draftView{
		ID:             d.ID,
		Kind:           string(d.Kind),
		Status:         string(d.Status),
		CurrencyID:     d.CurrencyID,
		KassaID:        d.KassaID,
		CounterpartyID: d.CounterpartyID,
		PaymentMode:    string(d.PaymentMode),
		Notes:          d.Notes,
		InitialPayment: d.InitialPaymentMinor,
		Lines:          make([]lineView, 0, len(d.Lines)),
		GrandTotal:     d.GrandTotalMinor(),
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}

	for i := range d.Lines {
		line := &d.Lines[i]
		view.Lines = append(view.Lines, lineView{
			ID:          line.ID,
			VariantID:   line.VariantID,
			Title:       line.Title,
			SKU:         line.SKU,
			Price:       line.UnitPriceMinor,
			Discount:    line.UnitDiscountMinor,
			Quantity:    line.Qty,
			Provenance:  string(line.Provenance),
			BatchNumber: line.BatchNumber,
			ExpiryDate:  line.ExpiryAt,
			Total:       line.TotalMinor(),
		})
	}

	if d.Installment != nil {
		iv := &installmentView{
			InitialPayment: d.Installment.InitialPaymentMinor,
			TotalMonths:    d.Installment.TotalMonths,
			PlanID:         d.Installment.PlanID,
			DueDate:        d.Installment.DueDate,
		}
		if quote, err := d.Installment.Quote(d.GrandTotalMinor()); err != nil {
			iv.Invalid = true
		} else {
			iv.RemainingAmount = quote.RemainingMinor
			iv.MonthlyPayment = quote.MonthlyMinor
		}
		view.Installment = iv
	}

	return view
}

func newTimelineViews(events []domain.TimelineEvent) []timelineEventView {
	views := make([]timelineEventView, 0, len(events))
	for _, event := range events {
		views = append(views, timelineEventView{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return views
}

func newKassaViews(kassy []domain.Kassa) []kassaView {
	views := make([]kassaView, 0, len(kassy))
	for _, k := range kassy {
		views = append(views, kassaView{ID: k.ID, Title: k.Title, CurrencyID: k.CurrencyID})
	}
	return views
}

func newPlanViews(plans []domain.InstallmentPlan) []planView {
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, planView{ID: p.ID, Months: p.Months, Coefficient: p.Coefficient})
	}
	return views
}
