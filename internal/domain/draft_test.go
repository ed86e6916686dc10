package domain_test

import (
	"errors"
	"testing"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

func saleVariant(id string) domain.Variant {
	return domain.Variant{
		ID:                id,
		ProductID:         "product-" + id,
		Title:             "Variant " + id,
		SKU:               "SKU-" + id,
		DefaultPriceMinor: 100000,
		DefaultCurrencyID: "uzs",
	}
}

// helper для черновика продажи с валютой и кассой.
func makeSaleDraft() domain.Draft {
	d := domain.NewDraft(domain.DraftKindSale)
	d.CurrencyID = "uzs"
	d.KassaID = "kassa-1"
	return d
}

func TestDraftAddLine_MergesByVariant(t *testing.T) {
	d := makeSaleDraft()

	merged := d.AddLine(saleVariant("v1"), 100000, domain.ProvenanceSpecial)
	if merged {
		t.Fatal("first add must not merge")
	}
	for i := 0; i < 4; i++ {
		if !d.AddLine(saleVariant("v1"), 999999, domain.ProvenanceManual) {
			t.Fatal("repeated add of same variant must merge")
		}
	}

	if len(d.Lines) != 1 {
		t.Fatalf("expected single merged line, got %d", len(d.Lines))
	}
	line := d.Lines[0]
	if line.Qty != 5 {
		t.Fatalf("expected qty 5 after five adds, got %d", line.Qty)
	}
	// Слияние не трогает сохранённую цену и её источник.
	if line.UnitPriceMinor != 100000 || line.Provenance != domain.ProvenanceSpecial {
		t.Fatalf("merge must not touch stored price: %+v", line)
	}
}

func TestDraftLineTotal_RecomputedAfterMutations(t *testing.T) {
	d := domain.NewDraft(domain.DraftKindPurchase)
	d.CurrencyID = "uzs"
	d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)

	if err := d.SetQuantity("v1", 7); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if got := d.Lines[0].TotalMinor(); got != 700 {
		t.Fatalf("expected total 700 after quantity edit, got %d", got)
	}

	if err := d.SetUnitPrice("v1", 150); err != nil {
		t.Fatalf("SetUnitPrice: %v", err)
	}
	if d.Lines[0].Provenance != domain.ProvenanceManual {
		t.Fatal("manual price edit must flip provenance to manual")
	}
	if err := d.SetUnitDiscount("v1", 50); err != nil {
		t.Fatalf("SetUnitDiscount: %v", err)
	}
	if got := d.Lines[0].TotalMinor(); got != 700 {
		t.Fatalf("expected (150-50)*7=700, got %d", got)
	}
	if got := d.GrandTotalMinor(); got != 700 {
		t.Fatalf("grand total must be recomputed from lines, got %d", got)
	}
}

func TestDraftRemoveThenAdd_StartsFresh(t *testing.T) {
	d := makeSaleDraft()
	d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
	d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)

	if err := d.RemoveLine("v1"); err != nil {
		t.Fatalf("RemoveLine: %v", err)
	}
	if err := d.RemoveLine("v1"); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}

	d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
	if len(d.Lines) != 1 || d.Lines[0].Qty != 1 {
		t.Fatalf("re-added line must start with qty 1, got %+v", d.Lines)
	}
}

func TestDraftSetCurrency_ClearsLines(t *testing.T) {
	d := makeSaleDraft()
	d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
	d.AddLine(saleVariant("v2"), 200, domain.ProvenanceDefault)

	// Без подтверждения смена валюты при непустой корзине отклоняется.
	if err := d.SetCurrency("usd", false); !errors.Is(err, domain.ErrCurrencyChangeConfirmation) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	if len(d.Lines) != 2 {
		t.Fatal("rejected currency change must not touch lines")
	}

	if err := d.SetCurrency("usd", true); err != nil {
		t.Fatalf("confirmed SetCurrency: %v", err)
	}
	if len(d.Lines) != 0 {
		t.Fatalf("currency change must clear all lines, %d left", len(d.Lines))
	}
	if d.KassaID != "" {
		t.Fatal("kassa of the previous currency must be dropped")
	}

	// Повторная установка той же валюты — no-op.
	d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
	if err := d.SetCurrency("usd", false); err != nil {
		t.Fatalf("same-currency set must be a no-op: %v", err)
	}
	if len(d.Lines) != 1 {
		t.Fatal("same-currency set must not clear lines")
	}
}

func TestDraftReset_PreservesCurrencyAndKassa(t *testing.T) {
	d := makeSaleDraft()
	d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
	d.Notes = "срочно"
	d.PaymentMode = domain.PaymentModeInstallment
	d.Installment = &domain.InstallmentTerms{InitialPaymentMinor: 10, TotalMonths: 6}

	d.Reset()

	if len(d.Lines) != 0 || d.Notes != "" || d.Installment != nil {
		t.Fatalf("reset must clear lines, notes and installment: %+v", d)
	}
	if d.CurrencyID != "uzs" || d.KassaID != "kassa-1" {
		t.Fatal("reset must preserve currency and kassa preference")
	}
	if d.PaymentMode != domain.PaymentModeFull {
		t.Fatalf("reset must restore default payment mode, got %s", d.PaymentMode)
	}
}

func TestDraftDiscountRules(t *testing.T) {
	sale := makeSaleDraft()
	sale.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
	if err := sale.SetUnitDiscount("v1", 10); !errors.Is(err, domain.ErrDiscountNotAllowed) {
		t.Fatalf("sale discount must be rejected, got %v", err)
	}

	purchase := domain.NewDraft(domain.DraftKindPurchase)
	purchase.CurrencyID = "uzs"
	purchase.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
	if err := purchase.SetUnitDiscount("v1", 150); !errors.Is(err, domain.ErrInvalidDiscount) {
		t.Fatalf("discount above price must be rejected, got %v", err)
	}
	if err := purchase.SetUnitDiscount("v1", 100); err != nil {
		t.Fatalf("discount equal to price is allowed: %v", err)
	}
}

func TestDraftValidateForSubmission(t *testing.T) {
	cases := []struct {
		name string
		mut  func() domain.Draft
		want error
	}{
		{
			name: "sale without currency",
			mut: func() domain.Draft {
				d := domain.NewDraft(domain.DraftKindSale)
				d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
				return d
			},
			want: domain.ErrCurrencyRequired,
		},
		{
			name: "empty cart",
			mut: func() domain.Draft {
				return makeSaleDraft()
			},
			want: domain.ErrEmptyCart,
		},
		{
			name: "installment without counterparty",
			mut: func() domain.Draft {
				d := makeSaleDraft()
				d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
				d.PaymentMode = domain.PaymentModeInstallment
				d.Installment = &domain.InstallmentTerms{TotalMonths: 6}
				return d
			},
			want: domain.ErrCounterpartyRequired,
		},
		{
			name: "installment initial covers total",
			mut: func() domain.Draft {
				d := makeSaleDraft()
				d.AddLine(saleVariant("v1"), 1200000, domain.ProvenanceDefault)
				d.PaymentMode = domain.PaymentModeInstallment
				d.CounterpartyID = "customer-1"
				d.Installment = &domain.InstallmentTerms{InitialPaymentMinor: 1200000, TotalMonths: 10}
				return d
			},
			want: domain.ErrInvalidInitialPayment,
		},
		{
			name: "purchase without supplier",
			mut: func() domain.Draft {
				d := domain.NewDraft(domain.DraftKindPurchase)
				d.CurrencyID = "uzs"
				d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
				return d
			},
			want: domain.ErrSupplierRequired,
		},
		{
			name: "paid purchase without kassa",
			mut: func() domain.Draft {
				d := domain.NewDraft(domain.DraftKindPurchase)
				d.CurrencyID = "uzs"
				d.CounterpartyID = "supplier-1"
				d.PaymentMode = domain.PaymentModePaid
				d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
				return d
			},
			want: domain.ErrKassaRequired,
		},
		{
			name: "partial purchase without initial payment",
			mut: func() domain.Draft {
				d := domain.NewDraft(domain.DraftKindPurchase)
				d.CurrencyID = "uzs"
				d.CounterpartyID = "supplier-1"
				d.KassaID = "kassa-1"
				d.PaymentMode = domain.PaymentModePartial
				d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
				return d
			},
			want: domain.ErrInvalidInitialPayment,
		},
		{
			name: "purchase discount above price",
			mut: func() domain.Draft {
				d := domain.NewDraft(domain.DraftKindPurchase)
				d.CurrencyID = "uzs"
				d.CounterpartyID = "supplier-1"
				d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
				// Обходим SetUnitDiscount, чтобы проверить именно сборку.
				d.Lines[0].UnitDiscountMinor = 150
				return d
			},
			want: domain.ErrInvalidDiscount,
		},
		{
			name: "invalid mode for kind",
			mut: func() domain.Draft {
				d := makeSaleDraft()
				d.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
				d.PaymentMode = domain.PaymentModePaid
				return d
			},
			want: domain.ErrInvalidPaymentMode,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := tc.mut()
			errs := d.ValidateForSubmission()
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					return
				}
			}
			t.Fatalf("expected %v among validation errors, got %v", tc.want, errs)
		})
	}
}

func TestDraftValidateForSubmission_Ok(t *testing.T) {
	sale := makeSaleDraft()
	sale.AddLine(saleVariant("v1"), 100000, domain.ProvenanceSpecial)
	if errs := sale.ValidateForSubmission(); len(errs) != 0 {
		t.Fatalf("expected valid sale draft, got %v", errs)
	}

	purchase := domain.NewDraft(domain.DraftKindPurchase)
	purchase.CurrencyID = "uzs"
	purchase.CounterpartyID = "supplier-1"
	purchase.KassaID = "kassa-1"
	purchase.PaymentMode = domain.PaymentModePaid
	purchase.AddLine(saleVariant("v1"), 100, domain.ProvenanceDefault)
	if errs := purchase.ValidateForSubmission(); len(errs) != 0 {
		t.Fatalf("expected valid purchase draft, got %v", errs)
	}
}
