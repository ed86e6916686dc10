package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rustamdavlatov/checkout/internal/domain"
	"github.com/rustamdavlatov/checkout/internal/service/assembler"
	"github.com/rustamdavlatov/checkout/internal/service/pricing"
	"github.com/rustamdavlatov/checkout/internal/storage/memory"
)

type fixture struct {
	service  *Service
	drafts   domain.DraftRepository
	gateway  *gatewayStub
	stock    interface{ SetAvailable(string, int64) }
	timeline domain.TimelineRepository
}

type gatewayStub struct {
	receipt domain.SubmissionReceipt
	err     error
	calls   int
}

func (g *gatewayStub) CreateSale(_ context.Context, _ domain.SaleSubmission) (domain.SubmissionReceipt, error) {
	g.calls++
	return g.receipt, g.err
}

func (g *gatewayStub) CreatePurchase(_ context.Context, _ domain.PurchaseSubmission) (domain.SubmissionReceipt, error) {
	g.calls++
	return g.receipt, g.err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	variants := memory.NewVariantRepository(
		domain.Variant{ID: "variant-1", ProductID: "product-1", Title: "Paracetamol 500mg", SKU: "PRC-500", DefaultPriceMinor: 90000, DefaultCurrencyID: "currency-uzs"},
		domain.Variant{ID: "variant-2", ProductID: "product-2", Title: "Ibuprofen 200mg", SKU: "IBU-200", DefaultPriceMinor: 50000, DefaultCurrencyID: "currency-usd"},
	)
	prices := memory.NewPriceListRepository(
		domain.PriceEntry{ID: "pe-1", ProductID: "product-1", CurrencyID: "currency-uzs", Type: domain.PriceTypeSpecial, AmountMinor: 120000},
	)
	kassy := memory.NewKassaRepository(
		domain.Kassa{ID: "kassa-uzs", Title: "Main UZS", CurrencyID: "currency-uzs"},
		domain.Kassa{ID: "kassa-usd", Title: "Main USD", CurrencyID: "currency-usd"},
	)
	plans := memory.NewPlanRepository(
		domain.InstallmentPlan{ID: "plan-12", Months: 12, Coefficient: 1.15},
	)
	stock := memory.NewStockService()
	stock.SetAvailable("variant-1", 100)
	stock.SetAvailable("variant-2", 100)

	drafts := memory.NewDraftRepository()
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()
	gateway := &gatewayStub{receipt: domain.SubmissionReceipt{TransactionID: "txn-1", Status: "completed"}}

	asm := assembler.NewAssemblerWithoutMetrics(drafts, gateway, outbox, timeline, nil)
	service := NewService(Deps{
		Drafts:    drafts,
		Variants:  variants,
		Kassy:     kassy,
		Plans:     plans,
		Stock:     stock,
		Resolver:  pricing.NewResolver(prices, nil),
		Assembler: asm,
		Timeline:  timeline,
	})

	return &fixture{service: service, drafts: drafts, gateway: gateway, stock: stock, timeline: timeline}
}

func (f *fixture) saleDraft(t *testing.T) domain.Draft {
	t.Helper()
	draft, err := f.service.CreateDraft(context.Background(), domain.DraftKindSale)
	require.NoError(t, err)
	draft, err = f.service.SetCurrency(context.Background(), draft.ID, "currency-uzs", false)
	require.NoError(t, err)
	return draft
}

func TestAddItemResolvesSpecialPrice(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	draft, err := f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)
	require.Len(t, draft.Lines, 1)
	require.Equal(t, int64(120000), draft.Lines[0].UnitPriceMinor)
	require.Equal(t, domain.ProvenanceSpecial, draft.Lines[0].Provenance)

	// Повторное добавление сливается с существующей позицией.
	draft, err = f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)
	require.Len(t, draft.Lines, 1)
	require.Equal(t, int32(2), draft.Lines[0].Qty)
}

func TestAddItemRequiresCurrency(t *testing.T) {
	f := newFixture(t)
	draft, err := f.service.CreateDraft(context.Background(), domain.DraftKindSale)
	require.NoError(t, err)

	_, err = f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.ErrorIs(t, err, domain.ErrCurrencyRequired)
}

func TestAddItemFallsBackToManualOnCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	// У variant-2 нет записи прайс-листа в uzs, а каталожная цена в usd.
	draft, err := f.service.AddItem(context.Background(), draft.ID, "variant-2", "")
	require.NoError(t, err)
	require.Equal(t, int64(0), draft.Lines[0].UnitPriceMinor)
	require.Equal(t, domain.ProvenanceManual, draft.Lines[0].Provenance)
}

func TestStockCheckBlocksSaleQuantity(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)
	f.stock.SetAvailable("variant-1", 3)

	draft, err := f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)

	_, err = f.service.UpdateQuantity(context.Background(), draft.ID, "variant-1", 4)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	draft, err = f.service.UpdateQuantity(context.Background(), draft.ID, "variant-1", 3)
	require.NoError(t, err)
	require.Equal(t, int32(3), draft.Lines[0].Qty)
}

func TestStockCheckIgnoredForPurchase(t *testing.T) {
	f := newFixture(t)
	draft, err := f.service.CreateDraft(context.Background(), domain.DraftKindPurchase)
	require.NoError(t, err)
	_, err = f.service.SetCurrency(context.Background(), draft.ID, "currency-uzs", false)
	require.NoError(t, err)
	f.stock.SetAvailable("variant-1", 0)

	draft, err = f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)

	draft, err = f.service.UpdateQuantity(context.Background(), draft.ID, "variant-1", 500)
	require.NoError(t, err)
	require.Equal(t, int32(500), draft.Lines[0].Qty)
}

func TestSetCurrencyRequiresConfirmationWithLines(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	draft, err := f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)
	draft, err = f.service.SetKassa(context.Background(), draft.ID, "kassa-uzs")
	require.NoError(t, err)

	_, err = f.service.SetCurrency(context.Background(), draft.ID, "currency-usd", false)
	require.ErrorIs(t, err, domain.ErrCurrencyChangeConfirmation)

	draft, err = f.service.SetCurrency(context.Background(), draft.ID, "currency-usd", true)
	require.NoError(t, err)
	require.Empty(t, draft.Lines)
	require.Empty(t, draft.KassaID)
	require.Equal(t, "currency-usd", draft.CurrencyID)
}

func TestSetKassaRejectsCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	_, err := f.service.SetKassa(context.Background(), draft.ID, "kassa-usd")
	require.ErrorIs(t, err, domain.ErrKassaCurrencyMismatch)

	draft, err = f.service.SetKassa(context.Background(), draft.ID, "kassa-uzs")
	require.NoError(t, err)
	require.Equal(t, "kassa-uzs", draft.KassaID)
}

func TestSetInstallmentWithPlan(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	draft, err := f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)
	draft, err = f.service.UpdateQuantity(context.Background(), draft.ID, "variant-1", 10)
	require.NoError(t, err)
	draft, err = f.service.SetPaymentMode(context.Background(), draft.ID, domain.PaymentModeInstallment)
	require.NoError(t, err)

	// Итог 1,200,000; план 12 месяцев с коэффициентом 1.15.
	draft, quote, err := f.service.SetInstallment(context.Background(), draft.ID, InstallmentInput{
		PlanID:  "plan-12",
		DueDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1200000), quote.RemainingMinor)
	require.Equal(t, int64(115000), quote.MonthlyMinor)
	require.Equal(t, int32(12), quote.TotalMonths)
	require.NotNil(t, draft.Installment)
	require.Equal(t, int32(12), draft.Installment.TotalMonths)
}

func TestSetInstallmentFlagsInvalidInitialPayment(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	draft, err := f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)
	draft, err = f.service.SetPaymentMode(context.Background(), draft.ID, domain.PaymentModeInstallment)
	require.NoError(t, err)

	// Взнос равен итогу корзины: параметры сохраняются, но отправка заблокирована.
	draft, _, err = f.service.SetInstallment(context.Background(), draft.ID, InstallmentInput{
		InitialPaymentMinor: 120000,
		TotalMonths:         10,
	})
	require.ErrorIs(t, err, domain.ErrInvalidInitialPayment)
	require.NotNil(t, draft.Installment)

	draft, err = f.service.SetCounterparty(context.Background(), draft.ID, "customer-1")
	require.NoError(t, err)
	_, err = f.service.Submit(context.Background(), draft.ID)
	require.ErrorIs(t, err, domain.ErrInvalidInitialPayment)
	require.Zero(t, f.gateway.calls)
}

func TestLeavingInstallmentModeClearsTerms(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	draft, err := f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)
	draft, err = f.service.SetPaymentMode(context.Background(), draft.ID, domain.PaymentModeInstallment)
	require.NoError(t, err)
	draft, _, err = f.service.SetInstallment(context.Background(), draft.ID, InstallmentInput{TotalMonths: 10})
	require.NoError(t, err)
	require.NotNil(t, draft.Installment)

	draft, err = f.service.SetPaymentMode(context.Background(), draft.ID, domain.PaymentModeFull)
	require.NoError(t, err)
	require.Nil(t, draft.Installment)
}

func TestSubmitDelegatesAndResets(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	_, err := f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)

	receipt, err := f.service.Submit(context.Background(), draft.ID)
	require.NoError(t, err)
	require.Equal(t, "txn-1", receipt.TransactionID)
	require.Equal(t, 1, f.gateway.calls)

	after, err := f.service.GetDraft(context.Background(), draft.ID)
	require.NoError(t, err)
	require.Empty(t, after.Lines)
}

func TestDiscardDeletesDraft(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	require.NoError(t, f.service.Discard(context.Background(), draft.ID))

	_, err := f.service.GetDraft(context.Background(), draft.ID)
	require.ErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestTimelineRecordsMutations(t *testing.T) {
	f := newFixture(t)
	draft := f.saleDraft(t)

	_, err := f.service.AddItem(context.Background(), draft.ID, "variant-1", "")
	require.NoError(t, err)
	_, err = f.service.RemoveItem(context.Background(), draft.ID, "variant-1")
	require.NoError(t, err)

	events, err := f.service.Timeline(context.Background(), draft.ID)
	require.NoError(t, err)

	types := make([]string, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	require.Contains(t, types, domain.TimelineDraftCreated)
	require.Contains(t, types, domain.TimelineCurrencyChanged)
	require.Contains(t, types, domain.TimelineLineAdded)
	require.Contains(t, types, domain.TimelineLineRemoved)
}
