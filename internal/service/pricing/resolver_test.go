package pricing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustamdavlatov/checkout/internal/domain"
	"github.com/rustamdavlatov/checkout/internal/service/pricing"
	"github.com/rustamdavlatov/checkout/internal/storage/memory"
)

func testVariant() domain.Variant {
	return domain.Variant{
		ID:                "v1",
		ProductID:         "p1",
		Title:             "Футболка, красная M",
		SKU:               "TSH-R-M",
		DefaultPriceMinor: 90000,
		DefaultCurrencyID: "uzs",
	}
}

func TestResolve_SpecialEntryWins(t *testing.T) {
	prices := memory.NewPriceListRepository(domain.PriceEntry{
		ID:          "pe1",
		ProductID:   "p1",
		CurrencyID:  "uzs",
		Type:        domain.PriceTypeSpecial,
		AmountMinor: 85000,
	})
	resolver := pricing.NewResolver(prices, nil)

	quote, err := resolver.Resolve(context.Background(), testVariant(), "uzs", "")
	require.NoError(t, err)
	require.Equal(t, int64(85000), quote.AmountMinor)
	require.Equal(t, domain.ProvenanceSpecial, quote.Provenance)
}

func TestResolve_FallbackToDefaultPrice(t *testing.T) {
	resolver := pricing.NewResolver(memory.NewPriceListRepository(), nil)

	quote, err := resolver.Resolve(context.Background(), testVariant(), "uzs", "")
	require.NoError(t, err)
	require.Equal(t, int64(90000), quote.AmountMinor)
	require.Equal(t, domain.ProvenanceDefault, quote.Provenance)
}

func TestResolve_CurrencyMismatchForcesManual(t *testing.T) {
	resolver := pricing.NewResolver(memory.NewPriceListRepository(), nil)

	// Каталожная цена в uzs не используется для usd-транзакции: конвертации нет.
	quote, err := resolver.Resolve(context.Background(), testVariant(), "usd", "")
	require.NoError(t, err)
	require.Equal(t, int64(0), quote.AmountMinor)
	require.Equal(t, domain.ProvenanceManual, quote.Provenance)
}

func TestResolve_ExplicitTypeDoesNotFallBack(t *testing.T) {
	prices := memory.NewPriceListRepository(domain.PriceEntry{
		ID:          "pe1",
		ProductID:   "p1",
		CurrencyID:  "uzs",
		Type:        domain.PriceTypeSpecial,
		AmountMinor: 85000,
	})
	resolver := pricing.NewResolver(prices, nil)

	// Запрошен тип wholesale, записи нет: ноль/manual, а не special-цена.
	quote, err := resolver.Resolve(context.Background(), testVariant(), "uzs", "wholesale")
	require.NoError(t, err)
	require.Equal(t, int64(0), quote.AmountMinor)
	require.Equal(t, domain.ProvenanceManual, quote.Provenance)
}

func TestResolve_ExplicitTypeMatch(t *testing.T) {
	prices := memory.NewPriceListRepository(domain.PriceEntry{
		ID:          "pe2",
		ProductID:   "p1",
		CurrencyID:  "uzs",
		Type:        "wholesale",
		AmountMinor: 80000,
	})
	resolver := pricing.NewResolver(prices, nil)

	quote, err := resolver.Resolve(context.Background(), testVariant(), "uzs", "wholesale")
	require.NoError(t, err)
	require.Equal(t, int64(80000), quote.AmountMinor)
	require.Equal(t, domain.ProvenanceSpecial, quote.Provenance)
}

func TestResolve_Idempotent(t *testing.T) {
	prices := memory.NewPriceListRepository(domain.PriceEntry{
		ID:          "pe1",
		ProductID:   "p1",
		CurrencyID:  "uzs",
		Type:        domain.PriceTypeSpecial,
		AmountMinor: 85000,
	})
	resolver := pricing.NewResolver(prices, nil)

	first, err := resolver.Resolve(context.Background(), testVariant(), "uzs", "")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), testVariant(), "uzs", "")
	require.NoError(t, err)
	require.Equal(t, first, second)
}
