package pricing

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

// Resolver определяет применимую цену варианта в валюте транзакции.
// Разрешение идемпотентно: одинаковый вход без ручных правок между вызовами
// даёт одинаковые сумму и источник.
type Resolver struct {
	prices domain.PriceListRepository
	logger *log.Entry
}

// NewResolver создаёт резолвер поверх прайс-листа.
func NewResolver(prices domain.PriceListRepository, logger *log.Entry) *Resolver {
	if logger == nil {
		logger = log.WithField("component", "pricing")
	}
	return &Resolver{prices: prices, logger: logger}
}

// Resolve возвращает цену и источник для варианта в валюте currencyID.
//
// Если priceType задан явно, ищется только точная запись этого типа: её
// отсутствие даёт нулевую цену с источником manual, без тихого отката по
// цепочке — вызывающая сторона обязана узнать, что цены этого типа нет.
//
// Без явного типа работает цепочка fallback: special-запись родительского
// товара в валюте транзакции, затем каталожная цена варианта при совпадении
// валюты, затем ноль/manual. Каталожная цена в чужой валюте никогда не
// используется — конвертации нет.
func (r *Resolver) Resolve(ctx context.Context, variant domain.Variant, currencyID string, priceType domain.PriceType) (domain.PriceQuote, error) {
	if priceType != "" {
		return r.resolveExact(ctx, variant, currencyID, priceType)
	}

	entry, err := r.prices.Find(ctx, variant.ProductID, currencyID, domain.PriceTypeSpecial)
	switch {
	case err == nil:
		return domain.PriceQuote{AmountMinor: entry.AmountMinor, Provenance: domain.ProvenanceSpecial}, nil
	case !errors.Is(err, domain.ErrPriceEntryNotFound):
		return domain.PriceQuote{}, fmt.Errorf("lookup special price: %w", err)
	}

	if variant.DefaultCurrencyID == currencyID {
		return domain.PriceQuote{AmountMinor: variant.DefaultPriceMinor, Provenance: domain.ProvenanceDefault}, nil
	}

	r.logger.WithFields(log.Fields{
		"variant_id":  variant.ID,
		"currency_id": currencyID,
	}).Debug("no price in draft currency, manual entry required")

	return domain.PriceQuote{AmountMinor: 0, Provenance: domain.ProvenanceManual}, nil
}

func (r *Resolver) resolveExact(ctx context.Context, variant domain.Variant, currencyID string, priceType domain.PriceType) (domain.PriceQuote, error) {
	entry, err := r.prices.Find(ctx, variant.ProductID, currencyID, priceType)
	switch {
	case err == nil:
		// Любая запись прайс-листа, включая нестандартные типы, имеет источник special.
		return domain.PriceQuote{AmountMinor: entry.AmountMinor, Provenance: domain.ProvenanceSpecial}, nil
	case errors.Is(err, domain.ErrPriceEntryNotFound):
		return domain.PriceQuote{AmountMinor: 0, Provenance: domain.ProvenanceManual}, nil
	default:
		return domain.PriceQuote{}, fmt.Errorf("lookup %s price: %w", priceType, err)
	}
}
