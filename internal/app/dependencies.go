package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/rustamdavlatov/checkout/internal/domain"
	"github.com/rustamdavlatov/checkout/internal/storage/memory"
	"github.com/rustamdavlatov/checkout/internal/storage/postgres"
)

// Dependencies содержит хранилища и сервисы, от которых зависит приложение.
// Черновики живут в памяти при любом драйвере: это сеансовое состояние,
// а не долговременная запись.
type Dependencies struct {
	Drafts      domain.DraftRepository
	Variants    domain.VariantRepository
	Prices      domain.PriceListRepository
	Kassy       domain.KassaRepository
	Plans       domain.PlanRepository
	Stock       domain.StockService
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository

	store *postgres.Store
}

// Close освобождает ресурсы зависимостей.
func (d *Dependencies) Close() error {
	if d.store == nil {
		return nil
	}
	return d.store.Close()
}

// Store возвращает PostgreSQL store или nil для memory-драйвера.
func (d *Dependencies) Store() *postgres.Store {
	return d.store
}

// NewDependencies собирает зависимости по конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		return newPostgresDependencies(ctx, cfg, logger)
	case StorageDriverMemory, "":
		return newMemoryDependencies(logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func newPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("миграции применены")
	}

	return &Dependencies{
		Drafts:      memory.NewDraftRepository(),
		Variants:    postgres.NewVariantRepository(store),
		Prices:      postgres.NewPriceListRepository(store),
		Kassy:       postgres.NewKassaRepository(store),
		Plans:       postgres.NewPlanRepository(store),
		Stock:       postgres.NewStockService(store),
		Outbox:      postgres.NewOutboxRepository(store),
		Timeline:    postgres.NewTimelineRepository(store),
		Idempotency: postgres.NewIdempotencyRepository(store),
		store:       store,
	}, nil
}

// newMemoryDependencies собирает полностью in-memory окружение с небольшим
// демонстрационным каталогом.
// NOTE: для production подключайте PostgreSQL через CHECKOUT_POSTGRES_DSN.
func newMemoryDependencies(logger *log.Entry) *Dependencies {
	variants := memory.NewVariantRepository(
		domain.Variant{
			ID:                "variant-demo-1",
			ProductID:         "product-demo-1",
			Title:             "Demo product, red",
			SKU:               "DEMO-001-R",
			DefaultPriceMinor: 150000,
			DefaultCurrencyID: "uzs",
		},
		domain.Variant{
			ID:                "variant-demo-2",
			ProductID:         "product-demo-2",
			Title:             "Demo product, large",
			SKU:               "DEMO-002-L",
			DefaultPriceMinor: 2500,
			DefaultCurrencyID: "usd",
		},
	)
	prices := memory.NewPriceListRepository(
		domain.PriceEntry{
			ID:          "price-demo-1",
			ProductID:   "product-demo-1",
			CurrencyID:  "uzs",
			Type:        domain.PriceTypeSpecial,
			AmountMinor: 120000,
		},
	)
	kassy := memory.NewKassaRepository(
		domain.Kassa{ID: "kassa-demo-uzs", Title: "Main register (UZS)", CurrencyID: "uzs"},
		domain.Kassa{ID: "kassa-demo-usd", Title: "Main register (USD)", CurrencyID: "usd"},
	)
	plans := memory.NewPlanRepository(
		domain.InstallmentPlan{ID: "plan-6", Months: 6, Coefficient: 1.10},
		domain.InstallmentPlan{ID: "plan-12", Months: 12, Coefficient: 1.20},
	)
	stock := memory.NewStockService()
	stock.SetAvailable("variant-demo-1", 100)
	stock.SetAvailable("variant-demo-2", 40)

	logger.Info("используется in-memory хранилище с демонстрационным каталогом")

	return &Dependencies{
		Drafts:      memory.NewDraftRepository(),
		Variants:    variants,
		Prices:      prices,
		Kassy:       kassy,
		Plans:       plans,
		Stock:       stock,
		Outbox:      memory.NewOutboxRepository(),
		Timeline:    memory.NewTimelineRepository(),
		Idempotency: memory.NewIdempotencyRepository(),
	}
}
