package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

// Справочные in-memory репозитории для локальной разработки и тестов.
// В production их место занимают реализации из storage/postgres.

type variantRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Variant
}

// NewVariantRepository создаёт каталог вариантов с начальными данными.
func NewVariantRepository(seed ...domain.Variant) *variantRepositoryInMemory {
	repo := &variantRepositoryInMemory{items: make(map[string]domain.Variant)}
	for _, v := range seed {
		repo.items[v.ID] = v
	}
	return repo
}

// Put добавляет или заменяет вариант (для тестов).
func (r *variantRepositoryInMemory) Put(v domain.Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[v.ID] = v
}

func (r *variantRepositoryInMemory) Get(_ context.Context, id string) (domain.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.items[id]
	if !ok {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	return v, nil
}

type priceListRepositoryInMemory struct {
	mu      sync.RWMutex
	entries []domain.PriceEntry
}

// NewPriceListRepository создаёт прайс-лист с начальными записями.
func NewPriceListRepository(seed ...domain.PriceEntry) *priceListRepositoryInMemory {
	return &priceListRepositoryInMemory{entries: append([]domain.PriceEntry(nil), seed...)}
}

// Put добавляет запись прайс-листа (для тестов).
func (r *priceListRepositoryInMemory) Put(e domain.PriceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *priceListRepositoryInMemory) Find(_ context.Context, productID, currencyID string, priceType domain.PriceType) (domain.PriceEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.ProductID == productID && e.CurrencyID == currencyID && e.Type == priceType {
			return e, nil
		}
	}
	return domain.PriceEntry{}, domain.ErrPriceEntryNotFound
}

type kassaRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Kassa
}

// NewKassaRepository создаёт справочник касс с начальными данными.
func NewKassaRepository(seed ...domain.Kassa) *kassaRepositoryInMemory {
	repo := &kassaRepositoryInMemory{items: make(map[string]domain.Kassa)}
	for _, k := range seed {
		repo.items[k.ID] = k
	}
	return repo
}

func (r *kassaRepositoryInMemory) Get(_ context.Context, id string) (domain.Kassa, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.items[id]
	if !ok {
		return domain.Kassa{}, domain.ErrKassaNotFound
	}
	return k, nil
}

func (r *kassaRepositoryInMemory) ListByCurrency(_ context.Context, currencyID string) ([]domain.Kassa, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Kassa, 0, len(r.items))
	for _, k := range r.items {
		if currencyID != "" && k.CurrencyID != currencyID {
			continue
		}
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type planRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.InstallmentPlan
}

// NewPlanRepository создаёт справочник планов рассрочки.
func NewPlanRepository(seed ...domain.InstallmentPlan) *planRepositoryInMemory {
	repo := &planRepositoryInMemory{items: make(map[string]domain.InstallmentPlan)}
	for _, p := range seed {
		repo.items[p.ID] = p
	}
	return repo
}

func (r *planRepositoryInMemory) Get(_ context.Context, id string) (domain.InstallmentPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return domain.InstallmentPlan{}, domain.ErrPlanNotFound
	}
	return p, nil
}

func (r *planRepositoryInMemory) List(_ context.Context) ([]domain.InstallmentPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.InstallmentPlan, 0, len(r.items))
	for _, p := range r.items {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Months < result[j].Months })
	return result, nil
}

type stockServiceInMemory struct {
	mu    sync.RWMutex
	avail map[string]int64
}

// NewStockService создаёт in-memory остатки по вариантам.
func NewStockService() *stockServiceInMemory {
	return &stockServiceInMemory{avail: make(map[string]int64)}
}

// SetAvailable задаёт остаток по варианту (для разработки и тестов).
func (s *stockServiceInMemory) SetAvailable(variantID string, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avail[variantID] = qty
}

func (s *stockServiceInMemory) Available(_ context.Context, variantID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.avail[variantID], nil
}

var (
	_ domain.VariantRepository   = (*variantRepositoryInMemory)(nil)
	_ domain.PriceListRepository = (*priceListRepositoryInMemory)(nil)
	_ domain.KassaRepository     = (*kassaRepositoryInMemory)(nil)
	_ domain.PlanRepository      = (*planRepositoryInMemory)(nil)
	_ domain.StockService        = (*stockServiceInMemory)(nil)
)
