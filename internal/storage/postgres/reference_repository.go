package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

type variantRepository struct {
	db *sql.DB
}

// NewVariantRepository создаёт PostgreSQL-реализацию VariantRepository.
func NewVariantRepository(store *Store) domain.VariantRepository {
	return &variantRepository{db: store.DB()}
}

func (r *variantRepository) Get(ctx context.Context, id string) (domain.Variant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Variant{}, domain.ErrVariantNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		v        domain.Variant
		price    sql.NullInt64
		currency sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, title, sku, default_price_minor, default_currency_id
		FROM product_variants
		WHERE id = $1
	`, id).Scan(&v.ID, &v.ProductID, &v.Title, &v.SKU, &price, &currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Variant{}, domain.ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("get variant: %w", err)
	}

	if price.Valid {
		v.DefaultPriceMinor = price.Int64
	}
	if currency.Valid {
		v.DefaultCurrencyID = currency.String
	}

	return v, nil
}

type priceListRepository struct {
	db *sql.DB
}

// NewPriceListRepository создаёт PostgreSQL-реализацию PriceListRepository.
func NewPriceListRepository(store *Store) domain.PriceListRepository {
	return &priceListRepository{db: store.DB()}
}

func (r *priceListRepository) Find(ctx context.Context, productID, currencyID string, priceType domain.PriceType) (domain.PriceEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var entry domain.PriceEntry
	var typeRaw string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, currency_id, price_type, amount_minor
		FROM price_list_entries
		WHERE product_id = $1 AND currency_id = $2 AND price_type = $3
	`, productID, currencyID, string(priceType)).Scan(
		&entry.ID,
		&entry.ProductID,
		&entry.CurrencyID,
		&typeRaw,
		&entry.AmountMinor,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PriceEntry{}, domain.ErrPriceEntryNotFound
		}
		return domain.PriceEntry{}, fmt.Errorf("find price entry: %w", err)
	}

	entry.Type = domain.PriceType(typeRaw)
	return entry, nil
}

type kassaRepository struct {
	db *sql.DB
}

// NewKassaRepository создаёт PostgreSQL-реализацию KassaRepository.
func NewKassaRepository(store *Store) domain.KassaRepository {
	return &kassaRepository{db: store.DB()}
}

func (r *kassaRepository) Get(ctx context.Context, id string) (domain.Kassa, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Kassa{}, domain.ErrKassaNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var k domain.Kassa
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, currency_id
		FROM kassy
		WHERE id = $1
	`, id).Scan(&k.ID, &k.Title, &k.CurrencyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Kassa{}, domain.ErrKassaNotFound
		}
		return domain.Kassa{}, fmt.Errorf("get kassa: %w", err)
	}

	return k, nil
}

func (r *kassaRepository) ListByCurrency(ctx context.Context, currencyID string) ([]domain.Kassa, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT id, title, currency_id FROM kassy ORDER BY title ASC`
	args := []any{}
	if strings.TrimSpace(currencyID) != "" {
		query = `SELECT id, title, currency_id FROM kassy WHERE currency_id = $1 ORDER BY title ASC`
		args = append(args, currencyID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list kassy: %w", err)
	}
	defer rows.Close()

	var kassy []domain.Kassa
	for rows.Next() {
		var k domain.Kassa
		if err := rows.Scan(&k.ID, &k.Title, &k.CurrencyID); err != nil {
			return nil, fmt.Errorf("scan kassa: %w", err)
		}
		kassy = append(kassy, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kassy: %w", err)
	}

	return kassy, nil
}

type planRepository struct {
	db *sql.DB
}

// NewPlanRepository создаёт PostgreSQL-реализацию PlanRepository.
func NewPlanRepository(store *Store) domain.PlanRepository {
	return &planRepository{db: store.DB()}
}

func (r *planRepository) Get(ctx context.Context, id string) (domain.InstallmentPlan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.InstallmentPlan{}, domain.ErrPlanNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var plan domain.InstallmentPlan
	err := r.db.QueryRowContext(ctx, `
		SELECT id, months, coefficient
		FROM installment_plans
		WHERE id = $1
	`, id).Scan(&plan.ID, &plan.Months, &plan.Coefficient)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InstallmentPlan{}, domain.ErrPlanNotFound
		}
		return domain.InstallmentPlan{}, fmt.Errorf("get installment plan: %w", err)
	}

	return plan, nil
}

func (r *planRepository) List(ctx context.Context) ([]domain.InstallmentPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, months, coefficient
		FROM installment_plans
		ORDER BY months ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list installment plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.InstallmentPlan
	for rows.Next() {
		var plan domain.InstallmentPlan
		if err := rows.Scan(&plan.ID, &plan.Months, &plan.Coefficient); err != nil {
			return nil, fmt.Errorf("scan installment plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installment plans: %w", err)
	}

	return plans, nil
}

type stockService struct {
	db *sql.DB
}

// NewStockService создаёт PostgreSQL-реализацию StockService. Остаток —
// сумма по всем локациям организации.
func NewStockService(store *Store) domain.StockService {
	return &stockService{db: store.DB()}
}

func (s *stockService) Available(ctx context.Context, variantID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_levels
		WHERE variant_id = $1
	`, variantID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("available stock: %w", err)
	}

	return total, nil
}

var (
	_ domain.VariantRepository   = (*variantRepository)(nil)
	_ domain.PriceListRepository = (*priceListRepository)(nil)
	_ domain.KassaRepository     = (*kassaRepository)(nil)
	_ domain.PlanRepository      = (*planRepository)(nil)
	_ domain.StockService        = (*stockService)(nil)
)
