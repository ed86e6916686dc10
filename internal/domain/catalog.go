package domain

// PriceProvenance — явный источник цены позиции, чтобы отображение и
// переразрешение могли исчерпывающе ветвиться по нему.
type PriceProvenance string

const (
	// ProvenanceSpecial — цена из прайс-листа (special/cash запись).
	ProvenanceSpecial PriceProvenance = "special"
	// ProvenanceDefault — каталожная цена варианта в валюте транзакции.
	ProvenanceDefault PriceProvenance = "default"
	// ProvenanceManual — цена введена вручную; автоматически не перезаписывается.
	ProvenanceManual PriceProvenance = "manual"
)

// PriceType — тип записи прайс-листа (special, wholesale и т.п., настраивается
// организацией). Пустой тип означает цепочку fallback по умолчанию.
type PriceType string

// PriceTypeSpecial — запись «special/cash», первый шаг цепочки по умолчанию.
const PriceTypeSpecial PriceType = "special"

// Variant — конкретный продаваемый SKU родительского товара.
type Variant struct {
	ID        string
	ProductID string
	Title     string
	SKU       string
	// DefaultPriceMinor/DefaultCurrencyID — каталожная цена варианта.
	// Используется только при совпадении валюты с валютой транзакции.
	DefaultPriceMinor int64
	DefaultCurrencyID string
}

// PriceEntry — запись прайс-листа, ключ (ProductID, CurrencyID, Type).
type PriceEntry struct {
	ID          string
	ProductID   string
	CurrencyID  string
	Type        PriceType
	AmountMinor int64
}

// PriceQuote — результат разрешения цены: сумма и источник.
type PriceQuote struct {
	AmountMinor int64
	Provenance  PriceProvenance
}

// Kassa — касса (счёт расчёта), привязанная к одной валюте.
type Kassa struct {
	ID         string
	Title      string
	CurrencyID string
}
