package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is a listing's asking price. Decimal-backed so per-unit
// comparisons in the price-anomaly checker do not accumulate float
// error.
type Price struct {
	amount   decimal.Decimal
	currency string
}

// DefaultCurrency is assumed when a submission carries a bare amount.
const DefaultCurrency = "USD"

// NewPrice creates a Price from a decimal amount.
func NewPrice(amount decimal.Decimal, currency string) (Price, error) {
	if amount.IsNegative() {
		return Price{}, fmt.Errorf("price cannot be negative: %s", amount)
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return Price{}, fmt.Errorf("invalid currency code: %s", currency)
	}
	return Price{amount: amount, currency: currency}, nil
}

// NewPriceFromFloat creates a Price from a float amount.
func NewPriceFromFloat(amount float64, currency string) (Price, error) {
	return NewPrice(decimal.NewFromFloat(amount), currency)
}

// MustNewPrice creates a Price from a string amount and panics on error
// (for tests).
func MustNewPrice(amount, currency string) Price {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	p, err := NewPrice(d, currency)
	if err != nil {
		panic(err)
	}
	return p
}

// Amount returns the decimal amount.
func (p Price) Amount() decimal.Decimal {
	return p.amount
}

// Currency returns the ISO currency code.
func (p Price) Currency() string {
	return p.currency
}

// IsZero reports whether the price is unset or zero.
func (p Price) IsZero() bool {
	return p.amount.IsZero()
}

// PerSquareMeter returns price divided by area, the unit the anomaly
// checker compares against regional norms. Zero area yields zero.
func (p Price) PerSquareMeter(areaM2 float64) decimal.Decimal {
	if areaM2 <= 0 {
		return decimal.Zero
	}
	return p.amount.Div(decimal.NewFromFloat(areaM2))
}

// Float64 returns the amount as a float, for display only.
func (p Price) Float64() float64 {
	f, _ := p.amount.Float64()
	return f
}

type priceJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON implements JSON marshaling.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(priceJSON{Amount: p.amount.String(), Currency: p.currency})
}

// UnmarshalJSON implements JSON unmarshaling.
func (p *Price) UnmarshalJSON(data []byte) error {
	var raw priceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Amount == "" {
		*p = Price{}
		return nil
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return err
	}
	price, err := NewPrice(d, raw.Currency)
	if err != nil {
		return err
	}
	*p = price
	return nil
}

// Value implements driver.Valuer for database storage of the amount.
func (p Price) Value() (driver.Value, error) {
	if p.amount.IsZero() && p.currency == "" {
		return nil, nil
	}
	return p.amount.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (p *Price) Scan(value interface{}) error {
	if value == nil {
		*p = Price{}
		return nil
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	case float64:
		p.amount = decimal.NewFromFloat(v)
		p.currency = DefaultCurrency
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Price", value)
	}

	d, err := decimal.NewFromString(str)
	if err != nil {
		return err
	}
	p.amount = d
	if p.currency == "" {
		p.currency = DefaultCurrency
	}
	return nil
}
