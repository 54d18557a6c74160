package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor - фиксированное соотношение рупия/пайса, доллар/цент
const MinorUnitsPerMajor = 100

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == CurrencyINR || c == CurrencyUSD
}

// Limits - допустимый диапазон суммы в основных единицах
type Limits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func DefaultLimits() Limits {
	return Limits{Min: decimal.NewFromInt(100), Max: decimal.NewFromInt(10_000_000)}
}

func NewLimits(minMajor, maxMajor int64) Limits {
	return Limits{Min: decimal.NewFromInt(minMajor), Max: decimal.NewFromInt(maxMajor)}
}

// AmountError - сумма вне диапазона; сообщение уходит клиенту как есть
type AmountError struct {
	Message string
}

func (e *AmountError) Error() string { return e.Message }

// ToMinor переводит в minor units с округлением (не усечением): 100.4 -> 10040, 100.005 -> 10001
func ToMinor(major decimal.Decimal) int64 {
	return major.Mul(decimal.NewFromInt(MinorUnitsPerMajor)).Round(0).IntPart()
}

// ToMajor - обратное преобразование
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Validate проверяет сумму в основных единицах против лимитов
func (l Limits) Validate(major decimal.Decimal) error {
	if major.IsZero() || major.IsNegative() {
		return &AmountError{Message: "Invalid amount"}
	}
	if major.LessThan(l.Min) {
		return &AmountError{Message: fmt.Sprintf("Minimum amount is ₹%s", l.Min.String())}
	}
	if major.GreaterThan(l.Max) {
		return &AmountError{Message: fmt.Sprintf("Maximum amount is ₹%s", l.Max.String())}
	}
	return nil
}

// MinMinor - нижняя граница в minor units
func (l Limits) MinMinor() int64 {
	return ToMinor(l.Min)
}

// NormalizeCurrency: пусто -> INR, иначе только INR/USD
func NormalizeCurrency(raw string) (Currency, error) {
	if strings.TrimSpace(raw) == "" {
		return CurrencyINR, nil
	}
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", raw)
	}
	return c, nil
}
