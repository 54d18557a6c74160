package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const receiptDateLayout = "2 January 2006"

// ReceiptData - поля квитанции. Amount в major units.
type ReceiptData struct {
	DonorName     string
	Amount        decimal.Decimal
	Currency      string
	Cause         string
	TransactionID string
	Date          time.Time
}

func (d ReceiptData) TemplateData() TemplateData {
	return TemplateData{
		"DonorName":     d.DonorName,
		"Amount":        FormatAmount(d.Amount, d.Currency),
		"Cause":         titleCase(d.Cause),
		"TransactionID": d.TransactionID,
		"Date":          d.Date.Format(receiptDateLayout),
	}
}

// FormatAmount: ₹1,234.50 / $10.00
func FormatAmount(amount decimal.Decimal, currency string) string {
	symbol := currency + " "
	switch strings.ToUpper(currency) {
	case "", "INR":
		symbol = "₹"
	case "USD":
		symbol = "$"
	}

	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s%s.%s", sign, symbol, b.String(), frac)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
