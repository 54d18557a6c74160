package validator

import (
	"log"
	"strings"

	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/payment"

	"github.com/go-playground/validator/v10"
)

var (
	causeNames = []string{
		string(models.CauseMedical),
		string(models.CauseEducation),
		string(models.CauseFood),
		string(models.CauseShelter),
		string(models.CauseClothing),
		string(models.CauseElderly),
		string(models.CauseGeneral),
	}
	methodNames = []string{
		string(models.PaymentMethodCard),
		string(models.PaymentMethodUPI),
		string(models.PaymentMethodNetbanking),
		string(models.PaymentMethodWallet),
	}
	currencyNames = []string{string(payment.CurrencyINR), string(payment.CurrencyUSD)}
)

func registerCustomRules(v *validator.Validate) {
	rules := map[string]validator.Func{
		"is-donation-cause": enumRule(func(s string) bool { return models.DonationCause(s).Valid() }),
		"is-payment-method": enumRule(func(s string) bool { return models.PaymentMethod(s).Valid() }),
		"is-currency":       enumRule(func(s string) bool { return payment.Currency(strings.ToUpper(s)).Valid() }),
		"is-user-role":      enumRule(func(s string) bool { return models.UserRole(s).Valid() }),
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}
}

// enumRule пропускает пустую строку: обязательность задается тегом required
func enumRule(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || valid(value)
	}
}
