package forms

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stockstash/internal/models"
)

const (
	MsgRequired      = "This field is required."
	MsgInvalidEmail  = "Invalid email address."
	MsgInvalidNumber = "Not a valid decimal value."
	MsgInvalidInt    = "Not a valid integer value."
	MsgPositive      = "Number must be greater than 0."
	MsgAtLeastOne    = "Number must be at least 1."
)

// MsgAmountRange is returned for amounts outside models.CheckAmount bounds.
var MsgAmountRange = fmt.Sprintf("Number must have at most %d digits before and %d after the decimal point.",
	models.MaxAmountIntDigits, models.MaxAmountScale)

// sign, integer digits, point, fraction digits
const maxAmountChars = 1 + models.MaxAmountIntDigits + 1 + models.MaxAmountScale

var validate = validator.New()

// Required fails on empty or whitespace-only values.
func Required() Rule {
	return func(value string) string {
		if validate.Var(strings.TrimSpace(value), "required") != nil {
			return MsgRequired
		}
		return ""
	}
}

// Length bounds the number of characters in value.
func Length(min, max int) Rule {
	tag := fmt.Sprintf("min=%d,max=%d", min, max)
	return func(value string) string {
		if validate.Var(value, tag) != nil {
			return fmt.Sprintf("Field must be between %d and %d characters long.", min, max)
		}
		return ""
	}
}

// Email requires a bare address such as name@example.com.
func Email() Rule {
	return func(value string) string {
		if validate.Var(strings.TrimSpace(value), "email") != nil {
			return MsgInvalidEmail
		}
		return ""
	}
}

// PositiveDecimal requires a plain decimal strictly greater than zero.
// Exponent notation is rejected.
func PositiveDecimal() Rule {
	return func(value string) string {
		value = strings.TrimSpace(value)
		if validate.Var(value, "numeric") != nil {
			return MsgInvalidNumber
		}
		if len(value) > maxAmountChars {
			return MsgAmountRange
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return MsgInvalidNumber
		}
		if models.CheckAmount(d) != nil {
			return MsgAmountRange
		}
		f, _ := d.Float64()
		if validate.Var(f, "gt=0") != nil {
			return MsgPositive
		}
		return ""
	}
}

// PositiveInt requires an integer of at least 1.
func PositiveInt() Rule {
	return func(value string) string {
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return MsgInvalidInt
		}
		if validate.Var(n, "min=1") != nil {
			return MsgAtLeastOne
		}
		return ""
	}
}
