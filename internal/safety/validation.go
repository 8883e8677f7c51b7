package safety

import (
	"fmt"
	"math"
	"strings"
)

// Validation codes
const (
	CodeInvalidPrice    = "INVALID_PRICE"
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodeInvalidValue    = "INVALID_ORDER_VALUE"
	CodeInvalidSymbol   = "INVALID_SYMBOL"
	CodeInvalidInterval = "INVALID_INTERVAL"
)

const (
	maxPrice      = 1e10
	minPrice      = 1e-8
	maxQuantity   = 1e12
	maxOrderValue = 1e9
	minOrderValue = 0.01
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

// Err converts a failed result into an error, nil when valid
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Code, r.Message)
}

func valid() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalid(code, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validator provides sanity checks for order parameters and market identifiers
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePrice rejects non-finite, non-positive and out-of-range prices
func (v *Validator) ValidatePrice(price float64, symbol string) ValidationResult {
	switch {
	case math.IsNaN(price) || math.IsInf(price, 0):
		return invalid(CodeInvalidPrice, "price for %s is not finite", symbol)
	case price <= 0:
		return invalid(CodeInvalidPrice, "price for %s must be positive, got %v", symbol, price)
	case price > maxPrice:
		return invalid(CodeInvalidPrice, "price for %s is unreasonably high: %v", symbol, price)
	case price < minPrice:
		return invalid(CodeInvalidPrice, "price for %s is below the minimum tick: %v", symbol, price)
	}
	return valid()
}

// ValidateQuantity rejects non-finite, non-positive and absurd quantities
func (v *Validator) ValidateQuantity(quantity float64, symbol string) ValidationResult {
	switch {
	case math.IsNaN(quantity) || math.IsInf(quantity, 0):
		return invalid(CodeInvalidQuantity, "quantity for %s is not finite", symbol)
	case quantity <= 0:
		return invalid(CodeInvalidQuantity, "quantity for %s must be positive, got %v", symbol, quantity)
	case quantity > maxQuantity:
		return invalid(CodeInvalidQuantity, "quantity for %s is unreasonably large: %v", symbol, quantity)
	}
	return valid()
}

// ValidateOrderValue checks the notional of price*quantity
func (v *Validator) ValidateOrderValue(price, quantity float64, symbol string) ValidationResult {
	value := price * quantity
	switch {
	case value > maxOrderValue:
		return invalid(CodeInvalidValue, "order value for %s is too large: %.2f", symbol, value)
	case value < minOrderValue:
		return invalid(CodeInvalidValue, "order value for %s is too small: %.8f", symbol, value)
	}
	return valid()
}

// ValidateSymbol accepts 3 to 20 upper-case letters and digits, e.g. BTCUSDT
func (v *Validator) ValidateSymbol(symbol string) ValidationResult {
	if symbol == "" {
		return invalid(CodeInvalidSymbol, "symbol is empty")
	}
	if len(symbol) < 3 || len(symbol) > 20 {
		return invalid(CodeInvalidSymbol, "symbol %q must be 3 to 20 characters", symbol)
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return invalid(CodeInvalidSymbol, "symbol %q must contain only upper-case letters and digits", symbol)
		}
	}
	return valid()
}

var klineIntervals = map[string]bool{
	"1": true, "3": true, "5": true, "15": true, "30": true,
	"60": true, "120": true, "240": true, "360": true, "720": true,
	"D": true, "W": true, "M": true,
}

// ValidateKlineInterval accepts the exchange's kline interval codes
func (v *Validator) ValidateKlineInterval(interval string) ValidationResult {
	if !klineIntervals[strings.TrimSpace(interval)] {
		return invalid(CodeInvalidInterval, "unsupported kline interval %q", interval)
	}
	return valid()
}

// ValidateOrder runs the symbol, price, quantity and notional checks in order
func (v *Validator) ValidateOrder(symbol string, price, quantity float64) ValidationResult {
	checks := []func() ValidationResult{
		func() ValidationResult { return v.ValidateSymbol(symbol) },
		func() ValidationResult { return v.ValidatePrice(price, symbol) },
		func() ValidationResult { return v.ValidateQuantity(quantity, symbol) },
		func() ValidationResult { return v.ValidateOrderValue(price, quantity, symbol) },
	}
	for _, check := range checks {
		if r := check(); !r.Valid {
			return r
		}
	}
	return valid()
}
