package exchange

import "fmt"

// ExchangeError represents standardized rejections from an execution venue
type ExchangeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	IsRetryable bool   `json:"is_retryable"`
}

func (e *ExchangeError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Is matches on Code so detailed copies still compare equal to the sentinels
func (e *ExchangeError) Is(target error) bool {
	t, ok := target.(*ExchangeError)
	return ok && t.Code == e.Code
}

// WithDetails returns a copy of the error carrying formatted details
func (e *ExchangeError) WithDetails(format string, args ...interface{}) *ExchangeError {
	c := *e
	c.Details = fmt.Sprintf(format, args...)
	return &c
}

var (
	ErrInsufficientBalance = &ExchangeError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "Insufficient balance for trade",
	}
	ErrPositionNotFound = &ExchangeError{
		Code:    "POSITION_NOT_FOUND",
		Message: "No open position to sell",
	}
	ErrInvalidOrder = &ExchangeError{
		Code:    "INVALID_ORDER",
		Message: "Invalid order parameters",
	}
	ErrInvalidSymbol = &ExchangeError{
		Code:    "INVALID_SYMBOL",
		Message: "Invalid trading symbol",
	}
	ErrRateLimitExceeded = &ExchangeError{
		Code:        "RATE_LIMIT_EXCEEDED",
		Message:     "API rate limit exceeded",
		IsRetryable: true,
	}
	ErrConnectionFailed = &ExchangeError{
		Code:        "CONNECTION_FAILED",
		Message:     "Failed to connect to exchange",
		IsRetryable: true,
	}
)
