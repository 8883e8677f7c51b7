package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBotError_Format tests the error string and unwrapping
func TestBotError_Format(t *testing.T) {
	base := stderrors.New("boom")
	err := WrapError(base, ErrorCategoryNetwork, "bybit", "GetKlines")

	assert.Equal(t, "[NETWORK:bybit] GetKlines: operation failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))
	assert.True(t, err.IsRetryable())
	assert.False(t, err.IsFatal())

	assert.Nil(t, WrapError(nil, ErrorCategoryNetwork, "x", "y"))
}

// TestIsFatal tests fatal detection through wrapping
func TestIsFatal(t *testing.T) {
	risk := NewRiskError("engine", "checkRiskLimits", "daily loss limit exceeded")
	wrapped := fmt.Errorf("cycle: %w", risk)

	assert.True(t, IsFatal(wrapped))
	assert.False(t, risk.IsRetryable())
	assert.Equal(t, RecoveryActionStop, risk.GetRecoveryAction())
	assert.False(t, IsFatal(stderrors.New("plain")))
}

// TestCategorizeError tests message and sentinel based categorization
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err      error
		category ErrorCategory
	}{
		{context.DeadlineExceeded, ErrorCategoryTimeout},
		{fmt.Errorf("fetch: %w", context.Canceled), ErrorCategoryTemporary},
		{stderrors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{stderrors.New("invalid api key"), ErrorCategoryCredentials},
		{stderrors.New("Too Many Requests"), ErrorCategoryRateLimit},
		{stderrors.New("insufficient balance"), ErrorCategoryOrder},
		{stderrors.New("invalid symbol"), ErrorCategoryValidation},
		{stderrors.New("something odd"), ErrorCategoryTemporary},
	}

	for _, tt := range tests {
		got := CategorizeError(tt.err, "engine", "cycle")
		require.NotNil(t, got)
		assert.Equal(t, tt.category, got.Category, tt.err.Error())
	}

	existing := NewStrategyError("engine", "generateSignal", stderrors.New("x"))
	assert.Same(t, existing, CategorizeError(fmt.Errorf("wrap: %w", existing), "a", "b"))
	assert.Nil(t, CategorizeError(nil, "a", "b"))
}

// TestGetRecoveryAction tests the recovery action per category
func TestGetRecoveryAction(t *testing.T) {
	assert.Equal(t, RecoveryActionWait, NewNetworkError("a", "b", stderrors.New("x")).GetRecoveryAction())
	assert.Equal(t, RecoveryActionSkip, NewBotError(ErrorCategoryValidation, "a", "b", "bad").GetRecoveryAction())
	assert.Equal(t, RecoveryActionStop, NewRiskError("a", "b", "drawdown").GetRecoveryAction())
	assert.Equal(t, RecoveryActionStop, NewConfigurationError("a", "b", "bad").GetRecoveryAction())
	assert.Equal(t, RecoveryActionRetry, NewOrderError("a", "b", stderrors.New("x")).GetRecoveryAction())
	assert.Equal(t, RecoveryActionSkip, NewOrderError("a", "b", stderrors.New("x")).WithRetryable(false).GetRecoveryAction())
}

// TestErrorStats tests counting per category
func TestErrorStats(t *testing.T) {
	stats := NewErrorStats()

	stats.RecordError(NewNetworkError("a", "b", stderrors.New("x")))
	stats.RecordError(NewNetworkError("a", "b", stderrors.New("y")))
	stats.RecordError(NewStrategyError("a", "b", stderrors.New("z")))
	stats.RecordError(nil)

	assert.Equal(t, 3, stats.Total())
	byCategory := stats.ByCategory()
	assert.Equal(t, 2, byCategory[ErrorCategoryNetwork])
	assert.Equal(t, 1, byCategory[ErrorCategoryStrategy])

	byCategory[ErrorCategoryNetwork] = 99
	assert.Equal(t, 2, stats.ByCategory()[ErrorCategoryNetwork])
}
