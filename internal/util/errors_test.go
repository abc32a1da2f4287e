// internal/util/errors_test.go
package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err       error
		kind      string
		userFault bool
	}{
		{fmt.Errorf("join signal: %w", ErrBelowMinimum), "below_minimum", true},
		{fmt.Errorf("approve: %w", ErrNotPending), "not_pending", true},
		{fmt.Errorf("adjust: %w", ErrMissingJustification), "missing_justification", true},
		{fmt.Errorf("debit: %w", ErrInsufficientFunds), "insufficient_funds", true},
		{fmt.Errorf("settle: %w", ErrInvariantViolation), "invariant_violation", false},
		{fmt.Errorf("begin: %w: %w", ErrStoreUnavailable, errors.New("dial tcp")), "store_unavailable", false},
		{errors.New("unexpected"), "internal", false},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.kind, Kind(tt.err))
			assert.Equal(t, tt.userFault, IsUserError(tt.err))
		})
	}
}

func TestKindPrefersInfrastructureFaults(t *testing.T) {
	err := fmt.Errorf("approve: %w: %w", ErrStoreUnavailable, ErrNotFound)
	assert.Equal(t, "store_unavailable", Kind(err))
	assert.True(t, IsError(err, ErrNotFound))
}
