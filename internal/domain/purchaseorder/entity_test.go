package purchaseorder

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func newPO(total string) *PurchaseOrder {
	return &PurchaseOrder{
		ID:          common.NewID(),
		VendorID:    common.NewID(),
		Status:      StatusOpen,
		TotalAmount: dec(total),
	}
}

func TestStatus_CanTransition(t *testing.T) {
	assert.True(t, StatusOpen.CanTransition(StatusPartiallyMatched))
	assert.True(t, StatusOpen.CanTransition(StatusClosed))
	assert.True(t, StatusOpen.CanTransition(StatusCancelled))
	assert.True(t, StatusPartiallyMatched.CanTransition(StatusClosed))
	assert.True(t, StatusPartiallyMatched.CanTransition(StatusCancelled))

	assert.False(t, StatusClosed.CanTransition(StatusCancelled))
	assert.False(t, StatusClosed.CanTransition(StatusOpen))
	assert.False(t, StatusCancelled.CanTransition(StatusCancelled))
	assert.False(t, StatusPartiallyMatched.CanTransition(StatusOpen))
}

func TestApplyMatch_AccumulatesAndAdvancesStatus(t *testing.T) {
	po := newPO("1000.00")

	require.NoError(t, po.ApplyMatch(dec("400.00")))
	assert.Equal(t, StatusPartiallyMatched, po.Status)
	assert.True(t, po.MatchedAmount.Equal(dec("400.00")))
	assert.True(t, po.RemainingAmount().Equal(dec("600.00")))

	require.NoError(t, po.ApplyMatch(dec("600.00")))
	assert.Equal(t, StatusClosed, po.Status)
	assert.True(t, po.MatchedAmount.Equal(po.TotalAmount))
}

func TestApplyMatch_NeverExceedsTotal(t *testing.T) {
	po := newPO("1000.00")
	require.NoError(t, po.ApplyMatch(dec("900.00")))

	err := po.ApplyMatch(dec("200.00"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePOExhausted))
	// Matched amount unchanged after the rejected match.
	assert.True(t, po.MatchedAmount.Equal(dec("900.00")))
}

func TestApplyMatch_SequenceInvariant(t *testing.T) {
	// Property: after any sequence of matches, matched <= total.
	po := newPO("500.00")
	for _, amt := range []string{"100", "150", "100", "200", "50", "75"} {
		_ = po.ApplyMatch(dec(amt))
		assert.True(t, po.MatchedAmount.LessThanOrEqual(po.TotalAmount))
	}
}

func TestApplyMatch_RejectsNonPositiveAndClosed(t *testing.T) {
	po := newPO("100.00")
	assert.Error(t, po.ApplyMatch(dec("0")))
	assert.Error(t, po.ApplyMatch(dec("-5")))

	require.NoError(t, po.ApplyMatch(dec("100.00")))
	assert.Equal(t, StatusClosed, po.Status)
	assert.Error(t, po.ApplyMatch(dec("1.00")))
}

func TestCancel(t *testing.T) {
	po := newPO("100.00")
	require.NoError(t, po.Cancel())
	assert.Equal(t, StatusCancelled, po.Status)

	closed := newPO("100.00")
	require.NoError(t, closed.ApplyMatch(dec("100.00")))
	assert.Error(t, closed.Cancel())
}
