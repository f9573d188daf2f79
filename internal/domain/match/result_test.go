package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apclear/invoicegate/pkg/types/common"
)

func TestResult_Matched(t *testing.T) {
	poID := common.NewID()

	matched := &Result{Type: TypeFuzzy, PurchaseOrderID: &poID}
	assert.True(t, matched.Matched())

	none := &Result{Type: TypeNone}
	assert.False(t, none.Matched())

	var nilResult *Result
	assert.False(t, nilResult.Matched())
}

func TestResult_DiscrepancyHelpers(t *testing.T) {
	r := &Result{Discrepancies: []Discrepancy{
		{Type: DiscrepancyAmount, Severity: SeverityMinor},
		{Type: DiscrepancyVendor, Severity: SeverityMajor},
		{Type: DiscrepancyLineItem, Severity: SeverityCritical},
		{Type: DiscrepancyLineItem, Severity: SeverityMinor},
	}}

	assert.True(t, r.HasCriticalDiscrepancy())
	assert.Equal(t, 2, r.CountBySeverity(SeverityMinor))
	assert.Equal(t, 1, r.CountBySeverity(SeverityMajor))
	assert.Equal(t, 1, r.CountBySeverity(SeverityCritical))

	clean := &Result{Discrepancies: []Discrepancy{{Severity: SeverityMinor}}}
	assert.False(t, clean.HasCriticalDiscrepancy())

	var nilResult *Result
	assert.False(t, nilResult.HasCriticalDiscrepancy())
	assert.Equal(t, 0, nilResult.CountBySeverity(SeverityCritical))
}
