package errors

// ErrorCode is a string representation of a specific error condition.
// Codes are grouped by prefix: COMMON_* for cross-cutting failures and
// ENGINE_* for decision-engine outcomes defined by the error taxonomy.
type ErrorCode string

// ─────────────────────────────────────────────────────────────────────────────
// Common codes
// ─────────────────────────────────────────────────────────────────────────────

const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_005"
	ErrCodeTimeout            ErrorCode = "COMMON_006"
	ErrCodeValidation         ErrorCode = "COMMON_007"
	ErrCodeSerialization      ErrorCode = "COMMON_008"
	ErrCodeDatabaseError      ErrorCode = "COMMON_009"
	ErrCodeCacheError         ErrorCode = "COMMON_010"
	ErrCodeExternalService    ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_012"
)

// ─────────────────────────────────────────────────────────────────────────────
// Decision-engine codes
// ─────────────────────────────────────────────────────────────────────────────

const (
	// ErrCodeIncompleteExtraction is fatal: the invoice record's extraction
	// confidence is below the configured minimum, so the workflow aborts
	// before matching.
	ErrCodeIncompleteExtraction ErrorCode = "ENGINE_001"

	// ErrCodeNoEvidence is fatal: both the matching stage and the risk
	// assessment stage failed, leaving nothing to decide on.
	ErrCodeNoEvidence ErrorCode = "ENGINE_002"

	// ErrCodePartialEvidence is non-fatal: one of matching / risk assessment
	// failed. The decision proceeds on the remaining evidence and the gap is
	// recorded in the workflow notes.
	ErrCodePartialEvidence ErrorCode = "ENGINE_003"

	// ErrCodeCollaboratorTimeout is non-fatal: the optional reasoning
	// collaborator did not answer in time and the algorithmic result stands.
	ErrCodeCollaboratorTimeout ErrorCode = "ENGINE_004"

	// ErrCodeInvoiceNotFound / ErrCodeVendorNotFound are domain-specific
	// not-found variants used by the repository adapters.
	ErrCodeInvoiceNotFound ErrorCode = "ENGINE_005"
	ErrCodeVendorNotFound  ErrorCode = "ENGINE_006"

	// ErrCodePOExhausted reports an attempt to match more against a purchase
	// order than its remaining unmatched amount.
	ErrCodePOExhausted ErrorCode = "ENGINE_007"

	// ErrCodeWorkflowTerminal reports an attempt to advance a workflow that
	// has already reached a terminal state.
	ErrCodeWorkflowTerminal ErrorCode = "ENGINE_008"
)

// CodeOK is the zero value returned by GetCode for nil errors.
const CodeOK ErrorCode = "OK"

// CodeUnknown is returned by GetCode when no AppError is in the chain.
const CodeUnknown ErrorCode = "UNKNOWN"

// String returns the code's string form.
func (c ErrorCode) String() string { return string(c) }
