package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
)

func TestParseOpinion(t *testing.T) {
	op, err := parseOpinion(`{"verdict":"approve","justification":"totals reconcile"}`)
	require.NoError(t, err)
	assert.Equal(t, VerdictApprove, op.Verdict)
	assert.Equal(t, "totals reconcile", op.Justification)

	op, err = parseOpinion("```json\n{\"verdict\":\"review\",\"justification\":\"price drift\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, VerdictReview, op.Verdict)

	_, err = parseOpinion(`{"verdict":"maybe"}`)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))

	_, err = parseOpinion("not json at all")
	require.Error(t, err)
}

func TestNoopReviewHasNoOpinion(t *testing.T) {
	op, err := Noop{}.Review(context.Background(), Request{})
	assert.NoError(t, err)
	assert.Nil(t, op)
}

func TestNewOpenAIReasonerRequiresKey(t *testing.T) {
	_, err := NewOpenAIReasoner(config.ReasoningConfig{}, logging.NewNop())
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	r, err := NewOpenAIReasoner(config.ReasoningConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}, logging.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, r)
}
