package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	apperrors "github.com/apclear/invoicegate/pkg/errors"
)

const systemPrompt = `You are a senior accounts-payable analyst. You are given an
invoice, the purchase order it was matched against, the match score, and the
detected discrepancies. Decide whether the invoice can be approved for payment
or needs human review. Respond with a JSON object of the form
{"verdict":"approve"|"review","justification":"<one sentence>"}.`

// OpenAIReasoner consults a chat-completion model for approve-vs-review
// calls on ambiguous matches. Every call is bounded by the configured
// timeout; deadline overruns surface as a collaborator timeout error so
// callers can fall back to the algorithmic verdict.
type OpenAIReasoner struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  logging.Logger
}

// NewOpenAIReasoner builds a reasoner from config. The API key must be set.
func NewOpenAIReasoner(cfg config.ReasoningConfig, logger logging.Logger) (*OpenAIReasoner, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.InvalidParam("reasoning API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIReasoner{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.Named("reasoner"),
	}, nil
}

// Review implements Reasoner.
func (r *OpenAIReasoner) Review(ctx context.Context, req Request) (*Opinion, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode reasoning request")
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeCollaboratorTimeout,
				fmt.Sprintf("reasoning collaborator exceeded %s", r.timeout))
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternalService, "reasoning collaborator call failed")
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeExternalService, "reasoning collaborator returned no choices")
	}

	opinion, err := parseOpinion(resp.Choices[0].Message.Content)
	if err != nil {
		r.logger.Warn("unparseable reasoner reply", logging.Err(err))
		return nil, err
	}
	return opinion, nil
}

func buildPrompt(req Request) (string, error) {
	payload := map[string]interface{}{
		"invoice":       req.Invoice,
		"order":         req.Order,
		"score":         req.Score,
		"dimensions":    req.Dimensions,
		"discrepancies": req.Discrepancies,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func parseOpinion(content string) (*Opinion, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in a markdown fence.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed struct {
		Verdict       string `json:"verdict"`
		Justification string `json:"justification"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "malformed reasoner reply")
	}
	switch Verdict(parsed.Verdict) {
	case VerdictApprove, VerdictReview:
		return &Opinion{Verdict: Verdict(parsed.Verdict), Justification: parsed.Justification}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrCodeSerialization, "unknown reasoner verdict %q", parsed.Verdict)
	}
}
