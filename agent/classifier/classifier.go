// Package classifier turns free-form conversation into a structured
// clarification/search decision through an LLM, in the same
// prompt -> model -> JSON-parse shape the rest of the repo uses.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
	llmx "github.com/tanpawarit/bizlens/agent/llm"
)

type classifierLLMOutput struct {
	NeedClarification bool   `json:"need_clarification"`
	Question          string `json:"question,omitempty"`
	Intent            string `json:"intent"`
	Query             string `json:"query,omitempty"`
	Location          string `json:"location,omitempty"`
	DetailLevel       string `json:"detail_level,omitempty"`
}

type Classifier struct {
	runner compose.Runnable[map[string]any, classifierLLMOutput]
}

var _ contractx.Classifier = (*Classifier)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Classifier, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: classifier prompt", contractx.ErrPromptMissing)
	}
	runner, err := llmx.CompileStructuredGraph[classifierLLMOutput](ctx, chatModel, systemPrompt, "classifier.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Classifier{runner: runner}, nil
}

func (c *Classifier) Classify(ctx context.Context, req contractx.ClassifyRequest) (contractx.ClarificationDecision, error) {
	if len(req.History) == 0 {
		return contractx.ClarificationDecision{}, fmt.Errorf("%w: conversation history is empty", contractx.ErrValidation)
	}

	payload := map[string]any{
		"history":          req.History,
		"current_query":    req.CurrentQuery,
		"current_location": req.CurrentLocation,
		"known_entities":   req.KnownEntities,
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.ClarificationDecision{}, fmt.Errorf("%w: marshal classifier payload: %v", contractx.ErrValidation, err)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.ClarificationDecision{}, fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}

	dec := contractx.ClarificationDecision{
		NeedClarification: out.NeedClarification,
		Question:          strings.TrimSpace(out.Question),
		Intent:            contractx.Intent(strings.TrimSpace(out.Intent)),
		Query:             strings.TrimSpace(out.Query),
		Location:          strings.TrimSpace(out.Location),
		DetailLevel:       contractx.ParseDetailLevel(strings.TrimSpace(out.DetailLevel)),
	}
	if err := validateDecision(dec); err != nil {
		return contractx.ClarificationDecision{}, err
	}
	return dec, nil
}

func validateDecision(dec contractx.ClarificationDecision) error {
	switch dec.Intent {
	case contractx.IntentGeneralChat, contractx.IntentBusinessSearch:
	default:
		return fmt.Errorf("%w: unsupported intent=%q", contractx.ErrSchemaViolation, dec.Intent)
	}
	if dec.NeedClarification && dec.Question == "" {
		return fmt.Errorf("%w: clarification requires a question", contractx.ErrSchemaViolation)
	}
	if dec.Intent == contractx.IntentBusinessSearch && !dec.NeedClarification && dec.Query == "" {
		return fmt.Errorf("%w: business_search requires a query", contractx.ErrSchemaViolation)
	}
	return nil
}
