package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"deals-agent/internal/domain"
)

// Classifier turns free-text user input into a structured deal intent. The
// session only depends on this interface, so a rule-based or alternate-model
// implementation can substitute for the hosted one.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Intent, error)
}

// parseIntent decodes and validates the model's structured output. Anything it
// rejects is treated by the session as classifier failure, not as a guardrail.
func parseIntent(raw string) (domain.Intent, error) {
	var out domain.Intent
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return domain.Intent{}, fmt.Errorf("usecase: decode deal intent: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return domain.Intent{}, errors.New("usecase: decode deal intent: multiple JSON values")
		}
		return domain.Intent{}, fmt.Errorf("usecase: decode deal intent trailing data: %w", err)
	}
	if !domain.ValidDepartment(out.Category) {
		return domain.Intent{}, fmt.Errorf("usecase: deal intent has unknown category %q", out.Category)
	}
	return normalizeIntent(out), nil
}

// normalizeIntent enforces the reply contract: out-of-scope intents always
// carry the exact refusal text and never show offers, and in-scope intents
// never have an empty reply.
func normalizeIntent(in domain.Intent) domain.Intent {
	if in.IsOutOfScope {
		in.Reply = domain.OutOfScopeReply
		in.ShowOffers = false
		in.SuggestedAlternatives = nil
		return in
	}
	if strings.TrimSpace(in.Reply) == "" {
		in.Reply = domain.DefaultReply
	}
	return in
}
