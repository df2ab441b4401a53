package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"deals-agent/internal/domain"
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// LLMClassifier resolves deal intents through a hosted chat model. Model name
// and the pinned instruction are loaded from the parameter store on first use
// and cached for the process lifetime.
type LLMClassifier struct {
	params      ParamGetter
	llm         LLMClient
	paramPrefix string

	cacheMu           sync.RWMutex
	cacheLoaded       bool
	pinnedInstruction string
	model             string
}

func NewLLMClassifier(p ParamGetter, llm LLMClient, paramPrefix string) (*LLMClassifier, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &LLMClassifier{
		params:      p,
		llm:         llm,
		paramPrefix: paramPrefix,
	}, nil
}

// Classify moderates the input, then asks the model for a structured intent.
// Flagged input short-circuits to an out-of-scope refusal without a chat call.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (domain.Intent, error) {
	if err := c.ensureConfig(ctx); err != nil {
		return domain.Intent{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	flagged, err := c.llm.Moderate(ctx, text)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return domain.Intent{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
		}
		return domain.Intent{}, newError(ErrorUpstream, "moderation_error", err)
	}
	if flagged {
		return normalizeIntent(domain.Intent{IsOutOfScope: true, Category: domain.DepartmentAll}), nil
	}

	raw, err := c.llm.Chat(ctx, c.model, buildIntentMessages(c.pinnedInstruction, text))
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return domain.Intent{}, newError(ErrorRateLimited, "openai_rate_limited", err)
		}
		return domain.Intent{}, newError(ErrorUpstream, "openai_error", err)
	}

	intent, err := parseIntent(raw)
	if err != nil {
		return domain.Intent{}, newError(ErrorUpstream, "openai_malformed_response", err)
	}
	return intent, nil
}

func (c *LLMClassifier) ensureConfig(ctx context.Context) error {
	c.cacheMu.RLock()
	if c.cacheLoaded {
		c.cacheMu.RUnlock()
		return nil
	}
	c.cacheMu.RUnlock()

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.cacheLoaded {
		return nil
	}

	prefix := strings.TrimRight(c.paramPrefix, "/")
	pinned, err := c.params.GetParameter(ctx, prefix+"/pinned_instruction")
	if err != nil {
		return fmt.Errorf("usecase: load pinned instruction: %w", err)
	}
	model, err := c.params.GetParameter(ctx, prefix+"/config/openai_model")
	if err != nil {
		return fmt.Errorf("usecase: load openai model: %w", err)
	}

	c.pinnedInstruction = pinned
	c.model = model
	c.cacheLoaded = true
	return nil
}

func buildIntentMessages(pinnedInstruction, text string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: "system", Content: buildClassifierPrompt()},
	}
	if strings.TrimSpace(pinnedInstruction) != "" {
		messages = append(messages, domain.ChatMessage{
			Role:    "system",
			Content: strings.TrimSpace(pinnedInstruction),
		})
	}
	messages = append(messages, domain.ChatMessage{
		Role:    "user",
		Content: text,
	})
	return messages
}

func buildClassifierPrompt() string {
	return strings.Join([]string{
		"Role:",
		`You are "Grocery Deals AI", a specialized grocery deal assistant and Best Value Expert.`,
		"",
		"Strict Guardrails:",
		"You ONLY respond to grocery items, store deals, food offers, and shopping queries.",
		"If the user asks about ANYTHING outside this scope:",
		`1) Set "is_out_of_scope" to true.`,
		`2) Set "reply" to EXACTLY: "` + domain.OutOfScopeReply + `"`,
		"",
		"Smart Category Logic:",
		smartCategoryRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func smartCategoryRules() string {
	return strings.Join([]string{
		"1) 'Almond Milk' is in the 'Beverages' department. If searching for it, set category to 'Beverages' but ALWAYS suggest 'Dairy' in suggested_alternatives because users often confuse the two.",
		"2) If searching for any dairy-alternative or meat-alternative, suggest the corresponding traditional department (e.g. for Tofu, suggest 'Meat & Seafood').",
		"3) If no specific department matches well, use 'all'.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys reply (string), show_offers (boolean), " +
		"is_out_of_scope (boolean), category (one of the listed departments or \"all\"), " +
		"and suggested_alternatives (array of department names, possibly empty). " +
		"reply must never be empty for in-scope questions."
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
