package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"budget/internal/cache"
	"budget/internal/llmjson"
	applog "budget/internal/log"
)

// CategoryClient suggests a category for a free-text description.
type CategoryClient struct {
	client  *Client
	agentID string
	cache   cache.Cache[string]
	group   singleflight.Group
	logger  *applog.Logger
}

// NewCategoryClient creates a client. cache may be nil to disable caching.
func NewCategoryClient(c *Client, agentID string, suggestions cache.Cache[string], logger *applog.Logger) *CategoryClient {
	if logger == nil {
		logger = applog.Default(applog.ComponentSuggestion)
	}
	return &CategoryClient{client: c, agentID: agentID, cache: suggestions, logger: logger}
}

// Suggest returns the agent's primary suggestion for description. The bool is
// false when there is no suggestion; failures are logged, never returned.
func (cc *CategoryClient) Suggest(ctx context.Context, description string) (string, bool) {
	key := cache.NormalizeKey(description)
	if key == "" {
		return "", false
	}

	if cc.cache != nil {
		if cat, ok := cc.cache.Get(key); ok {
			return cat, true
		}
	}

	// Identical in-flight requests share one remote call.
	v, err, shared := cc.group.Do(key, func() (any, error) {
		return cc.suggest(ctx, strings.TrimSpace(description))
	})
	if err != nil {
		cc.logger.WarnContext(ctx, "Category suggestion failed",
			applog.FieldOperation, applog.OpSuggest,
			applog.FieldDescription, description,
			applog.FieldError, err)
		return "", false
	}

	cat := v.(string)
	if cc.cache != nil {
		cc.cache.Set(key, cat)
	}
	cc.logger.DebugContext(ctx, "Category suggested",
		applog.FieldCategory, cat,
		"shared", shared)
	return cat, true
}

func (cc *CategoryClient) suggest(ctx context.Context, description string) (string, error) {
	msg := fmt.Sprintf("Suggest the best category for this transaction description: \"%s\"", description)
	reply, err := cc.client.Chat(ctx, cc.agentID, msg)
	if err != nil {
		return "", err
	}
	return ParseSuggestion(reply)
}

// ParseSuggestion extracts primary_suggestion from a model reply, optionally
// wrapped in a "result" envelope.
func ParseSuggestion(reply string) (string, error) {
	var cat string
	_, found := llmjson.Find(reply, func(raw json.RawMessage) bool {
		var body struct {
			PrimarySuggestion string `json:"primary_suggestion"`
		}
		if err := json.Unmarshal(llmjson.Unwrap(raw), &body); err != nil {
			return false
		}
		cat = strings.TrimSpace(body.PrimarySuggestion)
		return cat != ""
	})
	if !found {
		if _, ok := llmjson.Extract(reply); !ok {
			return "", errors.New("no JSON found in reply")
		}
		return "", errors.New("reply carries no primary_suggestion")
	}
	return cat, nil
}
