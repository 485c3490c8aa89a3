package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"budget/internal/core"
	"budget/internal/llmjson"
	applog "budget/internal/log"
)

var errNoInsights = errors.New("reply carries no insights or recommendations")

// InsightClient turns a transaction collection into advisory insights.
type InsightClient struct {
	client  *Client
	agentID string
	logger  *applog.Logger
}

func NewInsightClient(c *Client, agentID string, logger *applog.Logger) *InsightClient {
	if logger == nil {
		logger = applog.Default(applog.ComponentInsights)
	}
	return &InsightClient{client: c, agentID: agentID, logger: logger}
}

// Generate asks the agent for insights over txs in the given window. It never
// fails: any error yields a single locally computed spending overview.
func (ic *InsightClient) Generate(ctx context.Context, txs []core.Transaction, w core.Window) []core.Insight {
	if !w.IsValid() {
		w = core.Weekly
	}

	out, err := ic.generate(ctx, txs, w)
	if err != nil {
		ic.logger.WarnContext(ctx, "Insight generation failed, using fallback",
			applog.FieldOperation, applog.OpGenerate,
			applog.FieldWindow, w,
			applog.FieldCount, len(txs),
			applog.FieldError, err)
		return []core.Insight{core.FallbackInsight(txs, w)}
	}

	ic.logger.InfoContext(ctx, "Generated insights",
		applog.FieldOperation, applog.OpGenerate,
		applog.FieldWindow, w,
		applog.FieldCount, len(out))
	return out
}

func (ic *InsightClient) generate(ctx context.Context, txs []core.Transaction, w core.Window) ([]core.Insight, error) {
	if txs == nil {
		txs = []core.Transaction{}
	}
	data, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("marshal transactions: %w", err)
	}

	msg := fmt.Sprintf("Analyze these transactions for %s insights and recommendations: %s", w, data)
	reply, err := ic.client.Chat(ctx, ic.agentID, msg)
	if err != nil {
		return nil, err
	}
	return ParseInsights(reply)
}

type insightsBody struct {
	Insights        []json.RawMessage `json:"insights"`
	Recommendations []json.RawMessage `json:"recommendations"`
}

// ParseInsights extracts insights and recommendations from a model reply.
// Both arrays must be present, optionally wrapped in a "result" envelope.
// JSON values of another shape earlier in the reply are skipped.
func ParseInsights(reply string) ([]core.Insight, error) {
	var body insightsBody
	_, found := llmjson.Find(reply, func(raw json.RawMessage) bool {
		body = insightsBody{}
		if err := json.Unmarshal(llmjson.Unwrap(raw), &body); err != nil {
			return false
		}
		return body.Insights != nil && body.Recommendations != nil
	})
	if !found {
		if _, ok := llmjson.Extract(reply); !ok {
			return nil, errors.New("no JSON found in reply")
		}
		return nil, errNoInsights
	}

	out := make([]core.Insight, 0, len(body.Insights)+len(body.Recommendations))
	for _, el := range body.Insights {
		out = append(out, toInsight(el, core.KindInsight, "Financial Insight"))
	}
	for _, el := range body.Recommendations {
		out = append(out, toInsight(el, core.KindRecommendation, "Recommendation"))
	}
	return out, nil
}

// toInsight accepts an object with title/description/severity or a bare
// value, which becomes the description.
func toInsight(el json.RawMessage, kind core.InsightKind, defaultTitle string) core.Insight {
	in := core.Insight{Type: kind, Title: defaultTitle, Severity: core.SeverityMedium}

	var obj struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
	}
	if err := json.Unmarshal(el, &obj); err == nil {
		if t := strings.TrimSpace(obj.Title); t != "" {
			in.Title = t
		}
		in.Description = strings.TrimSpace(obj.Description)
		if sev := core.Severity(strings.ToLower(strings.TrimSpace(obj.Severity))); sev.IsValid() {
			in.Severity = sev
		}
		if in.Description == "" {
			in.Description = string(el)
		}
		return in
	}

	var s string
	if err := json.Unmarshal(el, &s); err == nil {
		in.Description = s
		return in
	}
	in.Description = string(el)
	return in
}
