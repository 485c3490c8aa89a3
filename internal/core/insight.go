package core

import "fmt"

const (
	KindInsight        InsightKind = "insight"
	KindRecommendation InsightKind = "recommendation"
)

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type (
	InsightKind string
	Severity    string

	// Insight is a short advisory item, generated remotely or computed locally.
	Insight struct {
		Type        InsightKind `json:"type"`
		Title       string      `json:"title"`
		Description string      `json:"description"`
		Severity    Severity    `json:"severity"`
	}
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// FallbackInsight summarizes total expenses for the window without any
// remote call.
func FallbackInsight(txs []Transaction, w Window) Insight {
	if !w.IsValid() {
		w = Weekly
	}
	return Insight{
		Type:        KindInsight,
		Title:       "Spending Overview",
		Description: fmt.Sprintf("Your total %s spending is $%s", w, TotalExpenses(txs)),
		Severity:    SeverityMedium,
	}
}
