package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Phraser renders one insight as display text. Phrasing is presentation
// only; a failing phraser never invalidates the structured insight.
type Phraser interface {
	Phrase(ins Insight) (string, error)
}

// TemplatePhraser is the deterministic fallback phraser.
type TemplatePhraser struct{}

// Phrase implements Phraser.
func (TemplatePhraser) Phrase(ins Insight) (string, error) {
	switch ins.Category {
	case CategoryMenu:
		return fmt.Sprintf("Rework %s: %s. Estimated upside $%s.",
			ins.Subject, ins.Justification, ins.DollarImpact.StringFixed(2)), nil
	case CategoryStockout:
		return fmt.Sprintf("Reorder %s now: %s. Estimated margin at risk $%s.",
			ins.Subject, ins.Justification, ins.DollarImpact.StringFixed(2)), nil
	case CategoryOverstock:
		return fmt.Sprintf("Run down stock of %s: %s. Estimated carrying cost $%s.",
			ins.Subject, ins.Justification, ins.DollarImpact.StringFixed(2)), nil
	case CategoryForecast:
		return fmt.Sprintf("Staff up for %s: %s. Estimated opportunity $%s.",
			ins.Subject, ins.Justification, ins.DollarImpact.StringFixed(2)), nil
	default:
		return fmt.Sprintf("%s: %s ($%s)", ins.Subject, ins.Justification, ins.DollarImpact.StringFixed(2)), nil
	}
}

// LLMPhraser phrases insights through a language model. The numbers are
// computed upstream; the model only rewords them.
type LLMPhraser struct {
	llm     llms.Model
	timeout time.Duration
}

// NewLLMPhraser wraps a language model as a Phraser.
func NewLLMPhraser(llm llms.Model, timeout time.Duration) *LLMPhraser {
	return &LLMPhraser{llm: llm, timeout: timeout}
}

// Phrase implements Phraser.
func (p *LLMPhraser) Phrase(ins Insight) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Rewrite this restaurant operations finding as one short actionable sentence for a manager. "+
			"Keep every number unchanged.\nCategory: %s\nSubject: %s\nFinding: %s\nEstimated impact: $%s",
		ins.Category, ins.Subject, ins.Justification, ins.DollarImpact.StringFixed(2))

	out, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("llm phrasing failed: %w", err)
	}
	text := strings.TrimSpace(out)
	if text == "" {
		return "", fmt.Errorf("llm phrasing returned empty text")
	}
	return text, nil
}
