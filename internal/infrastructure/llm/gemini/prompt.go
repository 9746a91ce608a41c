package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
)

// The combined notification text must fit a single Telegram message,
// so the model is told to budget its output.
const targetCharLimit = 2800

func buildSummaryPrompt(company string, prior *domain.Payload) string {
	prompt := fmt.Sprintf(`You are an equity research analyst. Analyze this earnings call for %s and return a strict JSON object with exactly these keys:
executive_summary (string, 2-3 sentences),
key_takeaway (string, the single most important point),
sentiment (string, one of: Positive, Neutral, Negative),
management_tone (string, one short phrase),
key_financials (array of strings, each one metric with its number),
strategic_outlook (array of strings),
risks_and_concerns (array of strings),
key_qa_highlights (array of strings, the sharpest analyst questions and answers).

Keep the total output under %d characters. No markdown, no code fences, no extra keys.`, company, targetCharLimit)

	if prior != nil {
		priorJSON, err := json.Marshal(prior)
		if err == nil {
			prompt += fmt.Sprintf(`

Additionally include the key comparison_with_previous_call (string, 2-3 sentences): compare this call against the previous call summarized below. Call out guidance changes, tone shifts and metric deltas.

Previous call summary:
%s`, priorJSON)
		}
	}
	return prompt
}

// buildHistoricalPrompt asks for the reduced shape cached for
// comparisons only; it is never delivered to subscribers. The
// comparison instruction leans on the prior outlook and risks, so both
// must be captured here.
func buildHistoricalPrompt(company string) string {
	return fmt.Sprintf(`You are an equity research analyst. Summarize this past earnings call for %s and return a strict JSON object with exactly these keys:
executive_summary (string, 2-3 sentences),
key_financials (array of strings, each one metric with its number),
strategic_outlook (array of strings),
risks_and_concerns (array of strings).

Be brief. No markdown, no code fences, no extra keys.`, company)
}
