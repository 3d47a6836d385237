package executor

import (
	"encoding/json"

	"github.com/clawinfra/clawroute/internal/types"
)

// usageFromBody pulls token counts out of a non-streaming body, best-effort.
func usageFromBody(body []byte) (in, out int) {
	var resp types.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Usage == nil {
		return 0, 0
	}
	return resp.Usage.PromptTokens, resp.Usage.CompletionTokens
}

// outputEstimateFromBody approximates completion tokens from content length
// when the provider omitted usage.
func outputEstimateFromBody(body []byte) int {
	var resp types.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return 0
	}
	return ceilDiv(len(resp.Choices[0].Message.Text()), 4)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
