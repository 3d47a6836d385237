package classifier

import "github.com/clawinfra/clawroute/internal/types"

// messageOverheadTokens approximates the per-message envelope cost of the
// chat format.
const messageOverheadTokens = 4

// EstimateTokens is a character-count heuristic: roughly four characters per
// token plus a fixed envelope per message, plus tool-call names and
// arguments. It deliberately avoids real tokenizers in the hot path.
func EstimateTokens(req *types.ChatRequest) int {
	chars := 0
	toolCallChars := 0
	for i := range req.Messages {
		m := &req.Messages[i]
		chars += len(m.Text())
		for _, tc := range m.ToolCalls {
			toolCallChars += len(tc.Function.Name) + len(tc.Function.Arguments)
		}
	}
	tokens := ceilDiv(chars, 4)
	tokens += messageOverheadTokens * len(req.Messages)
	tokens += ceilDiv(toolCallChars, 4)
	return tokens
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
