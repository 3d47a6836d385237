package executor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clawinfra/clawroute/internal/types"
)

// Validation is the verdict on a non-streaming upstream body.
type Validation struct {
	Valid        bool
	Reason       string
	HadToolCalls bool
}

// Cheap models occasionally stall with a near-empty completion; anything this
// short on a non-heartbeat tier is treated as a failed answer.
const suspiciousContentMax = 14

// Validate runs the pure checks on an upstream response. It never mutates
// the body; the raw bytes are what the client receives.
func Validate(status int, body []byte, req *types.ChatRequest, tier types.Tier) Validation {
	if status < 200 || status > 299 {
		return Validation{Reason: fmt.Sprintf("http_error_%d", status)}
	}

	var resp types.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Validation{Reason: "invalid_json_body"}
	}

	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return Validation{Reason: "api_error_response"}
	}

	if len(resp.Choices) == 0 {
		return Validation{Reason: "missing_choices"}
	}
	msg := resp.Choices[0].Message
	if msg == nil {
		return Validation{Reason: "missing_message"}
	}

	if len(msg.ToolCalls) > 0 {
		if len(req.Tools) > 0 {
			declared := make(map[string]bool, len(req.Tools))
			for _, t := range req.Tools {
				declared[t.Function.Name] = true
			}
			for _, tc := range msg.ToolCalls {
				if !declared[tc.Function.Name] {
					return Validation{Reason: "unknown_tool_name:" + tc.Function.Name, HadToolCalls: true}
				}
				args := tc.Function.Arguments
				if args != "" && args != "{}" && !json.Valid([]byte(args)) {
					return Validation{Reason: "invalid_tool_call_json", HadToolCalls: true}
				}
			}
		}
		return Validation{Valid: true, HadToolCalls: true}
	}

	if tier != types.TierHeartbeat {
		content := strings.TrimSpace(msg.Text())
		if n := len(content); n >= 1 && n <= suspiciousContentMax {
			return Validation{Reason: "suspiciously_short_response"}
		}
	}

	return Validation{Valid: true}
}
