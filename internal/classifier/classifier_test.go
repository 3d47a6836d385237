package classifier

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/clawinfra/clawroute/internal/types"
)

func userRequest(model, text string) *types.ChatRequest {
	content, _ := json.Marshal(text)
	return &types.ChatRequest{
		Model:    model,
		Messages: []types.Message{{Role: "user", Content: content}},
	}
}

func withHistory(req *types.ChatRequest, turns int) *types.ChatRequest {
	content, _ := json.Marshal("earlier turn")
	var history []types.Message
	for i := 0; i < turns; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, types.Message{Role: role, Content: content})
	}
	req.Messages = append(history, req.Messages...)
	return req
}

func TestClassify_HeartbeatWords(t *testing.T) {
	for _, text := range []string{"ping", "Ping!", "status", "are you there?", "can you hear me", "testing"} {
		res := Classify(userRequest("anthropic/claude-sonnet-4-5", text), Options{})
		if res.Tier != types.TierHeartbeat {
			t.Errorf("%q: expected heartbeat, got %s", text, res.Tier)
		}
		if res.Confidence != 0.95 {
			t.Errorf("%q: expected confidence 0.95, got %v", text, res.Confidence)
		}
		if !res.SafeToRetry {
			t.Errorf("%q: heartbeat without tools should be safe to retry", text)
		}
	}
}

func TestClassify_HeartbeatModelName(t *testing.T) {
	res := Classify(userRequest("openai/gpt-4o-heartbeat", "what is the current time in tokyo right now"), Options{})
	if res.Tier != types.TierHeartbeat {
		t.Fatalf("expected heartbeat from model name, got %s", res.Tier)
	}
	if res.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", res.Confidence)
	}
}

func TestClassify_ShortShallowExchange(t *testing.T) {
	res := Classify(userRequest("openai/gpt-4o", "quick sanity check ok"), Options{})
	if res.Tier != types.TierHeartbeat {
		t.Fatalf("expected heartbeat for short shallow message, got %s", res.Tier)
	}
	if res.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", res.Confidence)
	}
}

func TestClassify_Acknowledgment(t *testing.T) {
	for _, text := range []string{"thanks", "sounds good", "👍", "lol"} {
		req := withHistory(userRequest("openai/gpt-4o", text), 4)
		res := Classify(req, Options{})
		if res.Tier != types.TierSimple {
			t.Errorf("%q: expected simple, got %s", text, res.Tier)
		}
	}
}

func TestClassify_ShortQuestion(t *testing.T) {
	res := Classify(userRequest("openai/gpt-4o", "what is the capital of france, and since when?"), Options{})
	if res.Tier != types.TierSimple {
		t.Fatalf("expected simple for short question, got %s", res.Tier)
	}
	if res.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", res.Confidence)
	}
}

func TestClassify_CodeBlockIsFrontier(t *testing.T) {
	res := Classify(userRequest("openai/gpt-4o", "why does this fail?\n```go\npanic(\"boom\")\n```"), Options{})
	if res.Tier != types.TierFrontier {
		t.Fatalf("expected frontier for code block, got %s", res.Tier)
	}
}

func TestClassify_LongEngineeringMessage(t *testing.T) {
	text := "Please refactor the ingestion pipeline. " + strings.Repeat("The current design has several issues worth addressing in detail. ", 20)
	if len(text) <= 1000 {
		t.Fatal("test message must exceed 1000 chars")
	}
	res := Classify(userRequest("openai/gpt-4o", text), Options{})
	if res.Tier != types.TierFrontier {
		t.Fatalf("expected frontier, got %s (reason %s)", res.Tier, res.Reason)
	}
	if res.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", res.Confidence)
	}
}

func TestClassify_KeywordLengthBoundary(t *testing.T) {
	// "compare" matches the complex table and "refactor" the frontier table;
	// which fires depends only on the length boundary: frontier needs
	// strictly more than 1000 chars, complex covers [500, 1000].
	base := "compare the current design, then refactor it. "
	atBoundary := base + strings.Repeat("a", 1000-len(base))
	if len(atBoundary) != 1000 {
		t.Fatalf("boundary message must be exactly 1000 chars, got %d", len(atBoundary))
	}

	res := Classify(userRequest("openai/gpt-4o", atBoundary), Options{})
	if res.Tier != types.TierComplex {
		t.Fatalf("1000 chars: expected complex, got %s (reason %s)", res.Tier, res.Reason)
	}

	res = Classify(userRequest("openai/gpt-4o", atBoundary+"a"), Options{})
	if res.Tier != types.TierFrontier {
		t.Fatalf("1001 chars: expected frontier, got %s (reason %s)", res.Tier, res.Reason)
	}
}

func TestClassify_LargeContextIsFrontier(t *testing.T) {
	req := userRequest("openai/gpt-4o", strings.Repeat("word word word harder ", 2000))
	res := Classify(req, Options{})
	if res.EstimatedTokens <= 8000 {
		t.Fatalf("expected > 8000 estimated tokens, got %d", res.EstimatedTokens)
	}
	if res.Tier != types.TierFrontier {
		t.Fatalf("expected frontier, got %s", res.Tier)
	}
}

func TestClassify_MultimodalIsFrontier(t *testing.T) {
	content := json.RawMessage(`[{"type":"text","text":"what is in this picture"},{"type":"image_url","image_url":{"url":"data:..."}}]`)
	req := &types.ChatRequest{
		Model:    "openai/gpt-4o",
		Messages: []types.Message{{Role: "user", Content: content}},
	}
	res := Classify(req, Options{})
	if res.Tier != types.TierFrontier {
		t.Fatalf("expected frontier for image content, got %s", res.Tier)
	}
}

func TestClassify_ToolChoiceIsFrontier(t *testing.T) {
	req := userRequest("openai/gpt-4o", "look up the weather in berlin please, in celsius")
	req.Tools = []types.Tool{{Type: "function", Function: types.ToolFunction{Name: "get_weather"}}}
	req.ToolChoice = json.RawMessage(`"auto"`)
	res := Classify(req, Options{})
	if res.Tier != types.TierFrontier {
		t.Fatalf("expected frontier for explicit tool choice, got %s", res.Tier)
	}
	if res.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", res.Confidence)
	}
}

func TestClassify_ToolChoiceNoneDoesNotForceFrontier(t *testing.T) {
	req := withHistory(userRequest("openai/gpt-4o", "summarize our discussion in a few medium-length paragraphs for the team"), 4)
	req.Tools = []types.Tool{{Type: "function", Function: types.ToolFunction{Name: "get_weather"}}}
	req.ToolChoice = json.RawMessage(`"none"`)
	res := Classify(req, Options{})
	if res.Tier != types.TierComplex {
		t.Fatalf("expected complex for tools without active tool_choice, got %s", res.Tier)
	}
}

func TestClassify_ComplexKeywords(t *testing.T) {
	text := "Please compare the tradeoffs between the two storage engines we discussed. " +
		strings.Repeat("Consider durability, operational cost, and latency in your answer. ", 8)
	if len(text) < 500 || len(text) > 1000 {
		t.Fatalf("test message must be 500-1000 chars, got %d", len(text))
	}
	req := withHistory(userRequest("openai/gpt-4o", text), 2)
	res := Classify(req, Options{})
	if res.Tier != types.TierComplex {
		t.Fatalf("expected complex, got %s (reason %s)", res.Tier, res.Reason)
	}
}

func TestClassify_DeepHistoryIsComplex(t *testing.T) {
	req := withHistory(userRequest("openai/gpt-4o", "and what about the second point you made earlier in this conversation today"), 10)
	res := Classify(req, Options{})
	if res.Tier != types.TierComplex {
		t.Fatalf("expected complex for deep history, got %s", res.Tier)
	}
}

func TestClassify_DefaultIsModerate(t *testing.T) {
	req := withHistory(userRequest("openai/gpt-4o", "tell me something interesting about the history of venice that most people do not know"), 4)
	res := Classify(req, Options{})
	if res.Tier != types.TierModerate {
		t.Fatalf("expected moderate default, got %s (reason %s)", res.Tier, res.Reason)
	}
	if res.Reason != "general conversation" {
		t.Errorf("expected default reason, got %q", res.Reason)
	}
}

func TestClassify_ToolsNeverSafeToRetry(t *testing.T) {
	texts := []string{"ping", "thanks", "what is the weather like today?"}
	for _, text := range texts {
		req := userRequest("openai/gpt-4o", text)
		req.Tools = []types.Tool{{Type: "function", Function: types.ToolFunction{Name: "f"}}}
		res := Classify(req, Options{})
		if res.SafeToRetry {
			t.Errorf("%q with tools: SafeToRetry must be false", text)
		}
		if !res.ToolsDetected {
			t.Errorf("%q with tools: ToolsDetected must be true", text)
		}
	}
}

func TestClassify_ToolAwareEscalation(t *testing.T) {
	req := userRequest("openai/gpt-4o", "ping")
	req.Tools = []types.Tool{{Type: "function", Function: types.ToolFunction{Name: "f"}}}
	res := Classify(req, Options{ToolAwareEscalation: true})
	if res.Tier != types.TierComplex {
		t.Fatalf("expected escalation to complex, got %s", res.Tier)
	}
	if res.Confidence > 0.8 {
		t.Errorf("expected confidence capped at 0.8, got %v", res.Confidence)
	}
}

func TestClassify_ConservativeBumpThenFrontierJump(t *testing.T) {
	// The default path has confidence 0.5: below min_confidence 0.6, so one
	// bump fires; not below 0.5, so no frontier jump.
	req := withHistory(userRequest("openai/gpt-4o", "tell me something about rivers in south america and their seasonal behavior"), 4)
	res := Classify(req, Options{ConservativeMode: true, MinConfidence: 0.6})
	if res.Tier != types.TierComplex {
		t.Fatalf("expected one-step bump to complex, got %s", res.Tier)
	}

	// With min_confidence 1.0 everything bumps; still no frontier jump at 0.8.
	res = Classify(userRequest("openai/gpt-4o", "what is the capital of france, and since when?"), Options{ConservativeMode: true, MinConfidence: 1.0})
	if res.Tier != types.TierModerate {
		t.Fatalf("expected simple bumped to moderate, got %s", res.Tier)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	req := userRequest("anthropic/claude-sonnet-4-5", strings.Repeat("analyze this system carefully. ", 300))
	opts := Options{ToolAwareEscalation: true, ConservativeMode: true, MinConfidence: 0.7}

	first := Classify(req, opts)
	second := Classify(req, opts)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("classification not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestClassify_FastOnLargeInput(t *testing.T) {
	req := userRequest("openai/gpt-4o", strings.Repeat("x", 10*1024))
	const iterations = 50

	start := time.Now()
	for i := 0; i < iterations; i++ {
		Classify(req, Options{})
	}
	perCall := time.Since(start) / iterations
	if perCall > 5*time.Millisecond {
		t.Errorf("classification took %v per call on 10KB input, want <= 5ms", perCall)
	}
}

func TestEstimateTokens(t *testing.T) {
	req := userRequest("openai/gpt-4o", strings.Repeat("a", 400))
	got := EstimateTokens(req)
	// ceil(400/4) + 4 per message envelope.
	if got != 104 {
		t.Errorf("expected 104 tokens, got %d", got)
	}

	req.Messages = append(req.Messages, types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{{
			Function: types.ToolCallFunction{Name: "get_weather", Arguments: `{"city":"berlin"}`},
		}},
	})
	got = EstimateTokens(req)
	// +4 envelope, +ceil((11+17)/4)=7 for the tool call.
	if got != 115 {
		t.Errorf("expected 115 tokens, got %d", got)
	}
}
