package types

import (
	"encoding/json"
	"strings"
)

// ChatRequest is the incoming OpenAI-style chat-completions request.
// Recognized fields are typed; everything else lands in extra and
// round-trips unchanged to the provider.
type ChatRequest struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	Tools       []Tool          `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`

	extra map[string]json.RawMessage
}

var chatRequestKnownKeys = map[string]bool{
	"model":       true,
	"messages":    true,
	"tools":       true,
	"tool_choice": true,
	"stream":      true,
	"temperature": true,
	"max_tokens":  true,
}

func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type alias ChatRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if chatRequestKnownKeys[k] {
			delete(raw, k)
		}
	}
	if len(raw) > 0 {
		a.extra = raw
	}

	*r = ChatRequest(a)
	return nil
}

func (r ChatRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.extra)+7)
	for k, v := range r.extra {
		out[k] = v
	}

	put := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}

	if err := put("model", r.Model); err != nil {
		return nil, err
	}
	if err := put("messages", r.Messages); err != nil {
		return nil, err
	}
	if len(r.Tools) > 0 {
		if err := put("tools", r.Tools); err != nil {
			return nil, err
		}
	}
	if len(r.ToolChoice) > 0 {
		out["tool_choice"] = r.ToolChoice
	}
	if r.Stream {
		if err := put("stream", r.Stream); err != nil {
			return nil, err
		}
	}
	if r.Temperature != nil {
		if err := put("temperature", r.Temperature); err != nil {
			return nil, err
		}
	}
	if r.MaxTokens != nil {
		if err := put("max_tokens", r.MaxTokens); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

// WithModel returns a shallow copy of the request with the model replaced.
func (r ChatRequest) WithModel(model string) ChatRequest {
	r.Model = model
	return r
}

// ToolChoiceActive reports whether tool_choice is present and not "none".
func (r *ChatRequest) ToolChoiceActive() bool {
	if len(r.ToolChoice) == 0 {
		return false
	}
	return strings.TrimSpace(string(r.ToolChoice)) != `"none"`
}

// LastUserText returns the text content of the last user-role message.
func (r *ChatRequest) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Text()
		}
	}
	return ""
}

// HasImageContent reports whether any message carries multimodal image parts.
func (r *ChatRequest) HasImageContent() bool {
	for _, m := range r.Messages {
		if m.hasImagePart() {
			return true
		}
	}
	return false
}

// Message is one conversation turn. Content may be a plain string or an
// array of multimodal content parts, so it stays raw until inspected.
type Message struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// Text extracts the textual content: the string itself, or the concatenated
// text parts of a multimodal array.
func (m *Message) Text() string {
	if len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var parts []contentPart
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (m *Message) hasImagePart() bool {
	if len(m.Content) == 0 {
		return false
	}
	var parts []contentPart
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return false
	}
	for _, p := range parts {
		if p.Type == "image_url" || p.Type == "input_image" {
			return true
		}
	}
	return false
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Tool is an OpenAI-style function tool definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall is a model-produced function invocation.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
