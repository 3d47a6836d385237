// Package catalog resolves model ids to pricing and capability records and
// knows how each provider is addressed and authenticated.
package catalog

import (
	"math"
	"strings"
)

// ModelEntry describes one upstream model.
type ModelEntry struct {
	ID                   string
	Provider             string
	InputCostPerMillion  float64
	OutputCostPerMillion float64
	MaxContext           int
	ToolCapable          bool
	Multimodal           bool
	Enabled              bool
}

// Unknown models are costed at the high-tier default so estimated savings
// against them are never inflated.
const (
	DefaultInputCostPerMillion  = 3.00
	DefaultOutputCostPerMillion = 15.00
)

var models = map[string]ModelEntry{
	"google/gemini-2.5-flash-lite": {ID: "google/gemini-2.5-flash-lite", Provider: ProviderGoogle, InputCostPerMillion: 0.10, OutputCostPerMillion: 0.40, MaxContext: 1048576, ToolCapable: true, Multimodal: true, Enabled: true},
	"google/gemini-2.5-flash":      {ID: "google/gemini-2.5-flash", Provider: ProviderGoogle, InputCostPerMillion: 0.30, OutputCostPerMillion: 2.50, MaxContext: 1048576, ToolCapable: true, Multimodal: true, Enabled: true},
	"google/gemini-2.5-pro":        {ID: "google/gemini-2.5-pro", Provider: ProviderGoogle, InputCostPerMillion: 1.25, OutputCostPerMillion: 10.00, MaxContext: 1048576, ToolCapable: true, Multimodal: true, Enabled: true},
	"openai/gpt-4o-mini":           {ID: "openai/gpt-4o-mini", Provider: ProviderOpenAI, InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60, MaxContext: 128000, ToolCapable: true, Multimodal: true, Enabled: true},
	"openai/gpt-4o":                {ID: "openai/gpt-4o", Provider: ProviderOpenAI, InputCostPerMillion: 2.50, OutputCostPerMillion: 10.00, MaxContext: 128000, ToolCapable: true, Multimodal: true, Enabled: true},
	"openai/o1":                    {ID: "openai/o1", Provider: ProviderOpenAI, InputCostPerMillion: 15.00, OutputCostPerMillion: 60.00, MaxContext: 200000, ToolCapable: true, Multimodal: true, Enabled: true},
	"deepseek/deepseek-chat":       {ID: "deepseek/deepseek-chat", Provider: ProviderDeepSeek, InputCostPerMillion: 0.27, OutputCostPerMillion: 1.10, MaxContext: 65536, ToolCapable: true, Multimodal: false, Enabled: true},
	"deepseek/deepseek-reasoner":   {ID: "deepseek/deepseek-reasoner", Provider: ProviderDeepSeek, InputCostPerMillion: 0.55, OutputCostPerMillion: 2.19, MaxContext: 65536, ToolCapable: false, Multimodal: false, Enabled: true},
	"anthropic/claude-haiku-4-5":   {ID: "anthropic/claude-haiku-4-5", Provider: ProviderAnthropic, InputCostPerMillion: 1.00, OutputCostPerMillion: 5.00, MaxContext: 200000, ToolCapable: true, Multimodal: true, Enabled: true},
	"anthropic/claude-sonnet-4-5":  {ID: "anthropic/claude-sonnet-4-5", Provider: ProviderAnthropic, InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00, MaxContext: 200000, ToolCapable: true, Multimodal: true, Enabled: true},
	"anthropic/claude-opus-4-1":    {ID: "anthropic/claude-opus-4-1", Provider: ProviderAnthropic, InputCostPerMillion: 15.00, OutputCostPerMillion: 75.00, MaxContext: 200000, ToolCapable: true, Multimodal: true, Enabled: true},
	"openrouter/auto":              {ID: "openrouter/auto", Provider: ProviderOpenRouter, InputCostPerMillion: 2.00, OutputCostPerMillion: 10.00, MaxContext: 128000, ToolCapable: true, Multimodal: false, Enabled: true},
}

// Lookup resolves a model id to its catalog entry. Resolution order: exact
// match, then suffix match against the provider/name form, then a
// case-insensitive substring match. The last two are best-effort so
// unregistered aliases still find pricing.
func Lookup(modelID string) (ModelEntry, bool) {
	if e, ok := models[modelID]; ok {
		return e, true
	}
	for id, e := range models {
		if strings.HasSuffix(id, "/"+modelID) {
			return e, true
		}
	}
	lower := strings.ToLower(modelID)
	for id, e := range models {
		if strings.Contains(strings.ToLower(id), lower) || strings.Contains(lower, strings.ToLower(bareName(id))) {
			return e, true
		}
	}
	return ModelEntry{}, false
}

// Provider derives the provider for a model id. A known provider/ prefix
// wins; otherwise the name is matched against provider-specific substrings;
// otherwise openai is assumed.
func Provider(modelID string) string {
	if i := strings.IndexByte(modelID, '/'); i > 0 {
		prefix := strings.ToLower(modelID[:i])
		if KnownProvider(prefix) {
			return prefix
		}
	}
	lower := strings.ToLower(modelID)
	switch {
	case strings.Contains(lower, "claude"):
		return ProviderAnthropic
	case strings.Contains(lower, "gpt"), strings.Contains(lower, "o1"), strings.Contains(lower, "o3"):
		return ProviderOpenAI
	case strings.Contains(lower, "gemini"):
		return ProviderGoogle
	case strings.Contains(lower, "deepseek"):
		return ProviderDeepSeek
	default:
		return ProviderOpenAI
	}
}

// BareName strips the provider/ prefix for the upstream wire format.
func BareName(modelID string) string {
	return bareName(modelID)
}

func bareName(modelID string) string {
	if i := strings.IndexByte(modelID, '/'); i >= 0 {
		return modelID[i+1:]
	}
	return modelID
}

// Cost computes the USD cost of a token exchange against a model.
func Cost(modelID string, inputTokens, outputTokens int) float64 {
	in, out := DefaultInputCostPerMillion, DefaultOutputCostPerMillion
	if e, ok := Lookup(modelID); ok {
		in, out = e.InputCostPerMillion, e.OutputCostPerMillion
	}
	cost := float64(inputTokens)/1e6*in + float64(outputTokens)/1e6*out
	return math.Max(0, cost)
}
