// Package classifier assigns a complexity tier to each request. Classify is
// a pure function over static pattern tables: no network, no disk, no state.
package classifier

import (
	"strings"

	"github.com/clawinfra/clawroute/internal/types"
)

// Options are the classification knobs carried in configuration.
type Options struct {
	ToolAwareEscalation bool
	ConservativeMode    bool
	MinConfidence       float64
}

const (
	shortMessageChars  = 30
	shallowHistoryMax  = 2
	shortQuestionChars = 80
	frontierMinChars   = 1000
	complexMinChars    = 500
	frontierTokens     = 8000
	complexTokens      = 4000
)

// Classify determines the tier, confidence, and retry safety for a request.
func Classify(req *types.ChatRequest, opts Options) types.ClassificationResult {
	res := types.ClassificationResult{
		Tier:       types.TierModerate,
		Confidence: 0.5,
		Reason:     "general conversation",
	}

	lastUser := strings.TrimSpace(req.LastUserText())
	msgCount := len(req.Messages)
	res.ToolsDetected = len(req.Tools) > 0
	res.EstimatedTokens = EstimateTokens(req)

	// Model-name hint.
	if heartbeatModelHint.MatchString(req.Model) {
		res.Tier = types.TierHeartbeat
		res.Confidence = 0.85
		res.Reason = "heartbeat model name"
		res.Signals = append(res.Signals, "model_name_hint")
	}

	// Heartbeat message patterns.
	if isHeartbeatPhrase(lastUser) {
		res.Tier = types.TierHeartbeat
		res.Confidence = 0.95
		res.Reason = "heartbeat phrase"
		res.Signals = append(res.Signals, "heartbeat_phrase")
	} else if len(lastUser) < shortMessageChars && msgCount <= shallowHistoryMax && !res.ToolsDetected && res.Tier != types.TierHeartbeat {
		res.Tier = types.TierHeartbeat
		res.Confidence = 0.8
		res.Reason = "short shallow exchange"
		res.Signals = append(res.Signals, "short_shallow")
	}

	// Frontier signals override any tentative tier.
	switch {
	case res.ToolsDetected && req.ToolChoiceActive():
		res.Tier = types.TierFrontier
		res.Confidence = 0.9
		res.Reason = "explicit tool choice"
		res.Signals = append(res.Signals, "tool_choice")
	case strings.Contains(lastUser, "```"):
		res.Tier = types.TierFrontier
		res.Confidence = 0.85
		res.Reason = "fenced code block"
		res.Signals = append(res.Signals, "code_block")
	case len(lastUser) > frontierMinChars && frontierKeywords.MatchString(lastUser):
		res.Tier = types.TierFrontier
		res.Confidence = 0.8
		res.Reason = "long message with engineering keywords"
		res.Signals = append(res.Signals, "frontier_keywords")
	case res.EstimatedTokens > frontierTokens:
		res.Tier = types.TierFrontier
		res.Confidence = 0.75
		res.Reason = "large context"
		res.Signals = append(res.Signals, "high_token_count")
	case req.HasImageContent():
		res.Tier = types.TierFrontier
		res.Confidence = 0.8
		res.Reason = "multimodal content"
		res.Signals = append(res.Signals, "multimodal")
	}

	// Complex signals apply only when nothing stronger fired.
	if res.Tier == types.TierModerate {
		switch {
		case res.ToolsDetected:
			res.Tier = types.TierComplex
			res.Confidence = 0.85
			res.Reason = "tools defined"
			res.Signals = append(res.Signals, "tools_present")
		case len(lastUser) >= complexMinChars && len(lastUser) <= frontierMinChars && complexKeywords.MatchString(lastUser):
			res.Tier = types.TierComplex
			res.Confidence = 0.8
			res.Reason = "analytical request"
			res.Signals = append(res.Signals, "complex_keywords")
		case msgCount > 8:
			res.Tier = types.TierComplex
			res.Confidence = 0.75
			res.Reason = "deep conversation history"
			res.Signals = append(res.Signals, "deep_history")
		case res.EstimatedTokens >= complexTokens && res.EstimatedTokens <= frontierTokens:
			res.Tier = types.TierComplex
			res.Confidence = 0.7
			res.Reason = "medium context"
			res.Signals = append(res.Signals, "medium_token_count")
		}
	}

	// Simple patterns, only when still at the default.
	if res.Tier == types.TierModerate {
		switch {
		case isAcknowledgment(lastUser):
			res.Tier = types.TierSimple
			res.Confidence = 0.9
			res.Reason = "acknowledgment"
			res.Signals = append(res.Signals, "acknowledgment")
		case len(lastUser) < shortQuestionChars && strings.HasSuffix(lastUser, "?") && msgCount <= shallowHistoryMax:
			res.Tier = types.TierSimple
			res.Confidence = 0.8
			res.Reason = "short question"
			res.Signals = append(res.Signals, "short_question")
		}
	}

	// Tool-aware escalation: tool-bearing requests get at least Complex.
	if opts.ToolAwareEscalation && res.ToolsDetected && res.Tier < types.TierComplex {
		res.Tier = types.TierComplex
		if res.Confidence > 0.8 {
			res.Confidence = 0.8
		}
		res.Reason = "tool-aware escalation"
		res.Signals = append(res.Signals, "tool_escalation")
	}

	// Conservative mode: the one-step bump applies first, then the direct
	// jump to Frontier below 0.5.
	if opts.ConservativeMode {
		if res.Confidence < opts.MinConfidence {
			res.Tier = res.Tier.Bump()
			res.Signals = append(res.Signals, "conservative_bump")
		}
		if res.Confidence < 0.5 {
			res.Tier = types.TierFrontier
			res.Signals = append(res.Signals, "conservative_frontier")
		}
	}

	// Retries are only safe for trivial tiers with no tools in play; a
	// repeated execution of a tool-bearing request could duplicate side
	// effects.
	res.SafeToRetry = (res.Tier == types.TierHeartbeat || res.Tier == types.TierSimple) && !res.ToolsDetected

	return res
}

func isHeartbeatPhrase(s string) bool {
	if s == "" {
		return false
	}
	if heartbeatWords[strings.ToLower(trimTrailingPunct(s))] {
		return true
	}
	return areYouPattern.MatchString(s) || checkInPattern.MatchString(s)
}

func isAcknowledgment(s string) bool {
	if s == "" {
		return false
	}
	if ackWords[strings.ToLower(trimTrailingPunct(s))] {
		return true
	}
	return ackEmoji[strings.TrimSpace(s)]
}
