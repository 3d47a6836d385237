// Package executor obtains a single client-safe response from the provider
// fleet. It owns the retry/escalation loop and the streaming pass-through,
// under three hard rules: a committed stream is never retried, a tool call
// is never retried, and an exhausted request falls back to the client's
// original model before surfacing an error.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/clawinfra/clawroute/internal/catalog"
	"github.com/clawinfra/clawroute/internal/config"
	"github.com/clawinfra/clawroute/internal/router"
	"github.com/clawinfra/clawroute/internal/types"
)

// UpstreamResponse is a fully-read provider response. Body is returned to
// the client byte-for-byte.
type UpstreamResponse struct {
	StatusCode int
	Body       []byte
}

type Executor struct {
	dispatcher *Dispatcher
	router     *router.Router
	health     *router.ProviderHealth
	cfg        func() *config.Config
	logger     *slog.Logger
}

func New(dispatcher *Dispatcher, rt *router.Router, health *router.ProviderHealth, cfg func() *config.Config, logger *slog.Logger) *Executor {
	return &Executor{
		dispatcher: dispatcher,
		router:     rt,
		health:     health,
		cfg:        cfg,
		logger:     logger,
	}
}

// Execute serves a non-streaming request: a bounded attempt loop starting at
// the routed model, escalating one tier per retriable failure, with a final
// one-shot fallback to the original model when everything else is exhausted.
func (e *Executor) Execute(ctx context.Context, req *types.ChatRequest, decision types.RoutingDecision, estInputTokens int) (*UpstreamResponse, *types.ExecutionResult, error) {
	cfg := e.cfg()
	start := time.Now()
	res := &types.ExecutionResult{Decision: decision}

	currentModel := decision.RoutedModel
	currentTier := decision.Tier
	maxAttempts := cfg.MaxRetries + 1

	var last *UpstreamResponse
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		res.EscalationChain = append(res.EscalationChain, currentModel)
		provider := catalog.Provider(currentModel)

		resp, err := e.roundTrip(ctx, req, currentModel)
		if err != nil {
			e.health.RecordFailure(provider)
			lastErr = err
			e.logger.Warn("upstream dispatch failed", "model", currentModel, "attempt", attempt, "error", err)
			if attempt < maxAttempts-1 && decision.SafeToRetry {
				if next, model, ok := e.router.NextEscalation(currentTier); ok {
					currentTier, currentModel = next, model
					if !e.wait(ctx, cfg.RetryDelayMs) {
						break
					}
					continue
				}
			}
			break
		}

		v := Validate(resp.StatusCode, resp.Body, req, currentTier)
		if resp.StatusCode >= 500 {
			e.health.RecordFailure(provider)
		} else {
			e.health.RecordSuccess(provider)
		}

		if v.Valid {
			e.finish(res, req, resp, currentModel, v.HadToolCalls, estInputTokens, start)
			return resp, res, nil
		}

		// A response carrying tool calls is final even when it fails
		// validation: re-running it could duplicate side effects. Same for
		// any decision the classifier marked unsafe.
		if v.HadToolCalls || !decision.SafeToRetry {
			e.logger.Warn("returning invalid upstream response verbatim",
				"model", currentModel, "reason", v.Reason, "tool_calls", v.HadToolCalls)
			e.finish(res, req, resp, currentModel, v.HadToolCalls, estInputTokens, start)
			return resp, res, nil
		}

		last = resp
		lastErr = fmt.Errorf("upstream validation failed: %s", v.Reason)
		e.logger.Warn("upstream response invalid", "model", currentModel, "reason", v.Reason, "attempt", attempt)

		if attempt < maxAttempts-1 {
			if next, model, ok := e.router.NextEscalation(currentTier); ok {
				currentTier, currentModel = next, model
				if !e.wait(ctx, cfg.RetryDelayMs) {
					break
				}
				continue
			}
		}
		break
	}

	// Last chance: the client's originally requested model, exactly once.
	if cfg.AlwaysFallbackToOriginal && currentModel != decision.OriginalModel {
		res.EscalationChain = append(res.EscalationChain, decision.OriginalModel)
		e.logger.Info("falling back to originally requested model", "model", decision.OriginalModel)
		resp, err := e.roundTrip(ctx, req, decision.OriginalModel)
		if err == nil {
			v := Validate(resp.StatusCode, resp.Body, req, currentTier)
			e.finish(res, req, resp, decision.OriginalModel, v.HadToolCalls, estInputTokens, start)
			return resp, res, nil
		}
		lastErr = err
	}

	if last != nil {
		e.finish(res, req, last, currentModel, false, estInputTokens, start)
		return last, res, nil
	}

	res.ResponseTimeMs = time.Since(start).Milliseconds()
	res.ActualModel = currentModel
	res.Escalated = len(res.EscalationChain) > 1
	return nil, res, lastErr
}

// Passthrough dispatches the client's request to its own model exactly
// once, with no validation or retry. It is the fail-open path of last
// resort.
func (e *Executor) Passthrough(ctx context.Context, req *types.ChatRequest) (*UpstreamResponse, error) {
	return e.roundTrip(ctx, req, req.Model)
}

// roundTrip dispatches and fully reads one upstream exchange.
func (e *Executor) roundTrip(ctx context.Context, req *types.ChatRequest, modelID string) (*UpstreamResponse, error) {
	resp, err := e.dispatcher.Dispatch(ctx, req, modelID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	return &UpstreamResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// wait sleeps the retry delay, aborting early on context cancellation.
func (e *Executor) wait(ctx context.Context, delayMs int) bool {
	if delayMs <= 0 {
		return true
	}
	select {
	case <-time.After(time.Duration(delayMs) * time.Millisecond):
		return true
	case <-ctx.Done():
		return false
	}
}

// finish fills in the accounting fields of the execution result.
func (e *Executor) finish(res *types.ExecutionResult, req *types.ChatRequest, resp *UpstreamResponse, actualModel string, hadToolCalls bool, estInputTokens int, start time.Time) {
	in, out := usageFromBody(resp.Body)
	if in == 0 {
		in = estInputTokens
	}
	if out == 0 {
		out = outputEstimateFromBody(resp.Body)
	}
	res.ActualModel = actualModel
	res.InputTokens = in
	res.OutputTokens = out
	res.HadToolCalls = hadToolCalls
	res.Escalated = len(res.EscalationChain) > 1
	res.OriginalCostUSD = catalog.Cost(res.Decision.OriginalModel, in, out)
	res.ActualCostUSD = catalog.Cost(actualModel, in, out)
	if s := res.OriginalCostUSD - res.ActualCostUSD; s > 0 {
		res.SavingsUSD = s
	}
	res.ResponseTimeMs = time.Since(start).Milliseconds()
}

// ExecuteStream serves a stream:true request. Pre-stream failures (transport
// errors and non-OK statuses) go through the same escalation logic as the
// non-streaming path; once a 200 arrives the pump takes over and retries are
// forbidden. Returns streamed=true when bytes have been written to the
// client; otherwise last (which may be nil) is the terminal upstream
// response for the caller to forward.
func (e *Executor) ExecuteStream(ctx context.Context, w http.ResponseWriter, req *types.ChatRequest, decision types.RoutingDecision, estInputTokens int) (streamed bool, last *UpstreamResponse, res *types.ExecutionResult, err error) {
	cfg := e.cfg()
	start := time.Now()
	res = &types.ExecutionResult{Decision: decision, Streamed: true}

	currentModel := decision.RoutedModel
	currentTier := decision.Tier
	maxAttempts := cfg.MaxRetries + 1

	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		res.EscalationChain = append(res.EscalationChain, currentModel)
		provider := catalog.Provider(currentModel)

		resp, dispatchErr := e.dispatcher.Dispatch(ctx, req, currentModel)
		if dispatchErr == nil && resp.StatusCode == http.StatusOK {
			e.health.RecordSuccess(provider)
			stats := e.pump(w, resp, currentModel, decision)
			in := stats.InputTokens
			if in == 0 {
				in = estInputTokens
			}
			res.ActualModel = currentModel
			res.InputTokens = in
			res.OutputTokens = stats.OutputTokens
			res.HadToolCalls = stats.HadToolCalls
			res.Escalated = len(res.EscalationChain) > 1
			res.OriginalCostUSD = catalog.Cost(decision.OriginalModel, in, stats.OutputTokens)
			res.ActualCostUSD = catalog.Cost(currentModel, in, stats.OutputTokens)
			if s := res.OriginalCostUSD - res.ActualCostUSD; s > 0 {
				res.SavingsUSD = s
			}
			res.ResponseTimeMs = time.Since(start).Milliseconds()
			return true, nil, res, nil
		}

		// Nothing has been emitted yet, so escalation is still permitted.
		if dispatchErr != nil {
			e.health.RecordFailure(provider)
			lastErr = dispatchErr
			e.logger.Warn("streaming dispatch failed", "model", currentModel, "error", dispatchErr)
		} else {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			last = &UpstreamResponse{StatusCode: resp.StatusCode, Body: body}
			if resp.StatusCode >= 500 {
				e.health.RecordFailure(provider)
			}
			lastErr = fmt.Errorf("upstream returned status %d before stream start", resp.StatusCode)
			e.logger.Warn("streaming upstream returned error status", "model", currentModel, "status", resp.StatusCode)
		}

		if attempt < maxAttempts-1 && decision.SafeToRetry {
			if next, model, ok := e.router.NextEscalation(currentTier); ok {
				currentTier, currentModel = next, model
				if !e.wait(ctx, cfg.RetryDelayMs) {
					break
				}
				continue
			}
		}
		break
	}

	if cfg.AlwaysFallbackToOriginal && currentModel != decision.OriginalModel {
		res.EscalationChain = append(res.EscalationChain, decision.OriginalModel)
		e.logger.Info("falling back to originally requested model", "model", decision.OriginalModel, "stream", true)
		resp, dispatchErr := e.dispatcher.Dispatch(ctx, req, decision.OriginalModel)
		if dispatchErr == nil && resp.StatusCode == http.StatusOK {
			stats := e.pump(w, resp, decision.OriginalModel, decision)
			in := stats.InputTokens
			if in == 0 {
				in = estInputTokens
			}
			res.ActualModel = decision.OriginalModel
			res.InputTokens = in
			res.OutputTokens = stats.OutputTokens
			res.HadToolCalls = stats.HadToolCalls
			res.Escalated = true
			res.OriginalCostUSD = catalog.Cost(decision.OriginalModel, in, stats.OutputTokens)
			res.ActualCostUSD = res.OriginalCostUSD
			res.ResponseTimeMs = time.Since(start).Milliseconds()
			return true, nil, res, nil
		}
		if dispatchErr == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			last = &UpstreamResponse{StatusCode: resp.StatusCode, Body: body}
		} else {
			lastErr = dispatchErr
		}
	}

	res.ActualModel = currentModel
	res.Escalated = len(res.EscalationChain) > 1
	res.ResponseTimeMs = time.Since(start).Milliseconds()
	return false, last, res, lastErr
}

// pump writes the SSE preamble headers and hands the connection to the
// stream pump. From the first byte on, the exchange is committed.
func (e *Executor) pump(w http.ResponseWriter, resp *http.Response, model string, decision types.RoutingDecision) PumpStats {
	defer resp.Body.Close()

	escalated := "false"
	if model != decision.RoutedModel {
		escalated = "true"
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-ClawRoute-Model", model)
	h.Set("X-ClawRoute-Tier", decision.Tier.String())
	h.Set("X-ClawRoute-Escalated", escalated)
	w.WriteHeader(http.StatusOK)

	return Pump(w, resp.Body, e.logger)
}
