// Package gateway exposes the proxy and admin HTTP surfaces.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/clawinfra/clawroute/internal/classifier"
	"github.com/clawinfra/clawroute/internal/config"
	"github.com/clawinfra/clawroute/internal/executor"
	"github.com/clawinfra/clawroute/internal/httputil"
	"github.com/clawinfra/clawroute/internal/router"
	"github.com/clawinfra/clawroute/internal/store"
	"github.com/clawinfra/clawroute/internal/telemetry"
	"github.com/clawinfra/clawroute/internal/types"
)

// SessionHeader carries the client's session id for session overrides.
const SessionHeader = "X-Session-Id"

// Handler holds the request pipeline dependencies.
type Handler struct {
	cfg      func() *config.Config
	rt       *config.Runtime
	router   *router.Router
	executor *executor.Executor
	health   *router.ProviderHealth
	store    *store.Store
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	version  string
}

func NewHandler(cfg func() *config.Config, rt *config.Runtime, rtr *router.Router, exec *executor.Executor, health *router.ProviderHealth, st *store.Store, metrics *telemetry.Metrics, logger *slog.Logger, version string) *Handler {
	return &Handler{
		cfg:      cfg,
		rt:       rt,
		router:   rtr,
		executor: exec,
		health:   health,
		store:    st,
		metrics:  metrics,
		logger:   logger,
		version:  version,
	}
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r)
	receivedAt := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req types.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid JSON: "+err.Error())
		return
	}
	if req.Model == "" {
		httputil.WriteBadRequest(w, "model is required")
		return
	}
	if len(req.Messages) == 0 {
		httputil.WriteBadRequest(w, "messages is required")
		return
	}

	cls, decision := h.classifyAndRoute(&req, r.Header.Get(SessionHeader))

	if h.cfg().LogContent {
		h.logger.Debug("request content", "request_id", reqID, "last_user", req.LastUserText())
	}
	h.logger.Debug("routing decision",
		"request_id", reqID,
		"tier", decision.Tier.String(),
		"original_model", decision.OriginalModel,
		"routed_model", decision.RoutedModel,
		"reason", decision.Reason,
		"dry_run", decision.IsDryRun,
		"override", decision.IsOverride,
		"passthrough", decision.IsPassthrough,
	)

	if req.Stream {
		h.serveStream(w, r, &req, decision, cls, reqID, receivedAt)
		return
	}
	h.serveOnce(w, r, &req, decision, cls, reqID, receivedAt)
}

// serveOnce handles the non-streaming path. Any panic below classification
// fails open to a single pass-through dispatch of the original model.
func (h *Handler) serveOnce(w http.ResponseWriter, r *http.Request, req *types.ChatRequest, decision types.RoutingDecision, cls types.ClassificationResult, reqID string, receivedAt time.Time) {
	resp, res, err := h.executeSafe(r, req, decision, cls)
	if res != nil {
		h.record(reqID, receivedAt, res)
	}
	if resp == nil {
		h.logger.Error("all upstream attempts failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, "All upstream attempts failed")
		return
	}

	escalated := "false"
	if res != nil && res.Escalated {
		escalated = "true"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-ClawRoute-Model", res.ActualModel)
	w.Header().Set("X-ClawRoute-Tier", decision.Tier.String())
	w.Header().Set("X-ClawRoute-Escalated", escalated)
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, req *types.ChatRequest, decision types.RoutingDecision, cls types.ClassificationResult, reqID string, receivedAt time.Time) {
	streamed, last, res, err := h.executor.ExecuteStream(r.Context(), w, req, decision, cls.EstimatedTokens)
	if res != nil {
		h.record(reqID, receivedAt, res)
	}
	if streamed {
		return
	}
	if last != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(last.StatusCode)
		w.Write(last.Body)
		return
	}
	h.logger.Error("streaming upstream attempts failed", "request_id", reqID, "error", err)
	httputil.WriteInternalError(w, "All upstream attempts failed")
}

// classifyAndRoute runs the pure pipeline stages. A panic in either yields a
// pass-through decision to the originally requested model.
func (h *Handler) classifyAndRoute(req *types.ChatRequest, sessionID string) (cls types.ClassificationResult, decision types.RoutingDecision) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("classification panic, passing through", "panic", rec)
			decision = types.RoutingDecision{
				OriginalModel: req.Model,
				RoutedModel:   req.Model,
				Tier:          types.TierModerate,
				Reason:        "internal error, passing through",
				IsPassthrough: true,
			}
		}
	}()

	cfg := h.cfg()
	cls = classifier.Classify(req, classifier.Options{
		ToolAwareEscalation: cfg.ToolAwareEscalation,
		ConservativeMode:    cfg.ConservativeMode,
		MinConfidence:       cfg.MinConfidence,
	})
	decision = h.router.Route(req, cls, sessionID)
	return cls, decision
}

// executeSafe shields the handler from executor panics: the recovery path is
// one raw dispatch to the original model.
func (h *Handler) executeSafe(r *http.Request, req *types.ChatRequest, decision types.RoutingDecision, cls types.ClassificationResult) (resp *executor.UpstreamResponse, res *types.ExecutionResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("executor panic, dispatching original model once", "panic", rec)
			resp, err = h.executor.Passthrough(r.Context(), req)
			res = &types.ExecutionResult{
				Decision:        decision,
				ActualModel:     decision.OriginalModel,
				EscalationChain: []string{decision.OriginalModel},
			}
		}
	}()
	return h.executor.Execute(r.Context(), req, decision, cls.EstimatedTokens)
}

// record emits the routing record asynchronously and updates Prometheus.
func (h *Handler) record(reqID string, receivedAt time.Time, res *types.ExecutionResult) {
	d := res.Decision
	h.store.Emit(types.RoutingRecord{
		RequestID:       reqID,
		Timestamp:       receivedAt,
		OriginalModel:   d.OriginalModel,
		RoutedModel:     d.RoutedModel,
		ActualModel:     res.ActualModel,
		Tier:            d.Tier.String(),
		Reason:          d.Reason,
		Confidence:      d.Confidence,
		InputTokens:     res.InputTokens,
		OutputTokens:    res.OutputTokens,
		OriginalCostUSD: res.OriginalCostUSD,
		ActualCostUSD:   res.ActualCostUSD,
		SavingsUSD:      res.SavingsUSD,
		Escalated:       res.Escalated,
		EscalationChain: res.EscalationChain,
		ResponseTimeMs:  res.ResponseTimeMs,
		HadToolCalls:    res.HadToolCalls,
		IsDryRun:        d.IsDryRun,
		IsOverride:      d.IsOverride,
		IsPassthrough:   d.IsPassthrough,
	})
	h.metrics.RecordExecution(res)

	h.logger.Info("request completed",
		"request_id", reqID,
		"tier", d.Tier.String(),
		"model_requested", d.OriginalModel,
		"model_served", res.ActualModel,
		"escalated", res.Escalated,
		"input_tokens", res.InputTokens,
		"output_tokens", res.OutputTokens,
		"savings_usd", res.SavingsUSD,
		"duration_ms", res.ResponseTimeMs,
		"stream", res.Streamed,
		"tool_calls", res.HadToolCalls,
	)
}

// Messages handles POST /v1/messages, which this proxy does not translate.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	httputil.WriteUnsupportedFormat(w, "The Anthropic /v1/messages format is not supported; use /v1/chat/completions")
}
