// Package router turns a classification into a concrete upstream model,
// honoring overrides, key availability, provider health, and dry-run.
package router

import (
	"fmt"

	"github.com/clawinfra/clawroute/internal/catalog"
	"github.com/clawinfra/clawroute/internal/config"
	"github.com/clawinfra/clawroute/internal/types"
)

// outputEstimateCap bounds the completion-token estimate used for savings.
const outputEstimateCap = 4000

// Router owns no I/O; it reads the config snapshot and runtime state and
// produces RoutingDecisions.
type Router struct {
	cfg    func() *config.Config
	rt     *config.Runtime
	health *ProviderHealth
}

func New(cfg func() *config.Config, rt *config.Runtime, health *ProviderHealth) *Router {
	return &Router{cfg: cfg, rt: rt, health: health}
}

// Route decides the upstream model for a classified request. sessionID comes
// from the X-Session-Id header and may be empty.
func (r *Router) Route(req *types.ChatRequest, cls types.ClassificationResult, sessionID string) types.RoutingDecision {
	cfg := r.cfg()
	d := types.RoutingDecision{
		OriginalModel: req.Model,
		RoutedModel:   req.Model,
		Tier:          cls.Tier,
		Confidence:    cls.Confidence,
		SafeToRetry:   cls.SafeToRetry,
	}

	if !r.rt.Enabled() {
		d.IsPassthrough = true
		d.Reason = "proxy disabled"
		return d
	}

	switch {
	case r.rt.GlobalOverride() != "":
		d.RoutedModel = r.rt.GlobalOverride()
		d.IsOverride = true
		d.Reason = "global override"
	default:
		if model, ok := r.rt.ConsumeSession(sessionID); ok {
			d.RoutedModel = model
			d.IsOverride = true
			d.Reason = "session override"
			break
		}
		tierCfg := cfg.TierModels(cls.Tier)
		switch {
		case r.available(cfg, tierCfg.Primary):
			d.RoutedModel = tierCfg.Primary
			d.Reason = fmt.Sprintf("tier %s primary: %s", cls.Tier, cls.Reason)
		case r.available(cfg, tierCfg.Fallback):
			d.RoutedModel = tierCfg.Fallback
			d.Reason = fmt.Sprintf("tier %s fallback: %s", cls.Tier, cls.Reason)
		default:
			d.IsPassthrough = true
			d.Reason = fmt.Sprintf("no provider available for tier %s", cls.Tier)
			return d
		}
	}

	if r.rt.DryRun() {
		d.Reason = fmt.Sprintf("dry-run (would route to %s): %s", d.RoutedModel, d.Reason)
		d.RoutedModel = d.OriginalModel
		d.IsDryRun = true
	}

	outEst := outputEstimateCap
	if req.MaxTokens != nil && *req.MaxTokens < outEst {
		outEst = *req.MaxTokens
	}
	origCost := catalog.Cost(d.OriginalModel, cls.EstimatedTokens, outEst)
	routedCost := catalog.Cost(d.RoutedModel, cls.EstimatedTokens, outEst)
	if s := origCost - routedCost; s > 0 {
		d.EstimatedSavingsUSD = s
	}

	return d
}

// available reports whether a model's provider has a key and a healthy
// circuit.
func (r *Router) available(cfg *config.Config, modelID string) bool {
	if modelID == "" {
		return false
	}
	provider := catalog.Provider(modelID)
	if cfg.Key(provider) == "" {
		return false
	}
	if r.health != nil && !r.health.IsAvailable(provider) {
		return false
	}
	return true
}

// NextEscalation returns the first tier strictly above current with an
// available primary or fallback model, for retry escalation. ok is false
// when no higher tier can serve.
func (r *Router) NextEscalation(current types.Tier) (tier types.Tier, model string, ok bool) {
	cfg := r.cfg()
	for t := current + 1; t <= types.TierFrontier; t++ {
		tc := cfg.TierModels(t)
		if r.available(cfg, tc.Primary) {
			return t, tc.Primary, true
		}
		if r.available(cfg, tc.Fallback) {
			return t, tc.Fallback, true
		}
	}
	return current, "", false
}
