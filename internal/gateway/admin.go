package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clawinfra/clawroute/internal/catalog"
	"github.com/clawinfra/clawroute/internal/httputil"
)

const redacted = "[REDACTED]"

// Health handles GET /health. Providers with recorded failures show up
// under "providers".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"version":   h.version,
		"enabled":   h.rt.Enabled(),
		"dryRun":    h.rt.DryRun(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.health != nil {
		payload["providers"] = h.health.Snapshot()
	}
	writeJSON(w, payload)
}

// Stats handles GET /stats with the aggregate view from the routing log.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats query failed", "error", err)
		httputil.WriteInternalError(w, "Failed to aggregate stats")
		return
	}
	writeJSON(w, stats)
}

// GetConfig handles GET /api/config. Secrets never leave the process.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg()

	keys := make(map[string]string, len(catalog.Providers()))
	for _, p := range catalog.Providers() {
		if cfg.Key(p) != "" {
			keys[p] = redacted
		} else {
			keys[p] = ""
		}
	}
	token := ""
	if cfg.AuthToken != "" {
		token = redacted
	}

	writeJSON(w, map[string]any{
		"host":                        cfg.Host,
		"port":                        cfg.Port,
		"auth_token":                  token,
		"enabled":                     h.rt.Enabled(),
		"dry_run":                     h.rt.DryRun(),
		"debug":                       cfg.Debug,
		"log_content":                 cfg.LogContent,
		"max_retries":                 cfg.MaxRetries,
		"retry_delay_ms":              cfg.RetryDelayMs,
		"always_fallback_to_original": cfg.AlwaysFallbackToOriginal,
		"tool_aware_escalation":       cfg.ToolAwareEscalation,
		"conservative_mode":           cfg.ConservativeMode,
		"min_confidence":              cfg.MinConfidence,
		"retention_days":              cfg.RetentionDays,
		"tiers":                       cfg.Tiers,
		"api_keys":                    keys,
		"global_override":             h.rt.GlobalOverride(),
		"session_overrides":           len(h.rt.Sessions()),
	})
}

// Enable and Disable handle POST /api/enable and /api/disable.
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.rt.SetEnabled(true)
	h.logger.Info("proxy enabled")
	writeJSON(w, map[string]any{"enabled": true})
}

func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.rt.SetEnabled(false)
	h.logger.Info("proxy disabled")
	writeJSON(w, map[string]any{"enabled": false})
}

// DryRunEnable and DryRunDisable handle POST /api/dry-run/{enable,disable}.
func (h *Handler) DryRunEnable(w http.ResponseWriter, r *http.Request) {
	h.rt.SetDryRun(true)
	h.logger.Info("dry-run enabled")
	writeJSON(w, map[string]any{"dryRun": true})
}

func (h *Handler) DryRunDisable(w http.ResponseWriter, r *http.Request) {
	h.rt.SetDryRun(false)
	h.logger.Info("dry-run disabled")
	writeJSON(w, map[string]any{"dryRun": false})
}

type globalOverrideRequest struct {
	Model   string `json:"model"`
	Enabled *bool  `json:"enabled"`
}

// GlobalOverride handles POST /api/override/global: {model} sets the force
// model, {enabled:false} clears it.
func (h *Handler) GlobalOverride(w http.ResponseWriter, r *http.Request) {
	var body globalOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteBadRequest(w, "Invalid JSON: "+err.Error())
		return
	}

	if body.Enabled != nil && !*body.Enabled {
		h.rt.ClearGlobalOverride()
		h.logger.Info("global override cleared")
		writeJSON(w, map[string]any{"globalOverride": ""})
		return
	}
	if body.Model == "" {
		httputil.WriteBadRequest(w, "model is required")
		return
	}
	h.rt.SetGlobalOverride(body.Model)
	h.logger.Info("global override set", "model", body.Model)
	writeJSON(w, map[string]any{"globalOverride": body.Model})
}

type sessionOverrideRequest struct {
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
	Turns     *int   `json:"turns"`
}

// SessionOverride handles POST /api/override/session.
func (h *Handler) SessionOverride(w http.ResponseWriter, r *http.Request) {
	var body sessionOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteBadRequest(w, "Invalid JSON: "+err.Error())
		return
	}
	if body.SessionID == "" || body.Model == "" {
		httputil.WriteBadRequest(w, "sessionId and model are required")
		return
	}
	h.rt.UpsertSession(body.SessionID, body.Model, body.Turns)
	h.logger.Info("session override set", "session_id", body.SessionID, "model", body.Model)
	writeJSON(w, map[string]any{"sessionId": body.SessionID, "model": body.Model})
}

// SessionOverrideDelete handles DELETE /api/override/session.
func (h *Handler) SessionOverrideDelete(w http.ResponseWriter, r *http.Request) {
	var body sessionOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteBadRequest(w, "Invalid JSON: "+err.Error())
		return
	}
	if body.SessionID == "" {
		httputil.WriteBadRequest(w, "sessionId is required")
		return
	}
	h.rt.DeleteSession(body.SessionID)
	h.logger.Info("session override removed", "session_id", body.SessionID)
	writeJSON(w, map[string]any{"sessionId": body.SessionID, "deleted": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
