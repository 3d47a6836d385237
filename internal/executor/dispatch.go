package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/clawinfra/clawroute/internal/catalog"
	"github.com/clawinfra/clawroute/internal/config"
	"github.com/clawinfra/clawroute/internal/types"
)

// Dispatcher builds and sends provider HTTP requests. The wire body is the
// client's request with only the model field replaced; provider auth headers
// are attached per the catalog.
type Dispatcher struct {
	client *http.Client
	cfg    func() *config.Config
	logger *slog.Logger
}

func NewDispatcher(client *http.Client, cfg func() *config.Config, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{client: client, cfg: cfg, logger: logger}
}

// Dispatch sends the request to the provider that owns modelID. The caller
// owns the response body.
func (d *Dispatcher) Dispatch(ctx context.Context, req *types.ChatRequest, modelID string) (*http.Response, error) {
	cfg := d.cfg()
	provider := catalog.Provider(modelID)

	wire := req.WithModel(catalog.BareName(modelID))
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal provider request: %w", err)
	}

	base := cfg.BaseURL(provider)
	if base == "" {
		base = catalog.BaseURL(provider)
	}
	url := base + catalog.CompletionsPath(provider)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create provider request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range catalog.AuthHeaders(provider, cfg.Key(provider)) {
		httpReq.Header.Set(k, v)
	}

	if provider == catalog.ProviderAnthropic {
		// The OpenAI-shaped body is sent to Anthropic's /messages path
		// unchanged, which is not a 1:1 protocol match. Route Anthropic
		// models via openrouter to avoid the gap.
		d.logger.Warn("dispatching OpenAI-shaped request to anthropic /messages; formats are not fully compatible",
			"model", modelID)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dispatch to %s: %w", provider, err)
	}
	return resp, nil
}
