package router

import (
	"log/slog"
	"sync"
	"time"
)

// ProviderHealth tracks consecutive dispatch failures per provider so the
// router can slide a tier onto its fallback instead of hammering a dead
// upstream. A provider is demoted once failureThreshold consecutive
// failures accumulate; after its retry deadline passes, exactly one probe
// dispatch is let through. A failure while demoted pushes the deadline out
// with doubling backoff (bounded), and any success restores the provider
// outright.
type ProviderHealth struct {
	mu        sync.Mutex
	providers map[string]*providerState

	failureThreshold int
	probeInterval    time.Duration
	logger           *slog.Logger
}

// maxBackoffFactor bounds how far repeated probe failures can push the
// retry deadline past the base interval.
const maxBackoffFactor = 8

type providerState struct {
	failures int
	trips    int
	retryAt  time.Time
	probing  bool
}

func (st *providerState) demoted(threshold int) bool {
	return st.failures >= threshold
}

func NewProviderHealth(failureThreshold int, probeInterval time.Duration, logger *slog.Logger) *ProviderHealth {
	return &ProviderHealth{
		providers:        make(map[string]*providerState),
		failureThreshold: failureThreshold,
		probeInterval:    probeInterval,
		logger:           logger,
	}
}

// IsAvailable reports whether the router may place a tier's primary or
// fallback on this provider. Demoted providers admit one probe dispatch at
// a time once their retry deadline has passed.
func (ph *ProviderHealth) IsAvailable(provider string) bool {
	ph.mu.Lock()
	defer ph.mu.Unlock()

	st, ok := ph.providers[provider]
	if !ok || !st.demoted(ph.failureThreshold) {
		return true
	}
	if !st.probing && time.Now().After(st.retryAt) {
		st.probing = true
		return true
	}
	return false
}

// RecordSuccess wipes the provider's failure history. A demoted provider is
// restored immediately and its backoff resets.
func (ph *ProviderHealth) RecordSuccess(provider string) {
	ph.mu.Lock()
	defer ph.mu.Unlock()

	st, ok := ph.providers[provider]
	if !ok {
		return
	}
	if st.demoted(ph.failureThreshold) {
		ph.logger.Info("provider restored", "provider", provider, "failures", st.failures)
	}
	delete(ph.providers, provider)
}

// RecordFailure counts a failed dispatch. Crossing the threshold demotes
// the provider; each failure while demoted (a failed probe, or a
// pass-through dispatch the router could not avoid) doubles the backoff
// before the next probe.
func (ph *ProviderHealth) RecordFailure(provider string) {
	ph.mu.Lock()
	defer ph.mu.Unlock()

	st, ok := ph.providers[provider]
	if !ok {
		st = &providerState{}
		ph.providers[provider] = st
	}
	st.failures++
	st.probing = false
	if !st.demoted(ph.failureThreshold) {
		return
	}

	backoff := ph.probeInterval
	limit := maxBackoffFactor * ph.probeInterval
	for i := 0; i < st.trips && backoff < limit; i++ {
		backoff *= 2
	}
	if backoff > limit {
		backoff = limit
	}
	st.trips++
	st.retryAt = time.Now().Add(backoff)

	if st.failures == ph.failureThreshold {
		ph.logger.Warn("provider demoted, tiers fall back",
			"provider", provider, "failures", st.failures, "retry_in", backoff)
	}
}

// ProviderStatus is the externally visible health of one provider.
type ProviderStatus struct {
	Demoted  bool      `json:"demoted"`
	Failures int       `json:"failures"`
	RetryAt  time.Time `json:"retry_at"`
}

// Snapshot lists every provider with recorded failures, for the health
// endpoint. Providers with a clean history are omitted.
func (ph *ProviderHealth) Snapshot() map[string]ProviderStatus {
	ph.mu.Lock()
	defer ph.mu.Unlock()

	out := make(map[string]ProviderStatus, len(ph.providers))
	for name, st := range ph.providers {
		out[name] = ProviderStatus{
			Demoted:  st.demoted(ph.failureThreshold),
			Failures: st.failures,
			RetryAt:  st.retryAt,
		}
	}
	return out
}
