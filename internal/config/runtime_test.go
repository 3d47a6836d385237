package config

import (
	"sync"
	"testing"
)

func newRuntime() *Runtime {
	cfg := DefaultConfig()
	cfg.Enabled = true
	return NewRuntime(cfg)
}

func TestRuntime_Toggles(t *testing.T) {
	rt := newRuntime()
	if !rt.Enabled() {
		t.Fatal("expected enabled from config")
	}
	rt.SetEnabled(false)
	if rt.Enabled() {
		t.Error("expected disabled")
	}

	if rt.DryRun() {
		t.Error("expected dry-run off by default")
	}
	rt.SetDryRun(true)
	if !rt.DryRun() {
		t.Error("expected dry-run on")
	}
}

func TestRuntime_GlobalOverride(t *testing.T) {
	rt := newRuntime()
	if rt.GlobalOverride() != "" {
		t.Fatal("expected no override initially")
	}
	rt.SetGlobalOverride("openai/gpt-4o")
	if rt.GlobalOverride() != "openai/gpt-4o" {
		t.Error("expected override set")
	}
	rt.ClearGlobalOverride()
	if rt.GlobalOverride() != "" {
		t.Error("expected override cleared")
	}
}

func TestRuntime_SessionTurnsDecrementAndExpire(t *testing.T) {
	rt := newRuntime()
	turns := 2
	rt.UpsertSession("s1", "openai/gpt-4o-mini", &turns)

	for i := 0; i < 2; i++ {
		model, ok := rt.ConsumeSession("s1")
		if !ok || model != "openai/gpt-4o-mini" {
			t.Fatalf("turn %d: expected override hit, got %q %v", i, model, ok)
		}
	}
	if _, ok := rt.ConsumeSession("s1"); ok {
		t.Fatal("expected session expired after turns spent")
	}
}

func TestRuntime_UnlimitedSessionNeverExpires(t *testing.T) {
	rt := newRuntime()
	rt.UpsertSession("s1", "openai/gpt-4o", nil)

	for i := 0; i < 50; i++ {
		if _, ok := rt.ConsumeSession("s1"); !ok {
			t.Fatalf("turn %d: unlimited session must persist", i)
		}
	}

	rt.DeleteSession("s1")
	if _, ok := rt.ConsumeSession("s1"); ok {
		t.Fatal("expected session removed")
	}
}

func TestRuntime_EmptySessionID(t *testing.T) {
	rt := newRuntime()
	if _, ok := rt.ConsumeSession(""); ok {
		t.Fatal("empty session id must never match")
	}
}

func TestRuntime_ConcurrentAccess(t *testing.T) {
	rt := newRuntime()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rt.SetEnabled(j%2 == 0)
				rt.Enabled()
				rt.SetGlobalOverride("openai/gpt-4o")
				rt.GlobalOverride()
				rt.UpsertSession("s", "m", nil)
				rt.ConsumeSession("s")
			}
		}()
	}
	wg.Wait()
}
