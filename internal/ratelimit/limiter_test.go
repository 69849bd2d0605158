package ratelimit

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func tabKeyGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`tab-[1-9]`)
}

func testPacer_DisabledNeverBlocks(t *rapid.T) {
	p := NewPacer(DefaultConfig)
	keys := rapid.SliceOfN(tabKeyGenerator(), 1, 50).Draw(t, "keys")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, k := range keys {
		if err := p.Wait(ctx, k); err != nil {
			t.Fatalf("disabled pacer blocked on %q: %v", k, err)
		}
	}
	if p.Len() != 0 {
		t.Fatalf("disabled pacer should not allocate limiters, has %d", p.Len())
	}
}

func TestPacer_DisabledNeverBlocks(t *testing.T) {
	rapid.Check(t, testPacer_DisabledNeverBlocks)
}

func testPacer_SameKeySameLimiter(t *rapid.T) {
	p := NewPacer(Config{StepsPerSecond: rapid.Float64Range(0.5, 50).Draw(t, "rps"), Burst: rapid.IntRange(0, 5).Draw(t, "burst")})
	key := tabKeyGenerator().Draw(t, "key")

	if p.GetLimiter(key) != p.GetLimiter(key) {
		t.Fatal("expected the same limiter for the same key")
	}
	if p.GetLimiter(key).Burst() < 1 {
		t.Fatal("burst must be at least 1")
	}
	p.Forget(key)
	if p.Len() != 0 {
		t.Fatalf("expected no limiters after Forget, got %d", p.Len())
	}
}

func TestPacer_SameKeySameLimiter(t *testing.T) {
	rapid.Check(t, testPacer_SameKeySameLimiter)
}

func TestPacer_EnabledSpacesSteps(t *testing.T) {
	t.Parallel()
	p := NewPacer(Config{StepsPerSecond: 20, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx, "tab-1"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// First step is free, the next two wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("steps were not paced, elapsed %v", elapsed)
	}
}

func TestPacer_CanceledContext(t *testing.T) {
	t.Parallel()
	p := NewPacer(Config{StepsPerSecond: 0.001, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Wait(ctx, "tab-1"); err != nil {
		t.Fatalf("first Wait should use the burst token: %v", err)
	}
	cancel()
	if err := p.Wait(ctx, "tab-1"); err == nil {
		t.Fatal("expected error from canceled context")
	}
	if err := NewPacer(DefaultConfig).Wait(ctx, "tab-1"); err == nil {
		t.Fatal("disabled pacer should still honor a canceled context")
	}
}
