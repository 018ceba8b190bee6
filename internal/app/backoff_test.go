package app

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := newBackoff(time.Millisecond, 4*time.Millisecond)
	ctx := context.Background()

	want := []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond, // capped
	}
	for i, w := range want {
		if got := b.Current(); got != w {
			t.Fatalf("step %d: current = %v, want %v", i, got, w)
		}
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := newBackoff(time.Millisecond, time.Second)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if b.Current() == time.Millisecond {
		t.Fatal("wait should have grown the duration")
	}
	b.Reset()
	if got := b.Current(); got != time.Millisecond {
		t.Fatalf("after reset current = %v, want 1ms", got)
	}
}

func TestBackoffWaitHonorsContext(t *testing.T) {
	b := newBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := b.Wait(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("wait did not return promptly on cancellation")
	}
}

func TestBackoffJitterStaysInBand(t *testing.T) {
	b := newBackoff(10*time.Millisecond, time.Second)
	for i := 0; i < 20; i++ {
		before := b.Current()
		start := time.Now()
		if err := b.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
		// Lower bound only: timers may fire late, never early past jitter.
		if min := time.Duration(float64(before) * 0.7); time.Since(start) < min {
			t.Fatalf("slept %v, below jitter band for %v", time.Since(start), before)
		}
		b.Reset()
	}
}
