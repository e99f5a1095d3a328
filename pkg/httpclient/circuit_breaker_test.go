package httpclient

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newUpstreamBreaker("graph.facebook.com", 3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("closed breaker must allow, got %v", err)
		}
		b.RecordFailure()
	}

	if err := b.Allow(); !errors.Is(err, ErrUpstreamOpen) {
		t.Fatalf("Allow() after threshold = %v, want ErrUpstreamOpen", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newUpstreamBreaker("business-api.tiktok.com", 3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if err := b.Allow(); err != nil {
		t.Fatalf("breaker must stay closed below the threshold, got %v", err)
	}
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	b := newUpstreamBreaker("tr.snapchat.com", 1, 10*time.Millisecond)

	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrUpstreamOpen) {
		t.Fatalf("Allow() while open = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("first request after the open window must pass, got %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrUpstreamOpen) {
		t.Fatalf("second concurrent request must be rejected, got %v", err)
	}

	b.RecordSuccess()
	if err := b.Allow(); err != nil {
		t.Fatalf("breaker must close after a successful trial, got %v", err)
	}
}

func TestBreakerReopensOnFailedTrial(t *testing.T) {
	b := newUpstreamBreaker("trc.taboola.com", 1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("trial request must pass, got %v", err)
	}
	b.RecordFailure()

	if err := b.Allow(); !errors.Is(err, ErrUpstreamOpen) {
		t.Fatalf("breaker must re-open on a failed trial, got %v", err)
	}
}

func TestClientKeepsBreakersPerUpstream(t *testing.T) {
	c := NewClient(time.Second, 1, time.Minute)

	meta := c.breakerFor("https://graph.facebook.com/v18.0/1/events")
	metaAgain := c.breakerFor("https://graph.facebook.com/v18.0/2/events")
	google := c.breakerFor("https://www.google-analytics.com/mp/collect")

	if meta != metaAgain {
		t.Fatal("same host must share one breaker")
	}
	if meta == google {
		t.Fatal("different hosts must not share a breaker")
	}

	meta.RecordFailure()
	if err := meta.Allow(); !errors.Is(err, ErrUpstreamOpen) {
		t.Fatal("meta breaker should be open")
	}
	if err := google.Allow(); err != nil {
		t.Fatalf("google breaker must be unaffected, got %v", err)
	}
}
