package conversion

import (
	"sync"
	"testing"
	"time"
)

func TestConversionRateZeroWithoutAttempts(t *testing.T) {
	tr := NewTracker(nil)
	tr.TrackConversion()

	m := tr.Metrics()
	if m.ConversionRate != 0 {
		t.Fatalf("expected rate 0 with no attempts, got %v", m.ConversionRate)
	}
	if m.SuccessfulConversions != 1 || m.TotalAttempts != 0 {
		t.Fatalf("unexpected counters %+v", m)
	}
	if m.LastAttempt != nil {
		t.Fatal("expected no last attempt")
	}
}

func TestConversionRate(t *testing.T) {
	tests := []struct {
		attempts    int
		conversions int
		want        float64
	}{
		{attempts: 1, conversions: 0, want: 0},
		{attempts: 4, conversions: 1, want: 0.25},
		{attempts: 2, conversions: 2, want: 1},
		{attempts: 3, conversions: 6, want: 2},
	}
	for _, tt := range tests {
		tr := NewTracker(nil)
		for i := 0; i < tt.attempts; i++ {
			tr.TrackIntent(IntentPurchase, nil)
		}
		for i := 0; i < tt.conversions; i++ {
			tr.TrackConversion()
		}
		if got := tr.Metrics().ConversionRate; got != tt.want {
			t.Fatalf("%d/%d: expected %v, got %v", tt.conversions, tt.attempts, tt.want, got)
		}
	}
}

func TestIntentBreakdownAndLastAttempt(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(func() time.Time { return at })

	tr.TrackIntent(IntentPurchase, nil)
	tr.TrackIntent(IntentSave, nil)
	tr.TrackIntent(IntentPurchase, map[string]string{"artwork": "a-1"})

	m := tr.Metrics()
	if m.TotalAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", m.TotalAttempts)
	}
	if m.IntentBreakdown[IntentPurchase] != 2 || m.IntentBreakdown[IntentSave] != 1 {
		t.Fatalf("unexpected breakdown %v", m.IntentBreakdown)
	}
	if m.LastAttempt == nil || m.LastAttempt.Intent != IntentPurchase || !m.LastAttempt.At.Equal(at) {
		t.Fatalf("unexpected last attempt %+v", m.LastAttempt)
	}
	if m.LastAttempt.Metadata["artwork"] != "a-1" {
		t.Fatalf("expected metadata kept, got %v", m.LastAttempt.Metadata)
	}
}

func TestMetricsIsACopy(t *testing.T) {
	tr := NewTracker(nil)
	meta := map[string]string{"k": "v"}
	tr.TrackIntent(IntentMint, meta)
	meta["k"] = "changed"

	m := tr.Metrics()
	m.IntentBreakdown[IntentMint] = 99
	m.LastAttempt.Metadata["k"] = "mutated"

	again := tr.Metrics()
	if again.IntentBreakdown[IntentMint] != 1 {
		t.Fatal("breakdown leaked through snapshot")
	}
	if again.LastAttempt.Metadata["k"] != "v" {
		t.Fatalf("metadata leaked, got %q", again.LastAttempt.Metadata["k"])
	}
}

func TestShowAuthModalRecordsIntent(t *testing.T) {
	tr := NewTracker(nil)

	p := tr.ShowAuthModal(IntentMint)
	if p.Intent != IntentMint || p.RecommendedMethod != MethodWallet || p.Title == "" {
		t.Fatalf("unexpected prompt %+v", p)
	}
	if p := tr.ShowAuthModal(IntentContact); p.RecommendedMethod != MethodEmail {
		t.Fatalf("expected email for contact, got %s", p.RecommendedMethod)
	}

	m := tr.Metrics()
	if m.TotalAttempts != 2 || m.IntentBreakdown[IntentMint] != 1 {
		t.Fatalf("expected modal to record intents, got %+v", m)
	}
	if m.LastAttempt.Metadata["source"] != "auth_modal" {
		t.Fatalf("expected source metadata, got %v", m.LastAttempt.Metadata)
	}
}

func TestConcurrentTracking(t *testing.T) {
	tr := NewTracker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.TrackIntent(IntentPurchase, nil)
		}()
		go func() {
			defer wg.Done()
			tr.TrackConversion()
		}()
	}
	wg.Wait()

	m := tr.Metrics()
	if m.TotalAttempts != 50 || m.SuccessfulConversions != 50 || m.ConversionRate != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}
