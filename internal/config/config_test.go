package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "SEAT_PRICE", "PAYMENT_CODE_DELAY", "SEARCH_MATCH_THRESHOLD", "NATS_JOURNAL_ENABLED", "EMBEDDING_DIMENSIONS", "SESSION_IDLE_TTL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ServerPort != "8080" {
		t.Errorf("port = %q", cfg.ServerPort)
	}
	if cfg.StoreBackend != StoreMemory || cfg.NeedsNATS() {
		t.Errorf("store = %q, needs NATS = %v", cfg.StoreBackend, cfg.NeedsNATS())
	}
	if cfg.SeatPrice != 7.5 || cfg.SearchMatchThreshold != 0.8 {
		t.Errorf("seat price = %v, threshold = %v", cfg.SeatPrice, cfg.SearchMatchThreshold)
	}
	if cfg.PaymentCodeDelay != time.Second || cfg.PaymentSettleDelay != 2*time.Second {
		t.Errorf("delays = %v, %v", cfg.PaymentCodeDelay, cfg.PaymentSettleDelay)
	}
	if cfg.EmbeddingDimensions != 384 {
		t.Errorf("embedding dimensions = %d, want 384", cfg.EmbeddingDimensions)
	}
	if cfg.SessionIdleTTL != 15*time.Minute {
		t.Errorf("session idle TTL = %v", cfg.SessionIdleTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", StoreNATS)
	t.Setenv("SEAT_PRICE", "9.25")
	t.Setenv("PAYMENT_SETTLE_DELAY", "50ms")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "k")

	cfg := Load()
	if !cfg.NeedsNATS() {
		t.Error("nats store should need NATS")
	}
	if cfg.SeatPrice != 9.25 {
		t.Errorf("seat price = %v", cfg.SeatPrice)
	}
	if cfg.PaymentSettleDelay != 50*time.Millisecond {
		t.Errorf("settle delay = %v", cfg.PaymentSettleDelay)
	}
	if cfg.RateLimitRequests != 60 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.RateLimitRequests)
	}
	if !cfg.HasSupabase() {
		t.Error("supabase should be configured")
	}
}
