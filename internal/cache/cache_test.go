// ABOUTME: Unit tests for scan result caching functionality.
// ABOUTME: Tests TTL-based cache operations, key derivation, and cleanup mechanisms.

package cache

import (
	"testing"
	"time"

	"github.com/jfeddern/OpsDeck/internal/types"

	"github.com/sirupsen/logrus"
)

func TestScanCache(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	cache := NewScanCache(30*time.Minute, logger)
	defer cache.Close()

	code := `query := "SELECT * FROM users WHERE id = " + id`
	findings := []types.Finding{
		{VulnerabilityName: "SQL Injection", Severity: types.SeverityCritical},
		{VulnerabilityName: "Missing input validation", Severity: types.SeverityMedium},
	}

	t.Run("cache miss", func(t *testing.T) {
		if _, ok := cache.Get("nonexistent"); ok {
			t.Error("Expected cache miss, but got result")
		}
	})

	t.Run("cache hit", func(t *testing.T) {
		cache.Set(code, findings)

		result, ok := cache.Get(code)
		if !ok {
			t.Fatal("Expected cache hit, but got miss")
		}

		if len(result) != len(findings) {
			t.Fatalf("Findings length mismatch: got %d, want %d", len(result), len(findings))
		}

		if result[0].VulnerabilityName != "SQL Injection" {
			t.Errorf("VulnerabilityName mismatch: got %s", result[0].VulnerabilityName)
		}
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		result, _ := cache.Get(code)
		result[0].VulnerabilityName = "mutated"

		again, _ := cache.Get(code)
		if again[0].VulnerabilityName != "SQL Injection" {
			t.Error("Cached findings were mutated through a returned slice")
		}
	})

	t.Run("clean result is cached", func(t *testing.T) {
		cache.Set("fmt.Println(1)", nil)
		result, ok := cache.Get("fmt.Println(1)")
		if !ok || len(result) != 0 {
			t.Errorf("Expected cached empty result, got ok=%v len=%d", ok, len(result))
		}
	})

	t.Run("cache stats", func(t *testing.T) {
		total, expired := cache.Stats()
		if total < 2 {
			t.Errorf("Expected at least 2 cache entries, got %d", total)
		}

		if expired > total {
			t.Errorf("Expired count (%d) cannot be greater than total (%d)", expired, total)
		}
	})
}

func TestKeyIsStable(t *testing.T) {
	if Key("a") != Key("a") {
		t.Error("Key is not deterministic")
	}
	if Key("a") == Key("b") {
		t.Error("Different inputs produced the same key")
	}
	if len(Key("")) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(Key("")))
	}
}

func TestCacheExpiration(t *testing.T) {
	logger := logrus.New()
	cache := &ScanCache{
		cache:  make(map[string]*CacheEntry),
		ttl:    100 * time.Millisecond, // Very short TTL for testing
		logger: logger,
		stop:   make(chan struct{}),
	}

	code := "eval(userInput)"
	cache.Set(code, []types.Finding{{VulnerabilityName: "Code injection", Severity: types.SeverityHigh}})

	// Should be available immediately
	if _, ok := cache.Get(code); !ok {
		t.Error("Expected cache hit immediately after set")
	}

	// Wait for expiration
	time.Sleep(150 * time.Millisecond)

	if _, ok := cache.Get(code); ok {
		t.Error("Expected cache miss after expiration")
	}

	cache.cleanup()
	if total, _ := cache.Stats(); total != 0 {
		t.Errorf("Expected cleanup to remove expired entry, %d remain", total)
	}
}
