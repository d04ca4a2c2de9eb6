package cache

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey(model.ModeVerify, "the moon is made of cheese")
	b := CacheKey(model.ModeExpose, "the moon is made of cheese")
	c := CacheKey(model.ModeVerify, "the moon is made of cheese")

	if a == b {
		t.Error("keys for different modes must differ")
	}
	if a != c {
		t.Error("keys must be deterministic")
	}
	if !strings.HasPrefix(a, "claimgate:v1:verify:") {
		t.Errorf("unexpected key format: %s", a)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss")
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := c.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("expected hit with v, got %q %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := CacheKey(model.ModeVerify, "claim text here")
	if err := c.Set(key, []byte(`{"x":1}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := os.Stat(c.path(key)); err != nil {
		t.Fatalf("expected cache file: %v", err)
	}
	if strings.Contains(filepath.Base(c.path(key)), ":") {
		t.Errorf("file name should not contain colons: %s", c.path(key))
	}

	if got, ok := c.Get(key); !ok || string(got) != `{"x":1}` {
		t.Fatalf("expected hit, got %q %v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Fatal("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("expected expired file to be removed")
	}

	if err := c.Delete(key); err != nil {
		t.Errorf("deleting a missing entry should not fail: %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()

	first := NewLayeredCache(time.Hour, time.Minute, dir)
	if err := first.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A fresh layered cache over the same directory simulates a restart
	second := NewLayeredCache(time.Hour, time.Minute, dir)
	if got, ok := second.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("expected disk hit, got %q %v", got, ok)
	}
	if got, ok := second.memory.Get("k"); !ok || string(got) != "v" {
		t.Error("expected disk hit to be promoted to memory")
	}

	if err := second.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := second.Get("k"); ok {
		t.Error("expected miss after clear")
	}
}

func TestNew(t *testing.T) {
	if New(model.CacheConfig{Enabled: false}) != nil {
		t.Error("disabled cache should be nil")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, TTL: time.Minute}).(*MemoryCache); !ok {
		t.Error("expected memory cache without dir")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, TTL: time.Minute, Dir: t.TempDir()}).(*LayeredCache); !ok {
		t.Error("expected layered cache with dir")
	}
}

func TestResultCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rc := NewResultCache(NewMemoryCache(time.Hour, time.Minute), time.Hour, logger)
	claim := "vaccines contain microchips"

	result := model.NewExposeResult(model.ExposeResult{
		Outcome:    model.OutcomeDebunked,
		Confidence: 95,
		Analysis:   "No such chips exist.",
		Evidence:   []string{"Ingredient lists"},
	}, false)
	rc.Set(model.ModeExpose, claim, result)

	got, ok := rc.Get(model.ModeExpose, claim)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Cached {
		t.Error("cached result should be marked Cached")
	}
	if result.Cached {
		t.Error("Set must not mutate the caller's result")
	}
	if got.Expose == nil || got.Expose.Outcome != model.OutcomeDebunked || got.Expose.Confidence != 95 {
		t.Errorf("unexpected cached result: %+v", got.Expose)
	}

	if _, ok := rc.Get(model.ModeVerify, claim); ok {
		t.Error("modes must not share entries")
	}
}

func TestResultCache_SkipsDegraded(t *testing.T) {
	rc := NewResultCache(NewMemoryCache(time.Hour, time.Minute), time.Hour, nil)
	claim := "some claim that degraded"

	rc.Set(model.ModeVerify, claim, model.NewVerifyResult(model.VerifyResult{Label: "Unknown"}, true))

	if _, ok := rc.Get(model.ModeVerify, claim); ok {
		t.Error("degraded results must not be cached")
	}
}

func TestResultCache_NilStore(t *testing.T) {
	rc := NewResultCache(nil, time.Hour, nil)
	rc.Set(model.ModeVerify, "x", model.NewVerifyResult(model.VerifyResult{Label: "True"}, false))
	if _, ok := rc.Get(model.ModeVerify, "x"); ok {
		t.Error("nil store must never hit")
	}
}
