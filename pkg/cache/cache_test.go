package cache

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache", "extraction.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetMissOnEmptyCache(t *testing.T) {
	c := openTestCache(t)

	_, ok, err := c.Get("absent")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("Get() reported hit on empty cache")
	}
}

func TestPutThenGet(t *testing.T) {
	c := openTestCache(t)

	payload := []byte(`{"fields":[{"name":"sampling_date","value":"2024-03-15"}]}`)
	if err := c.Put("doc|req|v1", payload, time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, ok, err := c.Get("doc|req|v1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok {
		t.Fatal("Get() missed a live entry")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %q, want %q", got, payload)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	c := openTestCache(t)

	if err := c.Put("k", []byte("old"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("k", []byte("new"), time.Hour); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if string(got) != "new" {
		t.Errorf("Get() = %q, want %q", got, "new")
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := openTestCache(t)

	base := time.Now()
	c.now = func() time.Time { return base }

	if err := c.Put("k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }

	_, ok, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("Get() returned an expired entry")
	}
}

func TestPurgeRemovesOnlyExpired(t *testing.T) {
	c := openTestCache(t)

	base := time.Now()
	c.now = func() time.Time { return base }

	if err := c.Put("stale", []byte("a"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("live", []byte("b"), time.Hour); err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return base.Add(10 * time.Minute) }

	removed, err := c.Purge()
	if err != nil {
		t.Fatalf("Purge() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("Purge() removed = %d, want 1", removed)
	}

	if _, ok, _ := c.Get("live"); !ok {
		t.Error("Purge() removed a live entry")
	}
}
