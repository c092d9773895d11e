package ristretto

import (
	"context"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSetGetDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "schedules/2024-02-01", []byte(`{"shifts":[]}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	val, found, err := c.Get(ctx, "schedules/2024-02-01")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected found after Set")
	}
	if string(val) != `{"shifts":[]}` {
		t.Fatalf("unexpected value %s", val)
	}

	if err := c.Delete(ctx, "schedules/2024-02-01"); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	if _, found, _ := c.Get(ctx, "schedules/2024-02-01"); found {
		t.Fatal("expected miss after Delete")
	}
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	_, found, err := c.Get(context.Background(), "never-set")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestOverwrite(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "settings", []byte("v1"), time.Minute)
	c.Wait()
	_ = c.Set(ctx, "settings", []byte("v2"), time.Minute)
	c.Wait()

	val, found, _ := c.Get(ctx, "settings")
	if !found || string(val) != "v2" {
		t.Fatalf("expected v2, got found=%v val=%s", found, val)
	}
}
