package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("k", "v", time.Minute)
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Errorf("Get(k) = (%v, %v)", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("missing key reported present")
	}
}

func TestExpiredEntryIsAbsent(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry reported present")
	}
}

func TestDeleteAndFlush(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry reported present")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("unrelated entry lost on delete")
	}

	c.Flush()
	if _, ok := c.Get("b"); ok {
		t.Error("entry survived flush")
	}
}

func TestOverwriteRefreshesValue(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("k", "old", 10*time.Millisecond)
	c.Set("k", "new", time.Minute)
	time.Sleep(30 * time.Millisecond)

	got, ok := c.Get("k")
	if !ok || got != "new" {
		t.Errorf("Get(k) = (%v, %v), want (new, true)", got, ok)
	}
}
