package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// withClock pins the cache's clock to a controllable time.
func withClock[V any](c *Cache[V]) *time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return &now
}

func TestGetSet(t *testing.T) {
	c := New[string](10)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get on empty cache returned a value")
	}
	c.Set("a", "one", time.Minute)
	v, ok := c.Get("a")
	if !ok || v != "one" {
		t.Fatalf("Get = %q, %v; want one, true", v, ok)
	}
}

func TestExpiry(t *testing.T) {
	c := New[int](10)
	now := withClock(c)
	c.Set("a", 1, time.Minute)

	*now = now.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired before its TTL")
	}
	*now = now.Add(2 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry survived past its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after lazy expiry, want 0", c.Len())
	}
}

func TestHas_DoesNotTouchCounters(t *testing.T) {
	c := New[int](10)
	c.Set("a", 1, time.Minute)
	c.Has("a")
	c.Has("missing")
	s := c.Stats()
	if s.Hits != 0 || s.Misses != 0 {
		t.Errorf("Stats after Has = %+v, want zero counters", s)
	}
}

func TestDeleteClear(t *testing.T) {
	c := New[int](10)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	if !c.Delete("a") {
		t.Error("Delete existing = false")
	}
	if c.Delete("a") {
		t.Error("Delete twice = true")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	c := New[int](3)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	// Touch a so b becomes least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing before eviction")
	}
	c.Set("d", 4, 0)

	if _, ok := c.Get("b"); ok {
		t.Error("b survived eviction; want LRU entry evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s evicted; want it retained", k)
		}
	}
}

func TestStats(t *testing.T) {
	c := New[int](10)
	c.Set("a", 1, time.Minute)
	c.Get("a")
	c.Get("a")
	c.Get("missing")
	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats = %+v, want hits=2 misses=1 size=1", s)
	}
}

func TestGetOrSet_ProducerOnce(t *testing.T) {
	c := New[int](10)
	var runs atomic.Int32
	producer := func() (int, error) {
		runs.Add(1)
		return 42, nil
	}

	v, err := c.GetOrSet("k", time.Minute, producer)
	if err != nil || v != 42 {
		t.Fatalf("GetOrSet = %d, %v", v, err)
	}
	v, err = c.GetOrSet("k", time.Minute, producer)
	if err != nil || v != 42 {
		t.Fatalf("second GetOrSet = %d, %v", v, err)
	}
	if runs.Load() != 1 {
		t.Errorf("producer ran %d times, want 1", runs.Load())
	}
}

func TestGetOrSet_ConcurrentMissesShareOneRun(t *testing.T) {
	c := New[int](10)
	var runs atomic.Int32
	release := make(chan struct{})
	producer := func() (int, error) {
		runs.Add(1)
		<-release
		return 7, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrSet("k", time.Minute, producer)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
			results[i] = v
		}(i)
	}

	// Give every caller a chance to reach the pending path, then release
	// the single producer run.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if runs.Load() != 1 {
		t.Errorf("producer ran %d times under concurrent misses, want 1", runs.Load())
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("caller %d got %d, want 7", i, v)
		}
	}
}

func TestGetOrSet_ErrorNotStored(t *testing.T) {
	c := New[int](10)
	boom := errors.New("boom")
	if _, err := c.GetOrSet("k", time.Minute, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Has("k") {
		t.Error("failed producer result was stored")
	}
	var runs int
	if _, err := c.GetOrSet("k", time.Minute, func() (int, error) { runs++; return 1, nil }); err != nil {
		t.Fatal(err)
	}
	if runs != 1 {
		t.Errorf("producer re-ran %d times after earlier failure, want 1", runs)
	}
}
