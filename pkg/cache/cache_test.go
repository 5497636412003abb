package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/strataorm/strata/pkg/schema"
)

func TestCache_GetPut(t *testing.T) {
	c := New()

	t.Run("identity", func(t *testing.T) {
		v := &struct{ n int }{1}
		c.Put("person", "1", v)

		got, ok := c.Get("person", "1")
		if !ok || got != v {
			t.Error("expected the identical value back")
		}
	})

	t.Run("miss", func(t *testing.T) {
		if _, ok := c.Get("person", "404"); ok {
			t.Error("expected a miss")
		}
	})

	t.Run("invalidate", func(t *testing.T) {
		c.Put("person", "2", "x")
		c.Invalidate("person", "2")
		if _, ok := c.Get("person", "2"); ok {
			t.Error("expected eviction")
		}
	})

	t.Run("clear is per model", func(t *testing.T) {
		c.Put("person", "3", "x")
		c.Put("pet", "3", "y")
		c.Clear("person")
		if _, ok := c.Get("person", "3"); ok {
			t.Error("person entries should be gone")
		}
		if _, ok := c.Get("pet", "3"); !ok {
			t.Error("pet entries should survive")
		}
	})
}

func TestCache_DisabledPolicy(t *testing.T) {
	c := New()
	c.SetPolicy("person", schema.CachePolicy{Mode: schema.CacheDisabled})

	c.Put("person", "1", "x")
	if _, ok := c.Get("person", "1"); ok {
		t.Error("disabled model must never cache")
	}

	calls := 0
	for i := 0; i < 2; i++ {
		if _, _, err := c.Fetch("person", "1", func() (any, error) {
			calls++
			return calls, nil
		}); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("each load should run its own loader, got %d calls", calls)
	}
}

func TestCache_TTL(t *testing.T) {
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }
	c.SetPolicy("person", schema.CachePolicy{Mode: schema.CacheTTL, TTL: 100 * time.Millisecond})

	c.Put("person", "1", "x")

	t.Run("live before expiry", func(t *testing.T) {
		now = now.Add(50 * time.Millisecond)
		if _, ok := c.Get("person", "1"); !ok {
			t.Error("entry should still be live")
		}
	})

	t.Run("access refreshes expiry", func(t *testing.T) {
		// 50ms have passed and the previous Get refreshed the clock, so
		// another 80ms stays within TTL from last access.
		now = now.Add(80 * time.Millisecond)
		if _, ok := c.Get("person", "1"); !ok {
			t.Error("TTL counts from last access")
		}
	})

	t.Run("lazy eviction after expiry", func(t *testing.T) {
		now = now.Add(200 * time.Millisecond)
		if _, ok := c.Get("person", "1"); ok {
			t.Error("entry should be evicted")
		}
		if c.Len() != 0 {
			t.Error("expired entry should be deleted on lookup")
		}
	})
}

func TestCache_Fetch(t *testing.T) {
	t.Run("loader result is cached", func(t *testing.T) {
		c := New()
		v, cached, err := c.Fetch("person", "1", func() (any, error) { return "loaded", nil })
		if err != nil || cached || v != "loaded" {
			t.Fatalf("got %v cached=%v err=%v", v, cached, err)
		}

		v, cached, err = c.Fetch("person", "1", func() (any, error) {
			t.Fatal("loader must not run on a hit")
			return nil, nil
		})
		if err != nil || !cached || v != "loaded" {
			t.Errorf("got %v cached=%v err=%v", v, cached, err)
		}
	})

	t.Run("failed load caches nothing", func(t *testing.T) {
		c := New()
		boom := errors.New("boom")
		if _, _, err := c.Fetch("person", "1", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("got %v", err)
		}
		if _, ok := c.Get("person", "1"); ok {
			t.Error("failed load must not populate the cache")
		}
	})

	t.Run("concurrent first loads are single-flight", func(t *testing.T) {
		c := New()
		var calls int
		var mu sync.Mutex
		release := make(chan struct{})

		loader := func() (any, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			<-release
			return &struct{ n int }{42}, nil
		}

		const workers = 8
		results := make([]any, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, _, err := c.Fetch("person", "1", loader)
				if err != nil {
					t.Errorf("Fetch failed: %v", err)
				}
				results[i] = v
			}(i)
		}

		// Give the racers time to pile up on the inflight record.
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		if calls != 1 {
			t.Errorf("loader ran %d times, want 1", calls)
		}
		for _, v := range results {
			if v != results[0] {
				t.Error("all callers must observe the identical instance")
			}
		}
	})
}

func TestCache_Reconcile(t *testing.T) {
	t.Run("first candidate installs", func(t *testing.T) {
		c := New()
		a := &struct{ n int }{1}
		got, existed := c.Reconcile("person", "1", a)
		if existed || got != a {
			t.Error("empty key should install the candidate")
		}
		if v, ok := c.Get("person", "1"); !ok || v != a {
			t.Error("installed candidate should be cached")
		}
	})

	t.Run("racing candidate loses to the live entry", func(t *testing.T) {
		c := New()
		a := &struct{ n int }{1}
		b := &struct{ n int }{2}
		c.Reconcile("person", "1", a)

		got, existed := c.Reconcile("person", "1", b)
		if !existed || got != a {
			t.Error("later candidates must converge on the first live instance")
		}
	})

	t.Run("disabled policy passes through", func(t *testing.T) {
		c := New()
		c.SetPolicy("person", schema.CachePolicy{Mode: schema.CacheDisabled})
		a := &struct{ n int }{1}
		got, existed := c.Reconcile("person", "1", a)
		if existed || got != a {
			t.Error("disabled model should hand the candidate back")
		}
		if c.Len() != 0 {
			t.Error("disabled model must never cache")
		}
	})

	t.Run("concurrent reconciles converge", func(t *testing.T) {
		c := New()
		const workers = 8
		results := make([]any, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				got, _ := c.Reconcile("person", "1", &struct{ n int }{i})
				results[i] = got
			}(i)
		}
		wg.Wait()
		for _, v := range results {
			if v != results[0] {
				t.Error("all reconcilers must observe the identical instance")
			}
		}
	})
}

func TestKeyOf(t *testing.T) {
	if KeyOf(int64(7)) != "7" {
		t.Error("single key should render plainly")
	}
	if KeyOf("a", int64(1)) == KeyOf("a1") {
		t.Error("composite keys must not collide with concatenation")
	}
}
