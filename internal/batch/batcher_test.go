package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// oneGroup puts the whole queue into a single outbound call.
func oneGroup(pending []Request[string]) []Group[string] {
	return []Group[string]{{Tag: "all", Items: pending}}
}

func TestBatcher_CoalescesSameWindow(t *testing.T) {
	var passes atomic.Int32
	exec := func(ctx context.Context, g Group[string]) (map[string]string, error) {
		passes.Add(1)
		out := make(map[string]string, len(g.Items))
		for _, it := range g.Items {
			out[it.Key] = strings.ToUpper(it.Data)
		}
		return out, nil
	}
	b := New(20*time.Millisecond, oneGroup, exec)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			v, err := b.Do(context.Background(), key, key)
			if err != nil {
				t.Errorf("Do(%s): %v", key, err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := passes.Load(); got != 1 {
		t.Fatalf("expected 1 outbound pass for same-window requests, got %d", got)
	}
	for i, v := range results {
		want := strings.ToUpper(string(rune('a' + i)))
		if v != want {
			t.Fatalf("result %d: got %q want %q", i, v, want)
		}
	}
}

func TestBatcher_DemuxByKeyNotOrder(t *testing.T) {
	// Segmentation reverses the queue and fans it into two groups; responses
	// must still land on the right callers.
	segment := func(pending []Request[string]) []Group[string] {
		rev := make([]Request[string], len(pending))
		for i, r := range pending {
			rev[len(pending)-1-i] = r
		}
		mid := len(rev) / 2
		return []Group[string]{
			{Tag: "x", Items: rev[:mid]},
			{Tag: "y", Items: rev[mid:]},
		}
	}
	exec := func(ctx context.Context, g Group[string]) (map[string]string, error) {
		out := make(map[string]string)
		for _, it := range g.Items {
			out[it.Key] = g.Tag + ":" + it.Data
		}
		return out, nil
	}
	b := New(10*time.Millisecond, segment, exec)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			v, err := b.Do(context.Background(), key, key)
			if err != nil {
				t.Errorf("Do(%s): %v", key, err)
				return
			}
			if !strings.HasSuffix(v, ":"+key) {
				t.Errorf("key %s got someone else's result %q", key, v)
			}
		}(i)
	}
	wg.Wait()
}

func TestBatcher_MissingKeyGetsErrNoResult(t *testing.T) {
	exec := func(ctx context.Context, g Group[string]) (map[string]string, error) {
		return map[string]string{}, nil // provider knows nothing
	}
	b := New(time.Millisecond, oneGroup, exec)

	_, err := b.Do(context.Background(), "ghost", "ghost")
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestBatcher_GroupErrorHitsOnlyItsWaiters(t *testing.T) {
	boom := errors.New("boom")
	segment := func(pending []Request[string]) []Group[string] {
		var good, bad []Request[string]
		for _, r := range pending {
			if strings.HasPrefix(r.Key, "bad") {
				bad = append(bad, r)
			} else {
				good = append(good, r)
			}
		}
		return []Group[string]{{Tag: "good", Items: good}, {Tag: "bad", Items: bad}}
	}
	exec := func(ctx context.Context, g Group[string]) (map[string]string, error) {
		if g.Tag == "bad" {
			return nil, boom
		}
		out := make(map[string]string)
		for _, it := range g.Items {
			out[it.Key] = "ok"
		}
		return out, nil
	}
	b := New(5*time.Millisecond, segment, exec)

	var wg sync.WaitGroup
	wg.Add(2)
	var goodErr, badErr error
	go func() { defer wg.Done(); _, goodErr = b.Do(context.Background(), "good1", "") }()
	go func() { defer wg.Done(); _, badErr = b.Do(context.Background(), "bad1", "") }()
	wg.Wait()

	if goodErr != nil {
		t.Fatalf("good waiter got error: %v", goodErr)
	}
	if !errors.Is(badErr, boom) {
		t.Fatalf("bad waiter expected boom, got %v", badErr)
	}
}

func TestBatcher_SecondWindowRunsAgain(t *testing.T) {
	var passes atomic.Int32
	exec := func(ctx context.Context, g Group[string]) (map[string]string, error) {
		passes.Add(1)
		out := make(map[string]string)
		for _, it := range g.Items {
			out[it.Key] = it.Data
		}
		return out, nil
	}
	b := New(time.Millisecond, oneGroup, exec)

	if _, err := b.Do(context.Background(), "k1", "v1"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Do(context.Background(), "k2", "v2"); err != nil {
		t.Fatal(err)
	}
	if got := passes.Load(); got != 2 {
		t.Fatalf("expected 2 passes across windows, got %d", got)
	}
}
