// Package batch coalesces many concurrent logical requests into few outbound
// calls and keeps every outbound call within provider item limits.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoResult is delivered to a waiter whose key was absent from every group
// result (e.g. an address the price provider does not know).
var ErrNoResult = errors.New("batch: no result for request")

// Request is one pending logical request, demultiplexed by Key.
type Request[Q any] struct {
	Key  string
	Data Q
}

// Group is one outbound call: a segmentation tag plus the queue subset it
// covers.
type Group[Q any] struct {
	Tag   string
	Items []Request[Q]
}

// SegmentFunc sees the whole pending queue and decides how it maps onto
// outbound calls. It may reorder, drop or fan items into several groups.
type SegmentFunc[Q any] func(pending []Request[Q]) []Group[Q]

// ExecFunc performs one outbound call for a group and returns results keyed
// by Request.Key.
type ExecFunc[Q, R any] func(ctx context.Context, g Group[Q]) (map[string]R, error)

type reply[R any] struct {
	val R
	err error
}

type waiter[Q, R any] struct {
	req Request[Q]
	ch  chan reply[R]
}

// Batcher collects requests arriving within one flush window and dispatches
// them through a single segmentation pass. Producers push concurrently; one
// consumer drains.
type Batcher[Q, R any] struct {
	window  time.Duration
	segment SegmentFunc[Q]
	exec    ExecFunc[Q, R]

	mu      sync.Mutex
	pending []waiter[Q, R]
	timer   *time.Timer
}

// New builds a Batcher. A zero window still batches: all requests enqueued
// before the flush goroutine runs share one segmentation pass.
func New[Q, R any](window time.Duration, segment SegmentFunc[Q], exec ExecFunc[Q, R]) *Batcher[Q, R] {
	return &Batcher[Q, R]{window: window, segment: segment, exec: exec}
}

// Do enqueues one request and blocks until its response is demultiplexed back
// or ctx is done. A dispatched outbound call is never cancelled mid-flight;
// cancelling ctx only abandons the wait.
func (b *Batcher[Q, R]) Do(ctx context.Context, key string, data Q) (R, error) {
	w := waiter[Q, R]{
		req: Request[Q]{Key: key, Data: data},
		ch:  make(chan reply[R], 1),
	}

	b.mu.Lock()
	b.pending = append(b.pending, w)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
	b.mu.Unlock()

	select {
	case r := <-w.ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// flush drains the queue accumulated during one window, runs the segmentation
// pass once, executes groups concurrently and fans results back out by key.
func (b *Batcher[Q, R]) flush() {
	b.mu.Lock()
	ws := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()
	if len(ws) == 0 {
		return
	}

	reqs := make([]Request[Q], len(ws))
	byKey := make(map[string][]chan reply[R], len(ws))
	for i, w := range ws {
		reqs[i] = w.req
		byKey[w.req.Key] = append(byKey[w.req.Key], w.ch)
	}

	groups := b.segment(reqs)

	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		go func(g Group[Q]) {
			defer wg.Done()
			res, err := b.exec(context.Background(), g)
			for _, it := range g.Items {
				if err != nil {
					deliverAll(byKey[it.Key], reply[R]{err: err})
					continue
				}
				if v, ok := res[it.Key]; ok {
					deliverAll(byKey[it.Key], reply[R]{val: v})
				}
			}
		}(g)
	}
	wg.Wait()

	// Anything still undelivered either never made it into a group or was
	// absent from its group's response.
	var noRes reply[R]
	noRes.err = ErrNoResult
	for _, w := range ws {
		deliver(w.ch, noRes)
	}
}

// deliver is non-blocking: each waiter channel has capacity one, so a second
// delivery for the same key (item fanned into two groups) is a no-op.
func deliver[R any](ch chan reply[R], r reply[R]) {
	select {
	case ch <- r:
	default:
	}
}

func deliverAll[R any](chs []chan reply[R], r reply[R]) {
	for _, ch := range chs {
		deliver(ch, r)
	}
}
