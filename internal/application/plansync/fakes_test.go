package plansync

import (
	"context"
	"errors"
	"sync"
	"time"

	"footballeyeq/internal/adapters/storage/document"
)

// --- Clock ---

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// delays lists every scheduled delay in order.
func (c *fakeClock) delays() []time.Duration {
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.delay)
	}
	return out
}

// fireNext runs the oldest timer that is neither stopped nor fired.
func (c *fakeClock) fireNext() bool {
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			t.fn()
			return true
		}
	}
	return false
}

func (c *fakeClock) active() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// --- Document store ---

type setCall struct {
	collection string
	id         string
	data       document.Document
	merge      bool
}

var errUnavailable = errors.New("unavailable")

type fakeDocs struct {
	mu       sync.Mutex
	docs     map[string]document.Document
	gets     int
	sets     []setCall
	getErr   error
	failSets bool
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]document.Document)}
}

func (f *fakeDocs) Get(_ context.Context, collection, id string) (document.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return document.Snapshot{}, f.getErr
	}
	d, ok := f.docs[collection+"/"+id]
	if !ok {
		return document.Snapshot{}, document.ErrNotFound
	}
	return document.Snapshot{ID: id, Data: d}, nil
}

func (f *fakeDocs) Set(_ context.Context, collection, id string, data document.Document, opts ...document.SetOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	merge := len(opts) > 0 && opts[0] == document.Merge
	f.sets = append(f.sets, setCall{collection: collection, id: id, data: data, merge: merge})
	if f.failSets {
		return errUnavailable
	}
	f.docs[collection+"/"+id] = data
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, collection+"/"+id)
	return nil
}

func (f *fakeDocs) Query(context.Context, string, document.Filter) ([]document.Snapshot, error) {
	return nil, nil
}

func (f *fakeDocs) Subscribe(context.Context, string, document.Filter, document.Listener) (func(), error) {
	return func() {}, nil
}

func (f *fakeDocs) Ping(context.Context) error { return nil }

func (f *fakeDocs) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

func (f *fakeDocs) lastSet() setCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[len(f.sets)-1]
}

// --- Async ---

// jobQueue holds async work until the test runs it.
type jobQueue struct {
	jobs []func()
}

func (q *jobQueue) push(f func()) { q.jobs = append(q.jobs, f) }

func (q *jobQueue) runAll() {
	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		job()
	}
}

func (q *jobQueue) runOne() {
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	job()
}
