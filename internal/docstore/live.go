package docstore

import (
	"context"
	"sync"

	"hisaab/internal/metrics"
)

// Snapshot is the full current result set of a live query. Err is set when
// the query could not be evaluated; Docs is then nil.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Unsubscribe stops a subscription. Once it returns the callback will not
// run again. It must not be called from inside the callback.
type Unsubscribe func()

// Live adds live query subscriptions to a Store. Every write to a collection
// re-evaluates the queries subscribed to it.
type Live struct {
	Store

	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

type subscription struct {
	live   *Live
	query  Query
	fn     func(Snapshot)
	dirty  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewLive wraps store.
func NewLive(store Store) *Live {
	return &Live{
		Store: store,
		subs:  make(map[string]map[*subscription]struct{}),
	}
}

// Create implements Store and notifies subscribers of the collection.
func (l *Live) Create(ctx context.Context, collection, id string, data any) (Ref, error) {
	if l.isClosed() {
		return Ref{}, ErrClosed
	}
	ref, err := l.Store.Create(ctx, collection, id, data)
	if err == nil {
		l.touch(collection)
	}
	return ref, err
}

// Update implements Store and notifies subscribers of the collection.
func (l *Live) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	if l.isClosed() {
		return ErrClosed
	}
	err := l.Store.Update(ctx, ref, fields)
	if err == nil {
		l.touch(ref.Collection)
	}
	return err
}

// Delete implements Store and notifies subscribers of the collection.
func (l *Live) Delete(ctx context.Context, ref Ref) error {
	if l.isClosed() {
		return ErrClosed
	}
	err := l.Store.Delete(ctx, ref)
	if err == nil {
		l.touch(ref.Collection)
	}
	return err
}

// Subscribe delivers the result set of q to fn now and after every change to
// q's collection. Snapshots for one subscription are delivered sequentially;
// bursts of writes may be coalesced into a single snapshot. The subscription
// ends when ctx is cancelled or the returned Unsubscribe is called.
func (l *Live) Subscribe(ctx context.Context, q Query, fn func(Snapshot)) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		live:   l,
		query:  q,
		fn:     fn,
		dirty:  make(chan struct{}, 1),
		ctx:    subCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	set, ok := l.subs[q.Collection]
	if !ok {
		set = make(map[*subscription]struct{})
		l.subs[q.Collection] = set
	}
	set[sub] = struct{}{}
	l.mu.Unlock()

	metrics.LiveSubscriptions.WithLabelValues(q.Collection).Inc()
	sub.mark()
	go sub.run()

	return sub.stop, nil
}

// Close ends every subscription and closes the wrapped store.
func (l *Live) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	var all []*subscription
	for _, set := range l.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	l.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	return l.Store.Close()
}

func (l *Live) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Live) touch(collection string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for sub := range l.subs[collection] {
		sub.mark()
	}
}

func (l *Live) remove(sub *subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if set, ok := l.subs[sub.query.Collection]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			metrics.LiveSubscriptions.WithLabelValues(sub.query.Collection).Dec()
		}
		if len(set) == 0 {
			delete(l.subs, sub.query.Collection)
		}
	}
}

// mark schedules a re-evaluation; pending marks collapse into one.
func (s *subscription) mark() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.done)
	defer s.live.remove(s)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
		}

		docs, err := s.live.Store.Find(s.ctx, s.query)
		if s.ctx.Err() != nil {
			return
		}

		outcome := "ok"
		if err != nil {
			outcome = "error"
			docs = nil
		}
		metrics.LiveSnapshots.WithLabelValues(s.query.Collection, outcome).Inc()
		s.fn(Snapshot{Docs: docs, Err: err})
	}
}

func (s *subscription) stop() {
	s.once.Do(s.cancel)
	<-s.done
}
