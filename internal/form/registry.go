package form

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "hisaab/internal/errors"
	"hisaab/internal/identity"
	"hisaab/internal/logger"
	"hisaab/internal/metrics"
	"hisaab/internal/notify"
	"hisaab/internal/uuid"
)

// Mounted is an open form together with its notification feed.
type Mounted struct {
	Controller *Controller
	Feed       *notify.Feed
	Owner      string

	watchers atomic.Int32
}

// Watch marks the form as observed by a live client until the returned
// release func is called. Observed forms are never reaped as idle.
func (m *Mounted) Watch() (release func()) {
	m.watchers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			m.watchers.Add(-1)
			m.Controller.Touch()
		})
	}
}

// Watched reports whether a live client is observing the form.
func (m *Mounted) Watched() bool {
	return m.watchers.Load() > 0
}

// RegistryConfig tunes a Registry.
type RegistryConfig struct {
	IdleTimeout     time.Duration
	MaxFormsPerUser int
	FeedSize        int
}

// Registry tracks the forms mounted by each user and closes idle ones.
type Registry struct {
	store DocumentStore
	cfg   RegistryConfig
	sink  notify.Notifier
	log   *zap.SugaredLogger
	opts  []Option

	mu    sync.Mutex
	forms map[string]*Mounted
}

// NewRegistry creates a Registry. Every notification is also sent to sink
// when it is not nil.
func NewRegistry(store DocumentStore, cfg RegistryConfig, sink notify.Notifier, opts ...Option) *Registry {
	if cfg.MaxFormsPerUser <= 0 {
		cfg.MaxFormsPerUser = 8
	}
	if cfg.FeedSize <= 0 {
		cfg.FeedSize = 32
	}
	return &Registry{
		store: store,
		cfg:   cfg,
		sink:  sink,
		log:   logger.Named("forms"),
		opts:  opts,
		forms: make(map[string]*Mounted),
	}
}

// Open creates and mounts a new form for session.
func (r *Registry) Open(session identity.Session) (*Mounted, error) {
	if !session.Ready || session.UserID == "" {
		return nil, apperrors.ErrIdentityNotReady
	}

	r.mu.Lock()
	if r.countLocked(session.UserID) >= r.cfg.MaxFormsPerUser {
		r.mu.Unlock()
		return nil, apperrors.ErrTooManyForms
	}
	id := uuid.New()
	feed := notify.NewFeed(r.cfg.FeedSize)
	var notifier notify.Notifier = feed
	if r.sink != nil {
		notifier = notify.Multi(feed, r.sink)
	}
	m := &Mounted{
		Controller: New(id, r.store, notifier, r.opts...),
		Feed:       feed,
		Owner:      session.UserID,
	}
	r.forms[id] = m
	metrics.FormsOpen.Inc()
	r.mu.Unlock()

	if err := m.Controller.Mount(session); err != nil {
		r.remove(id)
		return nil, err
	}
	r.log.Infow("form opened", "form_id", id, "user_id", session.UserID)
	return m, nil
}

// Get returns the form id owned by userID. Forms of other users are
// reported as not found.
func (r *Registry) Get(userID, id string) (*Mounted, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.forms[id]
	if !ok || m.Owner != userID {
		return nil, apperrors.ErrFormNotFound
	}
	return m, nil
}

// Close unmounts the form id owned by userID.
func (r *Registry) Close(userID, id string) error {
	r.mu.Lock()
	m, ok := r.forms[id]
	if !ok || m.Owner != userID {
		r.mu.Unlock()
		return apperrors.ErrFormNotFound
	}
	delete(r.forms, id)
	r.mu.Unlock()

	r.shut(m)
	r.log.Infow("form closed", "form_id", id, "user_id", userID)
	return nil
}

// Reap closes forms that have been idle longer than the configured timeout
// and returns how many were closed.
func (r *Registry) Reap(now time.Time) int {
	if r.cfg.IdleTimeout <= 0 {
		return 0
	}

	r.mu.Lock()
	var idle []*Mounted
	for id, m := range r.forms {
		if !m.Watched() && now.Sub(m.Controller.LastActive()) > r.cfg.IdleTimeout {
			idle = append(idle, m)
			delete(r.forms, id)
		}
	}
	r.mu.Unlock()

	for _, m := range idle {
		r.shut(m)
		r.log.Infow("idle form closed", "form_id", m.Controller.ID(), "user_id", m.Owner)
	}
	return len(idle)
}

// Run reaps idle forms until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.IdleTimeout / 4
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Reap(now)
		}
	}
}

// Len returns the number of open forms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Shutdown closes every form.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*Mounted, 0, len(r.forms))
	for id, m := range r.forms {
		all = append(all, m)
		delete(r.forms, id)
	}
	r.mu.Unlock()

	for _, m := range all {
		r.shut(m)
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	m, ok := r.forms[id]
	delete(r.forms, id)
	r.mu.Unlock()
	if ok {
		r.shut(m)
	}
}

func (r *Registry) shut(m *Mounted) {
	m.Controller.Close()
	m.Feed.Close()
	metrics.FormsOpen.Dec()
}

func (r *Registry) countLocked(userID string) int {
	n := 0
	for _, m := range r.forms {
		if m.Owner == userID {
			n++
		}
	}
	return n
}
