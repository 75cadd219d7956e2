package form

import (
	"context"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"hisaab/internal/identity"
	"hisaab/internal/metrics"
	"hisaab/internal/notify"
	"hisaab/internal/testutil"
)

func newTestRegistry(t *testing.T, cfg RegistryConfig) (*Registry, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	r := NewRegistry(store, cfg, nil, WithClock(fixedClock))
	t.Cleanup(r.Shutdown)
	return r, store
}

func TestRegistry_OpenAndGet(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{})

	m, err := r.Open(identity.NewSession("u1"))
	testutil.AssertNoError(t, err)
	if m.Owner != "u1" || m.Controller.State().Session.UserID != "u1" {
		t.Errorf("form not mounted for u1: %+v", m.Controller.State().Session)
	}

	got, err := r.Get("u1", m.Controller.ID())
	testutil.AssertNoError(t, err)
	if got != m {
		t.Error("expected the same form back")
	}

	_, err = r.Get("u2", m.Controller.ID())
	testutil.AssertAppError(t, err, "FORM_NOT_FOUND")
}

func TestRegistry_OpenRequiresIdentity(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{})

	_, err := r.Open(identity.Anonymous())
	testutil.AssertAppError(t, err, "IDENTITY_NOT_READY")
	if r.Len() != 0 {
		t.Errorf("expected no forms, got %d", r.Len())
	}
}

func TestRegistry_PerUserLimit(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{MaxFormsPerUser: 2})

	for i := 0; i < 2; i++ {
		_, err := r.Open(identity.NewSession("u1"))
		testutil.AssertNoError(t, err)
	}
	_, err := r.Open(identity.NewSession("u1"))
	testutil.AssertAppError(t, err, "TOO_MANY_FORMS")

	_, err = r.Open(identity.NewSession("u2"))
	testutil.AssertNoError(t, err)
}

func TestRegistry_Close(t *testing.T) {
	r, store := newTestRegistry(t, RegistryConfig{})
	m, _ := r.Open(identity.NewSession("u1"))

	testutil.AssertAppError(t, r.Close("u2", m.Controller.ID()), "FORM_NOT_FOUND")
	testutil.AssertNoError(t, r.Close("u1", m.Controller.ID()))

	if store.activeCount() != 0 {
		t.Errorf("expected subscriptions released, %d active", store.activeCount())
	}
	if _, ok := <-m.Feed.C(); ok {
		t.Error("expected feed closed")
	}
	testutil.AssertAppError(t, r.Close("u1", m.Controller.ID()), "FORM_NOT_FOUND")
}

func TestRegistry_ReapIdle(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{IdleTimeout: time.Minute})
	m, _ := r.Open(identity.NewSession("u1"))

	if n := r.Reap(fixedNow.Add(30 * time.Second)); n != 0 {
		t.Errorf("expected nothing reaped, got %d", n)
	}
	if n := r.Reap(fixedNow.Add(2 * time.Minute)); n != 1 {
		t.Errorf("expected one form reaped, got %d", n)
	}
	_, err := r.Get("u1", m.Controller.ID())
	testutil.AssertAppError(t, err, "FORM_NOT_FOUND")
}

func TestRegistry_FeedReceivesNotifications(t *testing.T) {
	sink := &notes{}
	r := NewRegistry(&fakeStore{}, RegistryConfig{}, sink, WithClock(fixedClock))
	t.Cleanup(r.Shutdown)

	m, _ := r.Open(identity.NewSession("u1"))
	_, _ = m.Controller.Submit(context.Background())

	select {
	case n := <-m.Feed.C():
		if n.Kind != notify.KindValidation {
			t.Errorf("expected validation notification, got %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a notification on the feed")
	}
	if len(sink.list()) != 1 {
		t.Errorf("expected sink to see the notification, got %d", len(sink.list()))
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	r, store := newTestRegistry(t, RegistryConfig{})
	_, _ = r.Open(identity.NewSession("u1"))
	_, _ = r.Open(identity.NewSession("u2"))

	r.Shutdown()
	if r.Len() != 0 {
		t.Errorf("expected no forms, got %d", r.Len())
	}
	if store.activeCount() != 0 {
		t.Errorf("expected all subscriptions released, %d active", store.activeCount())
	}
}

func TestRegistry_RunStopsWithContext(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{IdleTimeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRegistry_WatchedFormIsNotReaped(t *testing.T) {
	r, store := newTestRegistry(t, RegistryConfig{IdleTimeout: time.Minute})
	m, _ := r.Open(identity.NewSession("u1"))
	store.pushAccounts(t, "u1", "Cash")

	release := m.Watch()
	if n := r.Reap(fixedNow.Add(2 * time.Minute)); n != 0 {
		t.Fatalf("expected watched form kept, %d reaped", n)
	}
	if _, err := r.Get("u1", m.Controller.ID()); err != nil {
		t.Fatalf("watched form should still be open: %v", err)
	}
	if store.activeCount() != 2 {
		t.Errorf("expected both subscriptions alive, %d active", store.activeCount())
	}

	release()
	release()
	if m.Watched() {
		t.Fatal("expected watch released")
	}
	if n := r.Reap(fixedNow.Add(2 * time.Minute)); n != 1 {
		t.Errorf("expected the unwatched form reaped, got %d", n)
	}
}

func TestRegistry_OpenGaugeStaysBalanced(t *testing.T) {
	base := promtest.ToFloat64(metrics.FormsOpen)
	r, _ := newTestRegistry(t, RegistryConfig{MaxFormsPerUser: 100})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Open(identity.NewSession("u1"))
		}()
		go func() {
			defer wg.Done()
			r.Shutdown()
		}()
	}
	wg.Wait()
	r.Shutdown()

	if got := promtest.ToFloat64(metrics.FormsOpen); got != base {
		t.Errorf("forms_open = %v after shutdown, want %v", got, base)
	}
	if r.Len() != 0 {
		t.Errorf("expected no forms, got %d", r.Len())
	}
}
