package form

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hisaab/internal/docstore"
	apperrors "hisaab/internal/errors"
	"hisaab/internal/identity"
	"hisaab/internal/logger"
	"hisaab/internal/models"
	"hisaab/internal/notify"
	"hisaab/internal/testutil"
)

func init() {
	logger.Init("test")
}

var fixedNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// fakeStore records writes and lets tests push snapshots by hand.
type fakeStore struct {
	mu           sync.Mutex
	creates      []fakeCreate
	createErr    error
	block        chan struct{}
	subscribeErr error
	subs         []*fakeSub
}

type fakeCreate struct {
	collection string
	id         string
	body       map[string]any
}

type fakeSub struct {
	query  docstore.Query
	fn     func(docstore.Snapshot)
	active bool
}

func (s *fakeStore) Create(ctx context.Context, collection, id string, data any) (docstore.Ref, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return docstore.Ref{}, s.createErr
	}
	raw, _ := json.Marshal(data)
	body := map[string]any{}
	_ = json.Unmarshal(raw, &body)
	s.creates = append(s.creates, fakeCreate{collection: collection, id: id, body: body})
	return docstore.Ref{Collection: collection, ID: id}, nil
}

func (s *fakeStore) Subscribe(ctx context.Context, q docstore.Query, fn func(docstore.Snapshot)) (docstore.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	sub := &fakeSub{query: q, fn: fn, active: true}
	s.subs = append(s.subs, sub)
	return func() {
		s.mu.Lock()
		sub.active = false
		s.mu.Unlock()
	}, nil
}

func (s *fakeStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates)
}

// latest returns the most recent subscription on collection.
func (s *fakeStore) latest(collection string) *fakeSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.subs) - 1; i >= 0; i-- {
		if s.subs[i].query.Collection == collection {
			return s.subs[i]
		}
	}
	return nil
}

func (s *fakeStore) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.active {
			n++
		}
	}
	return n
}

func (s *fakeStore) pushAccounts(t *testing.T, owner string, names ...string) {
	t.Helper()
	docs := make([]docstore.Document, 0, len(names))
	for i, name := range names {
		docs = append(docs, makeDoc(t, models.CollectionAccounts, models.Account{
			Base: models.Base{ID: "acc-" + name, CreatedBy: owner},
			Name: name,
		}, i))
	}
	sub := s.latest(models.CollectionAccounts)
	if sub == nil {
		t.Fatal("no account subscription")
	}
	sub.fn(docstore.Snapshot{Docs: docs})
}

func (s *fakeStore) pushPayees(t *testing.T, owner string, names ...string) {
	t.Helper()
	docs := make([]docstore.Document, 0, len(names))
	for i, name := range names {
		docs = append(docs, makeDoc(t, models.CollectionPayees, models.Payee{
			Base: models.Base{ID: "payee-" + name, CreatedBy: owner},
			Name: name,
		}, i))
	}
	sub := s.latest(models.CollectionPayees)
	if sub == nil {
		t.Fatal("no payee subscription")
	}
	sub.fn(docstore.Snapshot{Docs: docs})
}

func makeDoc(t *testing.T, collection string, v any, i int) docstore.Document {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return docstore.Document{
		Ref:       docstore.Ref{Collection: collection, ID: string(rune('a' + i))},
		Data:      raw,
		CreatedAt: fixedNow,
	}
}

// notes collects notifications.
type notes struct {
	mu  sync.Mutex
	all []notify.Notification
}

func (n *notes) Notify(x notify.Notification) {
	n.mu.Lock()
	n.all = append(n.all, x)
	n.mu.Unlock()
}

func (n *notes) list() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Notification, len(n.all))
	copy(out, n.all)
	return out
}

func newTestController(t *testing.T, store DocumentStore) (*Controller, *notes) {
	t.Helper()
	n := &notes{}
	ids := 0
	c := New("form-1", store, n,
		WithClock(fixedClock),
		WithIDGenerator(func() string {
			ids++
			return "tx-" + string(rune('0'+ids))
		}),
	)
	t.Cleanup(c.Close)
	return c, n
}

func mounted(t *testing.T, user string) (*Controller, *fakeStore, *notes) {
	t.Helper()
	store := &fakeStore{}
	c, n := newTestController(t, store)
	if err := c.Mount(identity.NewSession(user)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	return c, store, n
}

func strPtr(s string) *string { return &s }

func TestController_MountRequiresReadyIdentity(t *testing.T) {
	store := &fakeStore{}
	c, _ := newTestController(t, store)

	err := c.Mount(identity.Anonymous())
	testutil.AssertAppError(t, err, "IDENTITY_NOT_READY")
	if len(store.subs) != 0 {
		t.Errorf("expected no subscriptions, got %d", len(store.subs))
	}

	_, err = c.Submit(context.Background())
	testutil.AssertAppError(t, err, "IDENTITY_NOT_READY")
}

func TestController_DefaultDraft(t *testing.T) {
	c, _, _ := mounted(t, "u1")
	st := c.State()

	if st.TransactionType != models.TransactionTypeExpense {
		t.Errorf("expected expense, got %q", st.TransactionType)
	}
	if st.Draft.Date != "2024-03-09" {
		t.Errorf("expected today's date, got %q", st.Draft.Date)
	}
	if st.Draft.Payee != "" || st.Draft.Amount != "" || st.Draft.Note != "" {
		t.Errorf("expected empty text fields, got %+v", st.Draft)
	}
	if st.Draft.Loan != (models.Loan{}) {
		t.Errorf("expected zero loan, got %+v", st.Draft.Loan)
	}
	if st.Draft.CreatedBy != "u1" {
		t.Errorf("expected createdBy u1, got %q", st.Draft.CreatedBy)
	}
	if st.SelectedAccount != "" {
		t.Errorf("expected no selected account, got %q", st.SelectedAccount)
	}
}

func TestController_DefaultDateIsUTC(t *testing.T) {
	// 23:30 on 8 March in UTC-5 is already 9 March in UTC.
	local := time.Date(2024, 3, 8, 23, 30, 0, 0, time.FixedZone("EST", -5*60*60))
	c := New("form-utc", &fakeStore{}, &notes{}, WithClock(func() time.Time { return local }))
	t.Cleanup(c.Close)

	st := c.State()
	if st.Draft.Date != "2024-03-09" {
		t.Errorf("expected UTC date 2024-03-09, got %q", st.Draft.Date)
	}
	if got := models.FormatDate(st.Draft.CreatedAt); got != st.Draft.Date {
		t.Errorf("date %q and createdAt day %q disagree", st.Draft.Date, got)
	}
}

func TestController_SubscriptionsScopedToUser(t *testing.T) {
	_, store, _ := mounted(t, "u1")

	for _, collection := range []string{models.CollectionPayees, models.CollectionAccounts} {
		sub := store.latest(collection)
		if sub == nil {
			t.Fatalf("missing %s subscription", collection)
		}
		owner, ok := sub.query.Owner()
		if !ok || owner != "u1" {
			t.Errorf("%s: expected owner filter u1, got %q (%v)", collection, owner, ok)
		}
	}
}

func TestController_SnapshotsReplaceLists(t *testing.T) {
	c, store, _ := mounted(t, "u1")

	store.pushPayees(t, "u1", "Coffee Shop", "Grocer")
	store.pushAccounts(t, "u1", "Cash", "Bank")
	st := c.State()
	if len(st.KnownPayees) != 2 || len(st.KnownAccounts) != 2 {
		t.Fatalf("unexpected lists: %+v", st)
	}

	store.pushPayees(t, "u1", "Grocer")
	st = c.State()
	if len(st.KnownPayees) != 1 || st.KnownPayees[0].Name != "Grocer" {
		t.Errorf("expected full replacement, got %+v", st.KnownPayees)
	}
}

func TestController_SelectedAccountDefaultsToFirst(t *testing.T) {
	c, store, _ := mounted(t, "u1")

	store.pushAccounts(t, "u1", "Cash", "Bank")
	if got := c.State().SelectedAccount; got != "Cash" {
		t.Errorf("expected Cash, got %q", got)
	}

	store.pushAccounts(t, "u1", "Bank")
	if got := c.State().SelectedAccount; got != "Bank" {
		t.Errorf("expected default to follow the list, got %q", got)
	}

	store.pushAccounts(t, "u1")
	if got := c.State().SelectedAccount; got != "" {
		t.Errorf("expected empty selection for empty list, got %q", got)
	}
}

func TestController_ExplicitSelectionSticks(t *testing.T) {
	c, store, _ := mounted(t, "u1")
	store.pushAccounts(t, "u1", "Cash", "Bank")

	if _, err := c.SelectAccount("Bank"); err != nil {
		t.Fatalf("select: %v", err)
	}
	store.pushAccounts(t, "u1", "Cash", "Bank", "Card")
	if got := c.State().SelectedAccount; got != "Bank" {
		t.Errorf("expected Bank to stick, got %q", got)
	}
}

func TestController_DeletedChoiceFallsBackToDefault(t *testing.T) {
	c, store, _ := mounted(t, "u1")
	store.pushAccounts(t, "u1", "Cash", "Bank")

	if _, err := c.SelectAccount("Bank"); err != nil {
		t.Fatalf("select: %v", err)
	}
	store.pushAccounts(t, "u1", "Cash", "Card")
	if got := c.State().SelectedAccount; got != "Cash" {
		t.Fatalf("expected fallback to Cash after Bank was deleted, got %q", got)
	}

	_, err := c.Update(DraftPatch{Payee: strPtr("Coffee"), Amount: strPtr("150")})
	testutil.AssertNoError(t, err)
	tx, err := c.Submit(context.Background())
	testutil.AssertNoError(t, err)
	if tx.Account != "Cash" || tx.AccountID != "acc-Cash" {
		t.Errorf("expected posting to Cash, got %q (%q)", tx.Account, tx.AccountID)
	}
}

func TestController_Touch(t *testing.T) {
	now := fixedNow
	c := New("form-touch", &fakeStore{}, &notes{}, WithClock(func() time.Time { return now }))
	t.Cleanup(c.Close)

	now = fixedNow.Add(time.Minute)
	c.Touch()
	if got := c.LastActive(); !got.Equal(now) {
		t.Errorf("expected last active %v, got %v", now, got)
	}
}

func TestController_SelectUnknownAccount(t *testing.T) {
	c, store, _ := mounted(t, "u1")
	store.pushAccounts(t, "u1", "Cash")

	_, err := c.SelectAccount("Savings")
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")

	st, err := c.SelectAccount("")
	testutil.AssertNoError(t, err)
	if st.SelectedAccount != "" {
		t.Errorf("expected placeholder selection, got %q", st.SelectedAccount)
	}
}

func TestController_SetField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr string
		check   func(t *testing.T, st State)
	}{
		{
			name: "payee", field: FieldPayee, value: "Coffee Shop",
			check: func(t *testing.T, st State) {
				if st.Draft.Payee != "Coffee Shop" {
					t.Errorf("payee = %q", st.Draft.Payee)
				}
			},
		},
		{
			name: "type", field: FieldType, value: "income",
			check: func(t *testing.T, st State) {
				if st.TransactionType != models.TransactionTypeIncome || st.Draft.Type != models.TransactionTypeIncome {
					t.Errorf("type = %q / %q", st.TransactionType, st.Draft.Type)
				}
			},
		},
		{
			name: "loan flag", field: FieldLoanIsLoan, value: "true",
			check: func(t *testing.T, st State) {
				if !st.Draft.Loan.IsLoan {
					t.Error("expected isLoan")
				}
			},
		},
		{name: "bad type", field: FieldType, value: "refund", wantErr: "INVALID_TRANSACTION_TYPE"},
		{name: "bad bool", field: FieldLoanPaid, value: "maybe", wantErr: "INVALID_INPUT"},
		{name: "unknown", field: "category", value: "x", wantErr: "UNKNOWN_DRAFT_FIELD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := mounted(t, "u1")
			st, err := c.SetField(tt.field, tt.value)
			if tt.wantErr != "" {
				testutil.AssertAppError(t, err, tt.wantErr)
				return
			}
			testutil.AssertNoError(t, err)
			tt.check(t, st)
		})
	}
}

func TestController_SubmitRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name     string
		payee    string
		amount   string
		accounts []string
	}{
		{name: "missing payee", amount: "150", accounts: []string{"Cash"}},
		{name: "missing amount", payee: "Coffee", accounts: []string{"Cash"}},
		{name: "no account", payee: "Coffee", amount: "150"},
		{name: "all missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, n := mounted(t, "u1")
			store.pushAccounts(t, "u1", tt.accounts...)
			_, err := c.Update(DraftPatch{Payee: strPtr(tt.payee), Amount: strPtr(tt.amount), Note: strPtr("keep")})
			testutil.AssertNoError(t, err)

			_, err = c.Submit(context.Background())
			testutil.AssertAppError(t, err, "MISSING_FIELDS")
			if !errors.Is(err, apperrors.ErrMissingFields) {
				t.Errorf("expected ErrMissingFields, got %v", err)
			}

			if store.createCount() != 0 {
				t.Errorf("expected no writes, got %d", store.createCount())
			}
			got := n.list()
			if len(got) != 1 {
				t.Fatalf("expected 1 notification, got %d", len(got))
			}
			if got[0].Severity != notify.SeverityError || got[0].Message != "Please fill all the fields" {
				t.Errorf("unexpected notification: %+v", got[0])
			}
			if c.State().Draft.Note != "keep" {
				t.Error("draft should be unchanged after a rejected submit")
			}
		})
	}
}

func TestController_SubmitWritesSingleDocument(t *testing.T) {
	c, store, n := mounted(t, "u1")
	store.pushAccounts(t, "u1", "Cash")
	store.pushPayees(t, "u1", "Coffee")

	_, err := c.Update(DraftPatch{Payee: strPtr("Coffee"), Amount: strPtr("150")})
	testutil.AssertNoError(t, err)

	tx, err := c.Submit(context.Background())
	testutil.AssertNoError(t, err)

	if store.createCount() != 1 {
		t.Fatalf("expected exactly one write, got %d", store.createCount())
	}
	created := store.creates[0]
	if created.collection != models.CollectionTransactions {
		t.Errorf("expected transactions collection, got %q", created.collection)
	}
	if created.id != "tx-1" || created.body["id"] != "tx-1" || tx.ID != "tx-1" {
		t.Errorf("expected id tx-1 in ref and body, got ref=%q body=%v", created.id, created.body["id"])
	}

	want := map[string]any{
		"date":      "2024-03-09",
		"acc":       "Cash",
		"accountId": "acc-Cash",
		"payee":     "Coffee",
		"type":      "expense",
		"amount":    "150",
		"note":      "",
		"createdBy": "u1",
	}
	for k, v := range want {
		if created.body[k] != v {
			t.Errorf("body[%q] = %v, want %v", k, created.body[k], v)
		}
	}
	loan, _ := created.body["loan"].(map[string]any)
	if loan["isLoan"] != false || loan["paid"] != false || loan["paidDate"] != "" {
		t.Errorf("unexpected loan: %v", loan)
	}

	st := c.State()
	if st.Draft.Payee != "" || st.Draft.Amount != "" || st.Draft.Date != "2024-03-09" {
		t.Errorf("expected draft reset, got %+v", st.Draft)
	}
	if st.SelectedAccount != "Cash" {
		t.Errorf("expected selection back on default, got %q", st.SelectedAccount)
	}
	if len(st.KnownPayees) != 1 || len(st.KnownAccounts) != 1 {
		t.Error("lists must survive a reset")
	}

	got := n.list()
	if len(got) != 1 || got[0].Severity != notify.SeveritySuccess || got[0].Message != "Transaction added successfully" {
		t.Errorf("unexpected notifications: %+v", got)
	}
}

func TestController_SubmitUsesChosenType(t *testing.T) {
	c, store, _ := mounted(t, "u1")
	store.pushAccounts(t, "u1", "Cash", "Bank")

	_, _ = c.SetField(FieldType, "income")
	_, _ = c.SelectAccount("Bank")
	_, _ = c.Update(DraftPatch{Payee: strPtr("Employer"), Amount: strPtr("5000")})

	tx, err := c.Submit(context.Background())
	testutil.AssertNoError(t, err)
	if tx.Type != models.TransactionTypeIncome || tx.Account != "Bank" || tx.AccountID != "acc-Bank" {
		t.Errorf("unexpected record: %+v", tx)
	}
	if got := c.State().TransactionType; got != models.TransactionTypeExpense {
		t.Errorf("expected type reset to expense, got %q", got)
	}
}

func TestController_SubmitStoreFailureKeepsDraft(t *testing.T) {
	c, store, n := mounted(t, "u1")
	store.pushAccounts(t, "u1", "Cash")
	store.createErr = errors.New("connection reset")

	_, _ = c.Update(DraftPatch{Payee: strPtr("Coffee"), Amount: strPtr("150")})
	_, err := c.Submit(context.Background())
	testutil.AssertAppError(t, err, "STORE_FAILURE")

	st := c.State()
	if st.Draft.Payee != "Coffee" || st.Draft.Amount != "150" {
		t.Errorf("draft must be kept after a failed write, got %+v", st.Draft)
	}
	if st.Submitting {
		t.Error("submitting flag must be cleared")
	}
	got := n.list()
	if len(got) != 1 || got[0].Kind != notify.KindStore || got[0].Severity != notify.SeverityError {
		t.Errorf("unexpected notifications: %+v", got)
	}

	store.createErr = nil
	_, err = c.Submit(context.Background())
	testutil.AssertNoError(t, err)
}

func TestController_SubmitInProgress(t *testing.T) {
	c, store, _ := mounted(t, "u1")
	store.pushAccounts(t, "u1", "Cash")
	store.block = make(chan struct{})
	_, _ = c.Update(DraftPatch{Payee: strPtr("Coffee"), Amount: strPtr("150")})

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !c.State().Submitting {
		if time.Now().After(deadline) {
			t.Fatal("first submit never started")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := c.Submit(context.Background())
	testutil.AssertAppError(t, err, "SUBMIT_IN_PROGRESS")

	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if store.createCount() != 1 {
		t.Errorf("expected one write, got %d", store.createCount())
	}
}

func TestController_SubmitSurvivesCancelledContext(t *testing.T) {
	c, store, _ := mounted(t, "u1")
	store.pushAccounts(t, "u1", "Cash")
	_, _ = c.Update(DraftPatch{Payee: strPtr("Coffee"), Amount: strPtr("150")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Submit(ctx)
	testutil.AssertNoError(t, err)
}

func TestController_SessionChangeResetsState(t *testing.T) {
	c, store, _ := mounted(t, "u1")
	oldAccounts := store.latest(models.CollectionAccounts)
	store.pushAccounts(t, "u1", "Cash")
	_, _ = c.Update(DraftPatch{Payee: strPtr("Coffee")})

	if err := c.Mount(identity.NewSession("u2")); err != nil {
		t.Fatalf("remount: %v", err)
	}
	st := c.State()
	if st.Draft.Payee != "" || st.Draft.CreatedBy != "u2" || len(st.KnownAccounts) != 0 || st.SelectedAccount != "" {
		t.Errorf("expected fresh state for u2, got %+v", st)
	}

	// A late snapshot from the first user's subscription is dropped.
	oldAccounts.fn(docstore.Snapshot{Docs: []docstore.Document{
		makeDoc(t, models.CollectionAccounts, models.Account{Base: models.Base{ID: "x", CreatedBy: "u1"}, Name: "Cash"}, 0),
	}})
	if got := c.State().KnownAccounts; len(got) != 0 {
		t.Errorf("stale snapshot leaked into the new session: %+v", got)
	}
	if store.activeCount() != 2 {
		t.Errorf("expected only the new pair of subscriptions active, got %d", store.activeCount())
	}
}

func TestController_RemountSameUserKeepsDraft(t *testing.T) {
	c, _, _ := mounted(t, "u1")
	_, _ = c.Update(DraftPatch{Payee: strPtr("Coffee")})

	if err := c.Mount(identity.NewSession("u1")); err != nil {
		t.Fatalf("remount: %v", err)
	}
	if got := c.State().Draft.Payee; got != "Coffee" {
		t.Errorf("expected draft kept, got %q", got)
	}
}

func TestController_SubscriptionErrorDoesNotBlockEntry(t *testing.T) {
	c, store, n := mounted(t, "u1")
	store.latest(models.CollectionPayees).fn(docstore.Snapshot{Err: errors.New("permission denied")})

	st := c.State()
	if !st.SuggestionsUnavailable {
		t.Error("expected suggestions to be flagged unavailable")
	}
	got := n.list()
	if len(got) != 1 || got[0].Kind != notify.KindSubscription {
		t.Errorf("unexpected notifications: %+v", got)
	}

	_, err := c.Update(DraftPatch{Payee: strPtr("Typed By Hand")})
	testutil.AssertNoError(t, err)

	store.pushPayees(t, "u1", "Coffee")
	if c.State().SuggestionsUnavailable {
		t.Error("flag should clear after a good snapshot")
	}
}

func TestController_SubscribeFailure(t *testing.T) {
	store := &fakeStore{subscribeErr: errors.New("offline")}
	c, n := newTestController(t, store)

	if err := c.Mount(identity.NewSession("u1")); err != nil {
		t.Fatalf("mount should degrade, got %v", err)
	}
	if !c.State().SuggestionsUnavailable {
		t.Error("expected suggestions unavailable")
	}
	if len(n.list()) != 1 {
		t.Errorf("expected one notification, got %d", len(n.list()))
	}
}

func TestController_CloseStopsEverything(t *testing.T) {
	c, store, _ := mounted(t, "u1")
	accounts := store.latest(models.CollectionAccounts)

	c.Close()
	if store.activeCount() != 0 {
		t.Errorf("expected subscriptions cancelled, %d still active", store.activeCount())
	}

	accounts.fn(docstore.Snapshot{Docs: []docstore.Document{
		makeDoc(t, models.CollectionAccounts, models.Account{Name: "Cash"}, 0),
	}})
	if len(c.State().KnownAccounts) != 0 {
		t.Error("no updates after close")
	}

	_, err := c.Update(DraftPatch{Payee: strPtr("x")})
	testutil.AssertAppError(t, err, "FORM_CLOSED")
	_, err = c.Submit(context.Background())
	testutil.AssertAppError(t, err, "FORM_CLOSED")
	testutil.AssertAppError(t, c.Mount(identity.NewSession("u1")), "FORM_CLOSED")

	c.Close()
}

func TestController_ChangesSignal(t *testing.T) {
	c, _, _ := mounted(t, "u1")
	// drain the mount signal
	select {
	case <-c.Changes():
	default:
	}

	_, _ = c.SetField(FieldNote, "lunch")
	select {
	case <-c.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}
}

// waitState waits until the form state satisfies ok.
func waitState(t *testing.T, c *Controller, ok func(State) bool) State {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		st := c.State()
		if ok(st) {
			return st
		}
		select {
		case <-c.Changes():
		case <-timeout:
			t.Fatalf("timed out waiting for state, last: %+v", st)
			return st
		}
	}
}

func TestController_WithLiveStore(t *testing.T) {
	backend, err := docstore.OpenBolt(filepath.Join(t.TempDir(), "form.bolt"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	live := docstore.NewLive(backend)
	t.Cleanup(func() { _ = live.Close() })
	ctx := context.Background()

	_, _ = live.Create(ctx, models.CollectionAccounts, "", models.Account{Base: models.Base{CreatedBy: "u1"}, Name: "Cash"})
	_, _ = live.Create(ctx, models.CollectionAccounts, "", models.Account{Base: models.Base{CreatedBy: "u2"}, Name: "Other"})
	_, _ = live.Create(ctx, models.CollectionPayees, "", models.Payee{Base: models.Base{CreatedBy: "u1"}, Name: "Coffee"})

	c, _ := newTestController(t, live)
	if err := c.Mount(identity.NewSession("u1")); err != nil {
		t.Fatalf("mount: %v", err)
	}

	st := waitState(t, c, func(s State) bool { return s.SelectedAccount == "Cash" && len(s.KnownPayees) == 1 })
	if len(st.KnownAccounts) != 1 {
		t.Fatalf("expected only u1 accounts, got %+v", st.KnownAccounts)
	}

	_, _ = c.Update(DraftPatch{Payee: strPtr("Coffee"), Amount: strPtr("150")})
	tx, err := c.Submit(ctx)
	testutil.AssertNoError(t, err)

	docs, err := live.Find(ctx, docstore.NewQuery(models.CollectionTransactions).Where(models.FieldCreatedBy, "u1"))
	testutil.AssertNoError(t, err)
	if len(docs) != 1 || docs[0].ID != tx.ID {
		t.Fatalf("expected the submitted transaction, got %+v", docs)
	}

	_, _ = live.Create(ctx, models.CollectionAccounts, "", models.Account{Base: models.Base{CreatedBy: "u1"}, Name: "Bank"})
	waitState(t, c, func(s State) bool { return len(s.KnownAccounts) == 2 })
}
