// Package form hosts the new-transaction entry form: its draft state, the
// live payee and account suggestion lists of the signed-in user, and
// validated submission into the transaction collection.
package form

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"hisaab/internal/docstore"
	apperrors "hisaab/internal/errors"
	"hisaab/internal/identity"
	"hisaab/internal/logger"
	"hisaab/internal/metrics"
	"hisaab/internal/models"
	"hisaab/internal/notify"
	"hisaab/internal/uuid"
)

// DocumentStore is the part of the live document store a form needs.
type DocumentStore interface {
	Create(ctx context.Context, collection, id string, data any) (docstore.Ref, error)
	Subscribe(ctx context.Context, q docstore.Query, fn func(docstore.Snapshot)) (docstore.Unsubscribe, error)
}

// State is a point-in-time copy of a form.
type State struct {
	ID                     string                 `json:"id"`
	Session                identity.Session       `json:"session"`
	TransactionType        models.TransactionType `json:"transactionType"`
	Draft                  models.Transaction     `json:"draft"`
	SelectedAccount        string                 `json:"selectedAccount"`
	AccountChosen          bool                   `json:"accountChosen"`
	KnownPayees            []models.Payee         `json:"knownPayees"`
	KnownAccounts          []models.Account       `json:"knownAccounts"`
	Submitting             bool                   `json:"submitting"`
	SuggestionsUnavailable bool                   `json:"suggestionsUnavailable"`
}

// Controller owns one mounted transaction form.
//
// Snapshots arrive on store goroutines while requests mutate the draft, so
// all state is guarded by mu. Each Mount bumps generation; callbacks from
// older subscriptions compare it and drop their snapshot.
type Controller struct {
	id       string
	store    DocumentStore
	notifier notify.Notifier
	now      func() time.Time
	newID    func() string
	log      *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	change chan struct{}

	mu              sync.Mutex
	session         identity.Session
	generation      uint64
	unsubscribe     []docstore.Unsubscribe
	txType          models.TransactionType
	draft           models.Transaction
	selectedAccount string
	accountChosen   bool
	payees          []models.Payee
	accounts        []models.Account
	payeesFailed    bool
	accountsFailed  bool
	submitting      bool
	closed          bool
	lastActive      time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source used for draft timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator sets the generator for new transaction ids.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// New creates an unmounted form. Notifications go to notifier.
func New(id string, store DocumentStore, notifier notify.Notifier, opts ...Option) *Controller {
	c := &Controller{
		id:       id,
		store:    store,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.New,
		change:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.Named("form").With("form_id", id)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	now := c.now()
	c.txType = models.TransactionTypeExpense
	c.draft = newDraft(now, "")
	c.lastActive = now
	return c
}

// ID returns the form identifier.
func (c *Controller) ID() string { return c.id }

// Changes signals after every state change. Signals coalesce.
func (c *Controller) Changes() <-chan struct{} { return c.change }

// Touch marks the form as in use without changing its state. Watchers call
// it so an observed form is not reaped as idle.
func (c *Controller) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.lastActive = c.now()
	}
}

// LastActive returns the time of the last caller interaction.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Mount binds the form to session and subscribes to the user's payees and
// accounts. It must not be called before the identity is ready. Mounting
// with a different user discards all state of the previous one.
func (c *Controller) Mount(session identity.Session) error {
	if !session.Ready || session.UserID == "" {
		return apperrors.ErrIdentityNotReady
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrFormClosed
	}
	stale := c.unsubscribe
	c.unsubscribe = nil
	c.generation++
	gen := c.generation
	if c.session.UserID != session.UserID {
		c.resetLocked(session.UserID)
		c.payees = nil
		c.accounts = nil
		c.selectedAccount = ""
	}
	c.session = session
	c.payeesFailed, c.accountsFailed = false, false
	c.lastActive = c.now()
	c.mu.Unlock()

	for _, unsub := range stale {
		unsub()
	}

	owner := session.UserID
	payeesUnsub, payeesErr := c.store.Subscribe(c.ctx,
		docstore.NewQuery(models.CollectionPayees).Where(models.FieldCreatedBy, owner),
		c.onPayees(gen))
	accountsUnsub, accountsErr := c.store.Subscribe(c.ctx,
		docstore.NewQuery(models.CollectionAccounts).Where(models.FieldCreatedBy, owner),
		c.onAccounts(gen))

	c.mu.Lock()
	var subs []docstore.Unsubscribe
	if payeesErr == nil {
		subs = append(subs, payeesUnsub)
	}
	if accountsErr == nil {
		subs = append(subs, accountsUnsub)
	}
	if c.closed || c.generation != gen {
		c.mu.Unlock()
		for _, unsub := range subs {
			unsub()
		}
		if c.closed {
			return apperrors.ErrFormClosed
		}
		return nil
	}
	c.unsubscribe = subs
	if payeesErr != nil || accountsErr != nil {
		c.payeesFailed = c.payeesFailed || payeesErr != nil
		c.accountsFailed = c.accountsFailed || accountsErr != nil
		c.log.Warnw("subscription failed", "payees_error", payeesErr, "accounts_error", accountsErr)
		c.notifySubscriptionFailure()
	}
	c.signalLocked()
	c.mu.Unlock()
	return nil
}

func (c *Controller) onPayees(gen uint64) func(docstore.Snapshot) {
	return func(s docstore.Snapshot) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.generation {
			return
		}
		if s.Err != nil {
			c.log.Warnw("payee snapshot failed", "error", s.Err)
			if !c.payeesFailed {
				c.payeesFailed = true
				c.notifySubscriptionFailure()
			}
			c.signalLocked()
			return
		}

		payees := make([]models.Payee, 0, len(s.Docs))
		for _, doc := range s.Docs {
			var p models.Payee
			if err := doc.DataTo(&p); err != nil {
				c.log.Warnw("skipping undecodable payee", "error", err)
				continue
			}
			payees = append(payees, p)
		}
		c.payees = payees
		c.payeesFailed = false
		c.signalLocked()
	}
}

func (c *Controller) onAccounts(gen uint64) func(docstore.Snapshot) {
	return func(s docstore.Snapshot) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.generation {
			return
		}
		if s.Err != nil {
			c.log.Warnw("account snapshot failed", "error", s.Err)
			if !c.accountsFailed {
				c.accountsFailed = true
				c.notifySubscriptionFailure()
			}
			c.signalLocked()
			return
		}

		accounts := make([]models.Account, 0, len(s.Docs))
		for _, doc := range s.Docs {
			var a models.Account
			if err := doc.DataTo(&a); err != nil {
				c.log.Warnw("skipping undecodable account", "error", err)
				continue
			}
			accounts = append(accounts, a)
		}
		c.accounts = accounts
		c.accountsFailed = false
		if c.accountChosen && c.selectedAccount != "" && c.findAccountLocked(c.selectedAccount) == nil {
			// The chosen account was deleted or renamed.
			c.accountChosen = false
		}
		if !c.accountChosen {
			c.selectedAccount = c.defaultAccountLocked()
		}
		c.signalLocked()
	}
}

// Update merges patch into the draft.
func (c *Controller) Update(patch DraftPatch) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return State{}, apperrors.ErrFormClosed
	}
	if err := patch.apply(&c.draft); err != nil {
		return State{}, err
	}
	c.txType = c.draft.Type
	c.lastActive = c.now()
	c.signalLocked()
	return c.stateLocked(), nil
}

// SetField sets a single draft field by name, e.g. "payee" or "loan.isLoan".
func (c *Controller) SetField(name, value string) (State, error) {
	patch, err := patchForField(name, value)
	if err != nil {
		return State{}, err
	}
	return c.Update(patch)
}

// SelectAccount sets the posting account by display name. An explicit choice
// is kept across account snapshots until the next reset. The empty name
// clears the selection.
func (c *Controller) SelectAccount(name string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return State{}, apperrors.ErrFormClosed
	}
	if name != "" && c.findAccountLocked(name) == nil {
		return State{}, apperrors.ErrAccountNotFound
	}
	c.selectedAccount = name
	c.accountChosen = true
	c.lastActive = c.now()
	c.signalLocked()
	return c.stateLocked(), nil
}

// Submit validates the draft and writes it as a new transaction.
//
// Payee, amount and the selected account must be non-empty; otherwise an
// error notification is emitted and nothing is written. The document is
// written once with a pre-assigned id. On success the draft is reset; on a
// store failure it is kept so the user can retry. Only one submission may be
// in flight; the write is not cancelled when ctx is.
func (c *Controller) Submit(ctx context.Context) (*models.Transaction, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, apperrors.ErrFormClosed
	}
	if !c.session.Ready {
		c.mu.Unlock()
		return nil, apperrors.ErrIdentityNotReady
	}
	if c.submitting {
		c.mu.Unlock()
		metrics.FormSubmissions.WithLabelValues(metrics.SubmitInFlight).Inc()
		return nil, apperrors.ErrSubmitInProgress
	}
	c.lastActive = c.now()

	if c.draft.Payee == "" || c.draft.Amount == "" || c.selectedAccount == "" {
		c.notifier.Notify(notify.Notification{
			Title:    "Error",
			Message:  apperrors.ErrMissingFields.Message,
			Severity: notify.SeverityError,
			Kind:     notify.KindValidation,
			At:       c.now(),
		})
		c.mu.Unlock()
		metrics.FormSubmissions.WithLabelValues(metrics.SubmitValidation).Inc()
		return nil, apperrors.ErrMissingFields
	}

	record := c.draft
	record.ID = c.newID()
	record.Type = c.txType
	record.Account = c.selectedAccount
	record.CreatedBy = c.session.UserID
	if acc := c.findAccountLocked(c.selectedAccount); acc != nil {
		record.AccountID = acc.ID
	}
	c.submitting = true
	c.signalLocked()
	c.mu.Unlock()

	_, err := c.store.Create(context.WithoutCancel(ctx), models.CollectionTransactions, record.ID, record)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	if err != nil {
		c.log.Errorw("failed to save transaction", "error", err, "transaction_id", record.ID)
		c.notifier.Notify(notify.Notification{
			Title:    "Error",
			Message:  "Could not save the transaction, please try again",
			Severity: notify.SeverityError,
			Kind:     notify.KindStore,
			At:       c.now(),
		})
		c.signalLocked()
		metrics.FormSubmissions.WithLabelValues(metrics.SubmitStoreError).Inc()
		return nil, apperrors.Wrap(apperrors.ErrStoreFailure, err)
	}

	c.notifier.Notify(notify.Notification{
		Title:    "Success",
		Message:  "Transaction added successfully",
		Severity: notify.SeveritySuccess,
		Kind:     notify.KindSubmitted,
		At:       c.now(),
	})
	metrics.FormSubmissions.WithLabelValues(metrics.SubmitSuccess).Inc()

	if !c.closed {
		c.resetLocked(c.session.UserID)
		c.selectedAccount = c.defaultAccountLocked()
		c.signalLocked()
	}
	return &record, nil
}

// State returns a copy of the current form state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close cancels both subscriptions. No state changes after Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
	c.cancel()
}

// resetLocked replaces the draft with a fresh default one.
func (c *Controller) resetLocked(userID string) {
	c.draft = newDraft(c.now(), userID)
	c.txType = models.TransactionTypeExpense
	c.accountChosen = false
}

func (c *Controller) defaultAccountLocked() string {
	if len(c.accounts) > 0 {
		return c.accounts[0].Name
	}
	return ""
}

func (c *Controller) findAccountLocked(name string) *models.Account {
	for i := range c.accounts {
		if c.accounts[i].Name == name {
			return &c.accounts[i]
		}
	}
	return nil
}

func (c *Controller) notifySubscriptionFailure() {
	c.notifier.Notify(notify.Notification{
		Title:    "Suggestions unavailable",
		Message:  "Accounts and payees could not be loaded, you can still type them in",
		Severity: notify.SeverityError,
		Kind:     notify.KindSubscription,
		At:       c.now(),
	})
}

func (c *Controller) signalLocked() {
	select {
	case c.change <- struct{}{}:
	default:
	}
}

func (c *Controller) stateLocked() State {
	payees := make([]models.Payee, len(c.payees))
	copy(payees, c.payees)
	accounts := make([]models.Account, len(c.accounts))
	copy(accounts, c.accounts)

	return State{
		ID:                     c.id,
		Session:                c.session,
		TransactionType:        c.txType,
		Draft:                  c.draft,
		SelectedAccount:        c.selectedAccount,
		AccountChosen:          c.accountChosen,
		KnownPayees:            payees,
		KnownAccounts:          accounts,
		Submitting:             c.submitting,
		SuggestionsUnavailable: c.payeesFailed || c.accountsFailed,
	}
}
