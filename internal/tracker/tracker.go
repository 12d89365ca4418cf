// Package tracker maintains which account is active for a session and keeps a
// derived balance consistent with it. The selection survives reloads through
// the local store; the balance is always recomputed, never persisted.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"centavo.app/internal/docstore"
	"centavo.app/internal/finance"
	"centavo.app/internal/gateway"
	"centavo.app/internal/localstore"
)

// selectionKey is the fixed local-storage key holding the selected account
// identifier. Absence means "no selection".
const selectionKey = "selectedAccountId"

// StateKind is the tracker's lifecycle state.
type StateKind int

const (
	// StateInitializing lasts until the persisted selection is rehydrated.
	StateInitializing StateKind = iota
	// StateEmpty means no active account; the balance is defined as zero.
	StateEmpty
	// StateSelected means an account is active and a balance is derived
	// for it.
	StateSelected
)

func (k StateKind) String() string {
	switch k {
	case StateEmpty:
		return "empty"
	case StateSelected:
		return "selected"
	default:
		return "initializing"
	}
}

// View is the tracker's observable state.
type View struct {
	State      StateKind
	Account    finance.Account
	HasAccount bool
	Balance    decimal.Decimal
	Loading    bool
	// BestEffort marks a balance computed without its transactions after a
	// fetch failure.
	BestEffort bool
}

// Tracker tracks one identity's selected account. All methods are safe for
// concurrent use; overlapping recomputations resolve through a generation
// counter so a stale result never overwrites a fresher one.
type Tracker struct {
	gw    *gateway.Gateway
	local localstore.Store
	owner string

	mu         sync.Mutex
	state      StateKind
	account    docstore.Document
	hasAccount bool
	balance    decimal.Decimal
	loading    bool
	bestEffort bool
	gen        uint64
}

// New creates a tracker in the Initializing state. Call Init to rehydrate.
func New(gw *gateway.Gateway, local localstore.Store, owner string) *Tracker {
	return &Tracker{
		gw:      gw,
		local:   local,
		owner:   owner,
		state:   StateInitializing,
		balance: decimal.Zero,
	}
}

// Init reads the persisted selection, verifies the account still exists and
// is still owned by this identity, and transitions to Selected or Empty.
// Stale entries are purged. The context must carry the owner identity.
func (t *Tracker) Init(ctx context.Context) {
	id, err := t.local.Get(ctx, t.owner, selectionKey)
	if errors.Is(err, localstore.ErrNoEntry) {
		t.toEmpty()
		return
	}
	if err != nil {
		slog.Error("read persisted selection", "err", err)
		t.toEmpty()
		return
	}

	doc, found, err := t.gw.GetOne(ctx, finance.CollectionAccounts, id)
	if err != nil || !found || doc.Owner != t.owner {
		if err != nil {
			slog.Error("fetch persisted selection", "account", id, "err", err)
		} else {
			slog.Warn("purging stale selection", "account", id)
		}
		t.purge(ctx)
		t.toEmpty()
		return
	}

	t.mu.Lock()
	t.state = StateSelected
	t.account = doc
	t.hasAccount = true
	t.mu.Unlock()
	t.recompute(ctx)
}

// SetSelectedAccount activates the given account, or clears the selection
// when doc is nil. The choice is persisted immediately.
func (t *Tracker) SetSelectedAccount(ctx context.Context, doc *docstore.Document) error {
	if doc == nil {
		t.purge(ctx)
		t.toEmpty()
		return nil
	}
	if err := t.local.Set(ctx, t.owner, selectionKey, doc.ID); err != nil {
		return err
	}
	t.mu.Lock()
	t.state = StateSelected
	t.account = *doc
	t.hasAccount = true
	t.mu.Unlock()
	t.recompute(ctx)
	return nil
}

// RefreshBalance recomputes the derived balance for the current selection.
// A no-op when nothing is selected.
func (t *Tracker) RefreshBalance(ctx context.Context) {
	t.mu.Lock()
	selected := t.state == StateSelected
	t.mu.Unlock()
	if selected {
		t.recompute(ctx)
	}
}

// Teardown transitions to Empty and removes the persisted entry,
// unconditionally. Called on logout.
func (t *Tracker) Teardown(ctx context.Context) {
	t.purge(ctx)
	t.toEmpty()
}

// Snapshot returns the current observable state.
func (t *Tracker) Snapshot() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := View{
		State:      t.state,
		HasAccount: t.hasAccount,
		Balance:    t.balance,
		Loading:    t.loading,
		BestEffort: t.bestEffort,
	}
	if t.hasAccount {
		v.Account = finance.AccountFromDocument(t.account)
	}
	return v
}

func (t *Tracker) toEmpty() {
	t.mu.Lock()
	t.state = StateEmpty
	t.account = docstore.Document{}
	t.hasAccount = false
	t.balance = decimal.Zero
	t.loading = false
	t.bestEffort = false
	t.gen++ // invalidate any in-flight recomputation
	t.mu.Unlock()
}

func (t *Tracker) purge(ctx context.Context) {
	if err := t.local.Delete(ctx, t.owner, selectionKey); err != nil {
		slog.Error("clear persisted selection", "err", err)
	}
}

func (t *Tracker) recompute(ctx context.Context) {
	t.mu.Lock()
	if !t.hasAccount {
		t.balance = decimal.Zero
		t.loading = false
		t.mu.Unlock()
		return
	}
	t.gen++
	gen := t.gen
	account := t.account
	t.loading = true
	t.mu.Unlock()

	balance, bestEffort := t.computeBalance(ctx, account)

	t.mu.Lock()
	if gen == t.gen {
		t.balance = balance
		t.bestEffort = bestEffort
		t.loading = false
	}
	t.mu.Unlock()
}

// computeBalance folds the account's transactions into a single balance,
// starting from the stored initial balance. Malformed amounts are skipped so
// one corrupt record never blocks the aggregate; a failed fetch falls back to
// the initial balance alone.
func (t *Tracker) computeBalance(ctx context.Context, account docstore.Document) (balance decimal.Decimal, bestEffort bool) {
	initial, initialOK := finance.ParseNumber(account.Fields["initialBalance"])

	id := strings.TrimSpace(account.ID)
	if id == "" {
		slog.Error("selected account has no identifier")
		if !initialOK {
			return decimal.Zero, false
		}
		return initial, false
	}
	if !initialOK {
		slog.Error("initial balance is not a valid number",
			"account", id, "value", account.Fields["initialBalance"])
		return decimal.Zero, false
	}

	docs, err := t.gw.List(ctx, finance.CollectionTransactions,
		[]docstore.Filter{{Field: "accountId", Op: docstore.OpEqual, Value: id}}, nil)
	if err != nil {
		slog.Error("fetch transactions for balance", "account", id, "err", err)
		return initial, true
	}

	balance = initial
	for _, doc := range docs {
		amount, ok := finance.ParseNumber(doc.Fields["amount"])
		if !ok {
			slog.Warn("skipping transaction with malformed amount",
				"transaction", doc.ID, "value", doc.Fields["amount"])
			continue
		}
		switch kind, _ := doc.Fields["type"].(string); finance.TransactionKind(kind) {
		case finance.KindExpense:
			balance = balance.Sub(amount)
		case finance.KindIncome:
			balance = balance.Add(amount)
		}
	}
	return balance, false
}
