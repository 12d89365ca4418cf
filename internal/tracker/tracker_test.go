package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"centavo.app/internal/docstore"
	"centavo.app/internal/finance"
	"centavo.app/internal/gateway"
	"centavo.app/internal/identity"
	"centavo.app/internal/localstore"
)

type fixture struct {
	store *docstore.InMemory
	gw    *gateway.Gateway
	local *localstore.Memory
	ctx   context.Context
}

func newFixture(owner string) *fixture {
	store := docstore.NewInMemory()
	return &fixture{
		store: store,
		gw:    gateway.New(store),
		local: localstore.NewMemory(),
		ctx:   identity.ContextWithUser(context.Background(), owner),
	}
}

func (f *fixture) addAccount(t *testing.T, initialBalance any) docstore.Document {
	t.Helper()
	doc, err := f.gw.Create(f.ctx, finance.CollectionAccounts, map[string]any{
		"name":           "Cash",
		"type":           "Wallet",
		"initialBalance": initialBalance,
	})
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func (f *fixture) addTransaction(t *testing.T, accountID, kind string, amount any) {
	t.Helper()
	_, err := f.gw.Create(f.ctx, finance.CollectionTransactions, map[string]any{
		"accountId": accountID,
		"type":      kind,
		"amount":    amount,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func requireBalance(t *testing.T, tr *Tracker, want string) {
	t.Helper()
	v := tr.Snapshot()
	if v.Loading {
		t.Fatal("recomputation still marked in progress")
	}
	if !v.Balance.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("balance = %s, want %s", v.Balance, want)
	}
}

func TestBalanceFoldSkipsMalformedAmounts(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "100.50")
	f.addTransaction(t, acc.ID, "expense", "30.00")
	f.addTransaction(t, acc.ID, "income", "20.00")
	f.addTransaction(t, acc.ID, "expense", "abc") // malformed, must be skipped

	tr := New(f.gw, f.local, "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}

	requireBalance(t, tr, "90.50")
	if v := tr.Snapshot(); v.State != StateSelected || v.BestEffort {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestBalanceWithNoTransactionsIsInitialBalance(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "42.10")

	tr := New(f.gw, f.local, "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}
	requireBalance(t, tr, "42.10")
}

func TestMalformedInitialBalanceYieldsZero(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "lots")
	// Transactions exist, but the fetch must be skipped entirely.
	f.addTransaction(t, acc.ID, "income", "500")

	tr := New(f.gw, f.local, "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}
	requireBalance(t, tr, "0")
}

func TestSelectionRoundTripAfterReload(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "10")

	tr := New(f.gw, f.local, "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}

	// Simulated reload: a fresh tracker over the same local store.
	reloaded := New(f.gw, f.local, "u1")
	reloaded.Init(f.ctx)

	v := reloaded.Snapshot()
	if v.State != StateSelected || v.Account.ID != acc.ID {
		t.Fatalf("selection not restored: %+v", v)
	}
	requireBalance(t, reloaded, "10")
}

func TestTamperedSelectionIsPurged(t *testing.T) {
	f := newFixture("u1")

	// An account owned by someone else ends up referenced from u1's storage.
	foreignCtx := identity.ContextWithUser(context.Background(), "mallory")
	foreign, err := f.gw.Create(foreignCtx, finance.CollectionAccounts, map[string]any{
		"name": "Theirs", "type": "Wallet", "initialBalance": "0",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.local.Set(f.ctx, "u1", selectionKey, foreign.ID); err != nil {
		t.Fatal(err)
	}

	tr := New(f.gw, f.local, "u1")
	tr.Init(f.ctx)

	if v := tr.Snapshot(); v.State != StateEmpty {
		t.Fatalf("expected Empty after tamper, got %+v", v)
	}
	if _, err := f.local.Get(f.ctx, "u1", selectionKey); !errors.Is(err, localstore.ErrNoEntry) {
		t.Fatalf("stale entry not purged: %v", err)
	}
}

func TestVanishedSelectionIsPurged(t *testing.T) {
	f := newFixture("u1")
	if err := f.local.Set(f.ctx, "u1", selectionKey, "deleted-account"); err != nil {
		t.Fatal(err)
	}

	tr := New(f.gw, f.local, "u1")
	tr.Init(f.ctx)

	if v := tr.Snapshot(); v.State != StateEmpty {
		t.Fatalf("expected Empty, got %+v", v)
	}
	if _, err := f.local.Get(f.ctx, "u1", selectionKey); !errors.Is(err, localstore.ErrNoEntry) {
		t.Fatalf("stale entry not purged: %v", err)
	}
}

func TestNoSelectionStaysEmptyDespiteAccounts(t *testing.T) {
	f := newFixture("u1")
	f.addAccount(t, "10")
	f.addAccount(t, "20")

	tr := New(f.gw, f.local, "u1")
	tr.Init(f.ctx)

	v := tr.Snapshot()
	if v.State != StateEmpty || v.HasAccount {
		t.Fatalf("tracker must never auto-select: %+v", v)
	}
	if !v.Balance.IsZero() {
		t.Fatalf("empty balance must be zero, got %s", v.Balance)
	}
}

func TestTeardownClearsSelection(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "10")

	tr := New(f.gw, f.local, "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}

	tr.Teardown(f.ctx)

	v := tr.Snapshot()
	if v.State != StateEmpty || v.HasAccount || !v.Balance.IsZero() {
		t.Fatalf("teardown incomplete: %+v", v)
	}
	if _, err := f.local.Get(f.ctx, "u1", selectionKey); !errors.Is(err, localstore.ErrNoEntry) {
		t.Fatalf("persisted selection survived teardown: %v", err)
	}
}

func TestClearSelection(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "10")

	tr := New(f.gw, f.local, "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}
	if err := tr.SetSelectedAccount(f.ctx, nil); err != nil {
		t.Fatal(err)
	}

	if v := tr.Snapshot(); v.State != StateEmpty {
		t.Fatalf("expected Empty after clearing, got %+v", v)
	}
	if _, err := f.local.Get(f.ctx, "u1", selectionKey); !errors.Is(err, localstore.ErrNoEntry) {
		t.Fatalf("persisted selection survived clear: %v", err)
	}
}

// failingTransactions fails transaction queries to simulate a backend outage.
type failingTransactions struct {
	docstore.Store
}

func (f *failingTransactions) Query(ctx context.Context, collection, owner string, filters []docstore.Filter, order *docstore.Order) ([]docstore.Document, error) {
	if collection == finance.CollectionTransactions {
		return nil, errors.New("backend unavailable")
	}
	return f.Store.Query(ctx, collection, owner, filters, order)
}

func TestFetchFailureFallsBackToInitialBalance(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "100.50")
	f.addTransaction(t, acc.ID, "expense", "30.00")

	gw := gateway.New(&failingTransactions{Store: f.store})
	tr := New(gw, f.local, "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}

	v := tr.Snapshot()
	if !v.Balance.Equal(decimal.RequireFromString("100.50")) {
		t.Fatalf("expected fallback to initial balance, got %s", v.Balance)
	}
	if !v.BestEffort {
		t.Fatal("fallback balance must be marked best-effort")
	}
}

func TestRefreshBalancePicksUpNewTransactions(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "100")

	tr := New(f.gw, f.local, "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}
	requireBalance(t, tr, "100")

	f.addTransaction(t, acc.ID, "expense", "25")
	tr.RefreshBalance(f.ctx)
	requireBalance(t, tr, "75")
}

func TestRegistryLifecycle(t *testing.T) {
	f := newFixture("u1")
	acc := f.addAccount(t, "10")

	reg := NewRegistry(f.gw, f.local)
	tr := reg.Obtain(context.Background(), "u1")
	if err := tr.SetSelectedAccount(f.ctx, &acc); err != nil {
		t.Fatal(err)
	}

	stream := identity.NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, stream)
		close(done)
	}()

	// Publish until the consumer has picked the transition up; the stream
	// drops transitions published before a subscriber registers.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stream.Publish(identity.State{Phase: identity.PhaseAnonymous, UserID: "u1"})
		if _, err := f.local.Get(f.ctx, "u1", selectionKey); errors.Is(err, localstore.ErrNoEntry) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("logout did not purge selection")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	fresh := reg.Obtain(context.Background(), "u1")
	if fresh == tr {
		t.Fatal("tracker not released on logout")
	}
	if v := fresh.Snapshot(); v.State != StateEmpty {
		t.Fatalf("expected Empty after logout, got %+v", v)
	}
}
