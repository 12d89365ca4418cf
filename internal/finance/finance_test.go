package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"centavo.app/internal/docstore"
	"centavo.app/internal/gateway"
	"centavo.app/internal/identity"
)

func newServices(t *testing.T) (context.Context, *AccountService, *TransactionService) {
	t.Helper()
	gw := gateway.New(docstore.NewInMemory())
	ctx := identity.ContextWithUser(context.Background(), "u1")
	return ctx, NewAccountService(gw), NewTransactionService(gw)
}

func TestCalendarDate(t *testing.T) {
	d, err := ParseCalendarDate("2024-05-01")
	if err != nil {
		t.Fatal(err)
	}
	if d.String() != "2024-05-01" {
		t.Fatalf("round trip failed: %s", d)
	}

	at := d.At(time.Local)
	if at.Hour() != 0 || at.Minute() != 0 || at.Second() != 0 {
		t.Fatalf("expected local midnight, got %v", at)
	}
	if DateOf(at) != d {
		t.Fatalf("DateOf(At) != date: %v", DateOf(at))
	}

	if _, err := ParseCalendarDate("01/05/2024"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"100.50", "100.5", true},
		{float64(30), "30", true},
		{int64(7), "7", true},
		{"abc", "0", false},
		{nil, "0", false},
		{true, "0", false},
	}
	for _, c := range cases {
		got, ok := ParseNumber(c.in)
		if ok != c.ok || got.String() != c.want {
			t.Fatalf("ParseNumber(%v) = %s, %v; want %s, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestAccountValidation(t *testing.T) {
	ctx, accounts, _ := newServices(t)

	cases := []AccountInput{
		{Name: "", Type: "Wallet", InitialBalance: "0"},
		{Name: "Cash", Type: "Slush Fund", InitialBalance: "0"},
		{Name: "Cash", Type: "Wallet", InitialBalance: "lots"},
	}
	for _, in := range cases {
		if _, err := accounts.Create(ctx, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("Create(%+v): expected ErrValidation, got %v", in, err)
		}
	}

	acc, err := accounts.Create(ctx, AccountInput{Name: " Cash ", Type: "Wallet", InitialBalance: "100.50"})
	if err != nil {
		t.Fatal(err)
	}
	if acc.Name != "Cash" || acc.Type != AccountWallet {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if acc.InitialBalance.String() != "100.5" {
		t.Fatalf("unexpected initial balance: %s", acc.InitialBalance)
	}
	if acc.UserID != "u1" {
		t.Fatalf("owner not stamped: %q", acc.UserID)
	}
}

func TestTransactionValidation(t *testing.T) {
	ctx, accounts, txs := newServices(t)

	acc, err := accounts.Create(ctx, AccountInput{Name: "Cash", Type: "Wallet", InitialBalance: "0"})
	if err != nil {
		t.Fatal(err)
	}

	valid := TransactionInput{
		AccountID:   acc.ID,
		Kind:        "expense",
		Amount:      "30.00",
		Date:        "2024-05-01",
		Description: "groceries",
	}

	if _, err := txs.Create(ctx, valid); err != nil {
		t.Fatal(err)
	}

	bad := []struct {
		mutate func(*TransactionInput)
		want   error
	}{
		{func(in *TransactionInput) { in.AccountID = "no-such-account" }, ErrAccountNotFound},
		{func(in *TransactionInput) { in.Kind = "transfer" }, ErrValidation},
		{func(in *TransactionInput) { in.Amount = "-5" }, ErrValidation},
		{func(in *TransactionInput) { in.Amount = "0" }, ErrValidation},
		{func(in *TransactionInput) { in.Amount = "abc" }, ErrValidation},
		{func(in *TransactionInput) { in.Date = "yesterday" }, ErrValidation},
		{func(in *TransactionInput) { in.Description = "  " }, ErrValidation},
	}
	for i, c := range bad {
		in := valid
		c.mutate(&in)
		if _, err := txs.Create(ctx, in); !errors.Is(err, c.want) {
			t.Fatalf("case %d: expected %v, got %v", i, c.want, err)
		}
	}
}

func TestUpdateReplacesFullRecord(t *testing.T) {
	ctx, accounts, txs := newServices(t)

	acc, err := accounts.Create(ctx, AccountInput{Name: "Cash", Type: "Wallet", InitialBalance: "0"})
	if err != nil {
		t.Fatal(err)
	}
	tx, err := txs.Create(ctx, TransactionInput{
		AccountID: acc.ID, Kind: "expense", Amount: "30.00",
		Date: "2024-05-01", Description: "groceries",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Updates take the full form; sending only the changed field fails
	// validation instead of preserving the rest.
	if _, err := txs.Update(ctx, tx.ID, TransactionInput{Description: "food"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for partial input, got %v", err)
	}
	if _, err := accounts.Update(ctx, acc.ID, AccountInput{Name: "Renamed"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for partial input, got %v", err)
	}

	updated, err := txs.Update(ctx, tx.ID, TransactionInput{
		AccountID: acc.ID, Kind: "expense", Amount: "30.00",
		Date: "2024-05-01", Description: "food",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Description != "food" || updated.Amount.String() != "30" {
		t.Fatalf("unexpected transaction after update: %+v", updated)
	}
}

func TestTransactionListFiltersByAccount(t *testing.T) {
	ctx, accounts, txs := newServices(t)

	a, err := accounts.Create(ctx, AccountInput{Name: "A", Type: "Wallet", InitialBalance: "0"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := accounts.Create(ctx, AccountInput{Name: "B", Type: "Savings", InitialBalance: "0"})
	if err != nil {
		t.Fatal(err)
	}

	for _, in := range []TransactionInput{
		{AccountID: a.ID, Kind: "expense", Amount: "10", Date: "2024-05-02", Description: "x"},
		{AccountID: a.ID, Kind: "income", Amount: "20", Date: "2024-05-03", Description: "y"},
		{AccountID: b.ID, Kind: "income", Amount: "30", Date: "2024-05-01", Description: "z"},
	} {
		if _, err := txs.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	got, err := txs.List(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(got))
	}
	// Newest date first.
	if got[0].Date.String() != "2024-05-03" || got[1].Date.String() != "2024-05-02" {
		t.Fatalf("order violated: %s, %s", got[0].Date, got[1].Date)
	}

	all, err := txs.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(all))
	}
}

func TestTransactionFromDocumentTolerance(t *testing.T) {
	doc := docstore.Document{
		ID:    "t1",
		Owner: "u1",
		Fields: map[string]any{
			"accountId": "a1",
			"type":      "expense",
			"amount":    "abc",
			"date":      "not-a-date",
		},
	}
	tx := TransactionFromDocument(doc)
	if !tx.Amount.IsZero() {
		t.Fatalf("malformed amount should default to zero, got %s", tx.Amount)
	}
	if !tx.Date.IsZero() {
		t.Fatalf("malformed date should default to zero, got %v", tx.Date)
	}
}
