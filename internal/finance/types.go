// Package finance holds the account and transaction domain model and the
// services that manage them through the persistence gateway.
package finance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"centavo.app/internal/docstore"
)

// Collections in the document store.
const (
	CollectionAccounts     = "accounts"
	CollectionTransactions = "transactions"
)

var (
	// ErrValidation covers any input rejected before a store call.
	ErrValidation = errors.New("finance: validation failed")

	ErrAccountNotFound     = errors.New("finance: account not found")
	ErrTransactionNotFound = errors.New("finance: transaction not found")
)

// AccountType is the fixed account category enumeration.
type AccountType string

const (
	AccountWallet     AccountType = "Wallet"
	AccountChecking   AccountType = "Checking"
	AccountSavings    AccountType = "Savings"
	AccountInvestment AccountType = "Investment"
	AccountOther      AccountType = "Other"
)

// ParseAccountType validates a raw category value.
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(s) {
	case AccountWallet, AccountChecking, AccountSavings, AccountInvestment, AccountOther:
		return AccountType(s), nil
	}
	return "", fmt.Errorf("%w: unknown account type %q", ErrValidation, s)
}

// TransactionKind carries the sign of a transaction; stored amounts are
// always strictly positive.
type TransactionKind string

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

// ParseTransactionKind validates a raw kind value.
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch TransactionKind(s) {
	case KindExpense, KindIncome:
		return TransactionKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, s)
}

// CalendarDate is a date with no time component. Transactions carry one and
// persist it as the local-midnight instant, which keeps it distinct from the
// full instants used for record timestamps.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates an instant to its calendar date in the instant's location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseCalendarDate parses the YYYY-MM-DD form.
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return DateOf(t), nil
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// At returns the date as midnight in the given location.
func (d CalendarDate) At(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

// MarshalJSON renders the YYYY-MM-DD form; the zero date renders as null.
func (d CalendarDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *CalendarDate) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = CalendarDate{}
		return nil
	}
	var err error
	*d, err = ParseCalendarDate(strings.Trim(s, `"`))
	return err
}

// Account is a named container transactions are recorded against. The owner
// is immutable after creation; the stored balance is only the initial one,
// the running balance is always derived.
type Account struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt,omitempty"`
}

// Transaction is a single income or expense recorded against an account.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	AccountID   string          `json:"accountId"`
	Kind        TransactionKind `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        CalendarDate    `json:"date"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty"`
}

// ParseNumber parses a stored numeric field leniently: documents written by
// older clients may carry numbers as strings or as JSON floats.
func ParseNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	}
	return decimal.Zero, false
}

// AccountFromDocument maps a stored document onto the domain type. Numeric
// anomalies default to zero here; the tracker applies its own fallback rules
// when computing balances.
func AccountFromDocument(doc docstore.Document) Account {
	initial, _ := ParseNumber(doc.Fields["initialBalance"])
	name, _ := doc.Fields["name"].(string)
	typ, _ := doc.Fields["type"].(string)
	return Account{
		ID:             doc.ID,
		UserID:         doc.Owner,
		Name:           name,
		Type:           AccountType(typ),
		InitialBalance: initial,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

// TransactionFromDocument maps a stored document onto the domain type.
func TransactionFromDocument(doc docstore.Document) Transaction {
	amount, _ := ParseNumber(doc.Fields["amount"])
	accountID, _ := doc.Fields["accountId"].(string)
	kind, _ := doc.Fields["type"].(string)
	description, _ := doc.Fields["description"].(string)

	var date CalendarDate
	if raw, _ := doc.Fields["date"].(string); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			date = DateOf(t)
		}
	}
	return Transaction{
		ID:          doc.ID,
		UserID:      doc.Owner,
		AccountID:   accountID,
		Kind:        TransactionKind(kind),
		Amount:      amount,
		Date:        date,
		Description: description,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
