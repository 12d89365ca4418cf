package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"centavo.app/internal/docstore"
	"centavo.app/internal/gateway"
)

// TransactionInput carries raw form values for creating or updating a
// transaction. Date uses the YYYY-MM-DD form.
type TransactionInput struct {
	AccountID   string `json:"accountId"`
	Kind        string `json:"type"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// TransactionService validates transaction input and persists it via the
// gateway. The account reference is checked client-side only; there is no
// cross-document integrity in the store.
type TransactionService struct {
	gw *gateway.Gateway
}

func NewTransactionService(gw *gateway.Gateway) *TransactionService {
	return &TransactionService{gw: gw}
}

func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (Transaction, error) {
	fields, err := s.transactionFields(ctx, in, true)
	if err != nil {
		return Transaction{}, err
	}
	doc, err := s.gw.Create(ctx, CollectionTransactions, fields)
	if err != nil {
		return Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return TransactionFromDocument(doc), nil
}

// List returns the caller's transactions, newest date first. A non-empty
// accountID restricts the result to that account.
func (s *TransactionService) List(ctx context.Context, accountID string) ([]Transaction, error) {
	var filters []docstore.Filter
	if accountID != "" {
		filters = append(filters, docstore.Filter{Field: "accountId", Op: docstore.OpEqual, Value: accountID})
	}
	docs, err := s.gw.List(ctx, CollectionTransactions, filters, &docstore.Order{Field: "date", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs := make([]Transaction, 0, len(docs))
	for _, doc := range docs {
		txs = append(txs, TransactionFromDocument(doc))
	}
	return txs, nil
}

// Update replaces the transaction's fields with the given input. The input is
// a full form submit, not a partial patch: every field is validated and
// written, so omitted fields fail validation rather than being preserved.
func (s *TransactionService) Update(ctx context.Context, id string, in TransactionInput) (Transaction, error) {
	fields, err := s.transactionFields(ctx, in, true)
	if err != nil {
		return Transaction{}, err
	}
	doc, err := s.gw.Update(ctx, CollectionTransactions, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return TransactionFromDocument(doc), nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	err := s.gw.Delete(ctx, CollectionTransactions, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrTransactionNotFound
	}
	return err
}

func (s *TransactionService) transactionFields(ctx context.Context, in TransactionInput, checkAccount bool) (map[string]any, error) {
	accountID := strings.TrimSpace(in.AccountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account is required", ErrValidation)
	}
	if checkAccount {
		_, found, err := s.gw.GetOne(ctx, CollectionAccounts, accountID)
		if err != nil {
			return nil, fmt.Errorf("verify account: %w", err)
		}
		if !found {
			return nil, ErrAccountNotFound
		}
	}

	kind, err := ParseTransactionKind(in.Kind)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return nil, fmt.Errorf("%w: amount must be a number", ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	date, err := ParseCalendarDate(strings.TrimSpace(in.Date))
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}

	return map[string]any{
		"accountId":   accountID,
		"type":        string(kind),
		"amount":      amount.String(),
		"date":        date.At(time.Local).Format(time.RFC3339),
		"description": description,
	}, nil
}
