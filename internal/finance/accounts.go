package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"centavo.app/internal/docstore"
	"centavo.app/internal/gateway"
)

// AccountInput carries raw form values for creating or updating an account.
type AccountInput struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	InitialBalance string `json:"initialBalance"`
}

// AccountService validates account input and persists it via the gateway.
type AccountService struct {
	gw *gateway.Gateway
}

func NewAccountService(gw *gateway.Gateway) *AccountService {
	return &AccountService{gw: gw}
}

func (s *AccountService) Create(ctx context.Context, in AccountInput) (Account, error) {
	fields, err := accountFields(in)
	if err != nil {
		return Account{}, err
	}
	doc, err := s.gw.Create(ctx, CollectionAccounts, fields)
	if err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return AccountFromDocument(doc), nil
}

// List returns the caller's accounts, newest first.
func (s *AccountService) List(ctx context.Context) ([]Account, error) {
	docs, err := s.gw.List(ctx, CollectionAccounts, nil, &docstore.Order{Field: "createdAt", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]Account, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, AccountFromDocument(doc))
	}
	return accounts, nil
}

func (s *AccountService) Get(ctx context.Context, id string) (Account, bool, error) {
	doc, found, err := s.gw.GetOne(ctx, CollectionAccounts, id)
	if err != nil || !found {
		return Account{}, false, err
	}
	return AccountFromDocument(doc), true, nil
}

// Update replaces the account's fields with the given input. The input is a
// full form submit, not a partial patch: omitted fields fail validation
// rather than being preserved.
func (s *AccountService) Update(ctx context.Context, id string, in AccountInput) (Account, error) {
	fields, err := accountFields(in)
	if err != nil {
		return Account{}, err
	}
	doc, err := s.gw.Update(ctx, CollectionAccounts, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("update account: %w", err)
	}
	return AccountFromDocument(doc), nil
}

func (s *AccountService) Delete(ctx context.Context, id string) error {
	err := s.gw.Delete(ctx, CollectionAccounts, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}

func accountFields(in AccountInput) (map[string]any, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	typ, err := ParseAccountType(in.Type)
	if err != nil {
		return nil, err
	}
	initial, err := decimal.NewFromString(strings.TrimSpace(in.InitialBalance))
	if err != nil {
		return nil, fmt.Errorf("%w: initial balance must be a number", ErrValidation)
	}
	return map[string]any{
		"name":           name,
		"type":           string(typ),
		"initialBalance": initial.String(),
	}, nil
}
