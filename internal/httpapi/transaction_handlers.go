package httpapi

import (
	"net/http"
	"strings"

	"centavo.app/internal/finance"
)

func (a *API) handleTransactionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listTransactions(w, r)
	case http.MethodPost:
		a.createTransaction(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTransactionResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		a.updateTransaction(w, r, id)
	case http.MethodDelete:
		a.deleteTransaction(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createTransaction(w http.ResponseWriter, r *http.Request) {
	var in finance.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := a.transactions.Create(r.Context(), in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/transactions/"+tx.ID)
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account_id"))
	txs, err := a.transactions.List(r.Context(), accountID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": txs})
}

// updateTransaction expects the full transaction form; fields left out of the
// body are rejected by validation, not kept.
func (a *API) updateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	var in finance.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := a.transactions.Update(r.Context(), id, in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) deleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.transactions.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
