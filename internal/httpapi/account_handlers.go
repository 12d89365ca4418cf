package httpapi

import (
	"net/http"
	"strings"

	"centavo.app/internal/finance"
)

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAccounts(w, r)
	case http.MethodPost:
		a.createAccount(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getAccount(w, r, id)
	case http.MethodPatch:
		a.updateAccount(w, r, id)
	case http.MethodDelete:
		a.deleteAccount(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var in finance.AccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := a.accounts.Create(r.Context(), in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/accounts/"+acc.ID)
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.accounts.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": accounts})
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request, id string) {
	acc, found, err := a.accounts.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// updateAccount expects the full account form; fields left out of the body
// are rejected by validation, not kept.
func (a *API) updateAccount(w http.ResponseWriter, r *http.Request, id string) {
	var in finance.AccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := a.accounts.Update(r.Context(), id, in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.accounts.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
