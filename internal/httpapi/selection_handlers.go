package httpapi

import (
	"net/http"
	"strings"

	"centavo.app/internal/finance"
	"centavo.app/internal/identity"
	"centavo.app/internal/tracker"
)

type selectRequest struct {
	AccountID string `json:"accountId"`
}

type selectionResponse struct {
	State      string           `json:"state"`
	Account    *finance.Account `json:"account,omitempty"`
	Balance    string           `json:"balance"`
	Loading    bool             `json:"loading"`
	BestEffort bool             `json:"bestEffort,omitempty"`
}

func selectionFromView(v tracker.View) selectionResponse {
	resp := selectionResponse{
		State:      v.State.String(),
		Balance:    v.Balance.String(),
		Loading:    v.Loading,
		BestEffort: v.BestEffort,
	}
	if v.HasAccount {
		acc := v.Account
		resp.Account = &acc
	}
	return resp
}

func (a *API) obtainTracker(w http.ResponseWriter, r *http.Request) (*tracker.Tracker, bool) {
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return a.trackers.Obtain(r.Context(), userID), true
}

func (a *API) handleSelection(w http.ResponseWriter, r *http.Request) {
	tr, ok := a.obtainTracker(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, selectionFromView(tr.Snapshot()))

	case http.MethodPut:
		var req selectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		id := strings.TrimSpace(req.AccountID)
		if id == "" {
			writeError(w, r, http.StatusBadRequest, "accountId is required")
			return
		}

		doc, found, err := a.gw.GetOne(r.Context(), finance.CollectionAccounts, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if !found {
			writeError(w, r, http.StatusNotFound, "account not found")
			return
		}
		if err := tr.SetSelectedAccount(r.Context(), &doc); err != nil {
			writeError(w, r, http.StatusBadGateway, "persisting selection failed")
			return
		}
		writeJSON(w, http.StatusOK, selectionFromView(tr.Snapshot()))

	case http.MethodDelete:
		if err := tr.SetSelectedAccount(r.Context(), nil); err != nil {
			writeError(w, r, http.StatusBadGateway, "clearing selection failed")
			return
		}
		writeJSON(w, http.StatusOK, selectionFromView(tr.Snapshot()))

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleSelectionRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	tr, ok := a.obtainTracker(w, r)
	if !ok {
		return
	}
	tr.RefreshBalance(r.Context())
	writeJSON(w, http.StatusOK, selectionFromView(tr.Snapshot()))
}

func (a *API) handleSelectionBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tr, ok := a.obtainTracker(w, r)
	if !ok {
		return
	}
	v := tr.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":      v.State.String(),
		"balance":    v.Balance.String(),
		"bestEffort": v.BestEffort,
	})
}
