// Package httpapi is the HTTP surface of the service: authentication,
// account and transaction CRUD, and the selected-account view.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"centavo.app/internal/finance"
	"centavo.app/internal/gateway"
	"centavo.app/internal/identity"
	"centavo.app/internal/obs"
	"centavo.app/internal/tracker"
)

// ReadyProbe reports backend readiness (for example a DB ping). A nil DB
// means the in-memory backend, which is always ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	identity     *identity.Service
	gw           *gateway.Gateway
	accounts     *finance.AccountService
	transactions *finance.TransactionService
	trackers     *tracker.Registry

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, idsvc *identity.Service, gw *gateway.Gateway, trackers *tracker.Registry) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		identity:     idsvc,
		gw:           gw,
		accounts:     finance.NewAccountService(gw),
		transactions: finance.NewTransactionService(gw),
		trackers:     trackers,
		rateBurst:    20,
		ratePerSec:   10,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// accounts and transactions
	a.mux.HandleFunc("/v1/accounts", a.handleAccountsCollection)
	a.mux.HandleFunc("/v1/accounts/", a.handleAccountResource)
	a.mux.HandleFunc("/v1/transactions", a.handleTransactionsCollection)
	a.mux.HandleFunc("/v1/transactions/", a.handleTransactionResource)

	// selected-account view
	a.mux.HandleFunc("/v1/selection", a.handleSelection)
	a.mux.HandleFunc("/v1/selection/refresh", a.handleSelectionRefresh)
	a.mux.HandleFunc("/v1/selection/balance", a.handleSelectionBalance)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "centavo-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "centavo-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps service errors onto status codes. Anything unknown
// is treated as a backend fault.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, finance.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, finance.ErrAccountNotFound):
		writeError(w, r, http.StatusNotFound, "account not found")
	case errors.Is(err, finance.ErrTransactionNotFound):
		writeError(w, r, http.StatusNotFound, "transaction not found")
	default:
		writeError(w, r, http.StatusBadGateway, "backend unavailable")
	}
}
