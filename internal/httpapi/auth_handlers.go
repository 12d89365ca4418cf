package httpapi

import (
	"errors"
	"net/http"

	"centavo.app/internal/identity"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.identity.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.identity.Login(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.identity.Logout(r.Context(), userID); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

// handleIdentityError maps the credential error taxonomy onto status codes
// and stable, user-facing messages.
func handleIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidEmail):
		writeError(w, r, http.StatusBadRequest, "enter a valid email address")
	case errors.Is(err, identity.ErrWeakPassword):
		writeError(w, r, http.StatusBadRequest, "password must be at least 6 characters")
	case errors.Is(err, identity.ErrEmailInUse):
		writeError(w, r, http.StatusConflict, "an account with this email already exists")
	case errors.Is(err, identity.ErrUserNotFound):
		writeError(w, r, http.StatusUnauthorized, "no account found with this email")
	case errors.Is(err, identity.ErrWrongPassword):
		writeError(w, r, http.StatusUnauthorized, "incorrect password")
	case errors.Is(err, identity.ErrUserDisabled):
		writeError(w, r, http.StatusForbidden, "this account has been disabled")
	case errors.Is(err, identity.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	default:
		writeError(w, r, http.StatusBadGateway, "backend unavailable")
	}
}
