package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"centavo.app/internal/identity"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/signup",
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		userID, err := a.identity.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			} else {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := identity.ContextWithUser(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
