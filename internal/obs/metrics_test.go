package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/v1/accounts/abc":            "/v1/accounts/:id",
		"/v1/accounts/abc/extra":      "/v1/accounts/abc/extra",
		"/v1/transactions/01HT0":      "/v1/transactions/:id",
		"/v1/transactions?limit=10":   "/v1/transactions",
		"/v1/selection":               "/v1/selection",
		"/v1/selection/balance":       "/v1/selection/balance",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
