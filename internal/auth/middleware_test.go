package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func protected(token string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(func() string { return token })(ok)
}

func TestMiddleware_NoTokenConfiguredIsOpen(t *testing.T) {
	rec := httptest.NewRecorder()
	protected("").ServeHTTP(rec, httptest.NewRequest("POST", "/v1/chat/completions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected open access with no token, got %d", rec.Code)
	}
}

func TestMiddleware_BearerToken(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer secret-token")

	rec := httptest.NewRecorder()
	protected("secret-token").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_CaseInsensitiveScheme(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/enable", nil)
	req.Header.Set("Authorization", "bearer secret-token")

	rec := httptest.NewRecorder()
	protected("secret-token").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected case-insensitive scheme accepted, got %d", rec.Code)
	}
}

func TestMiddleware_QueryToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/stats?token=secret-token", nil)

	rec := httptest.NewRecorder()
	protected("secret-token").ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected query token accepted, got %d", rec.Code)
	}
}

func TestMiddleware_RejectsMissingAndWrongTokens(t *testing.T) {
	cases := []func(*http.Request){
		func(r *http.Request) {},
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") },
		func(r *http.Request) { r.Header.Set("Authorization", "Basic secret-token") },
		func(r *http.Request) { r.URL.RawQuery = "token=wrong" },
	}
	for i, mutate := range cases {
		req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
		mutate(req)
		rec := httptest.NewRecorder()
		protected("secret-token").ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("case %d: expected 401, got %d", i, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"code":"unauthorized"`) {
			t.Errorf("case %d: expected normalized error body, got %s", i, rec.Body.String())
		}
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(token, "clawroute-") {
		t.Errorf("expected clawroute- prefix, got %s", token)
	}
	if len(token) != len("clawroute-")+32 {
		t.Errorf("unexpected token length: %s", token)
	}

	other, _ := GenerateToken()
	if token == other {
		t.Error("tokens must be random")
	}
}
