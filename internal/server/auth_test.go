package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestAuthMiddleware_Disabled verifies that an empty key turns auth off.
func TestAuthMiddleware_Disabled(t *testing.T) {
	t.Parallel()

	h := authMiddleware("", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected pass-through with empty key, got %d", w.Code)
	}
}

// TestAuthMiddleware verifies the bearer token checks and challenges.
func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		header        string
		wantCode      int
		wantChallenge string
	}{
		{
			name:          "missing header",
			header:        "",
			wantCode:      http.StatusUnauthorized,
			wantChallenge: `Bearer realm="helpdesk"`,
		},
		{
			name:          "wrong scheme",
			header:        "Basic c2VjcmV0",
			wantCode:      http.StatusUnauthorized,
			wantChallenge: `Bearer realm="helpdesk"`,
		},
		{
			name:          "wrong token",
			header:        "Bearer nope",
			wantCode:      http.StatusUnauthorized,
			wantChallenge: `Bearer realm="helpdesk" error="invalid_token"`,
		},
		{
			name:     "valid token",
			header:   "Bearer secret",
			wantCode: http.StatusOK,
		},
		{
			name:     "case-insensitive scheme",
			header:   "bearer secret",
			wantCode: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := authMiddleware("secret", okHandler)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, w.Code)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != tc.wantChallenge {
				t.Errorf("expected challenge %q, got %q", tc.wantChallenge, got)
			}
		})
	}
}

// TestBearerToken verifies header parsing edge cases.
func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc", "abc"},
		{"Bearerabc", ""},
		{"Basic abc", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
