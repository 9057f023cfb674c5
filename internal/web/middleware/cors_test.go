package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := allowedOrigins([]string{" https://eval.example.com/ ", ""})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost:5173", true},
		{"https://localhost", true},
		{"http://127.0.0.1:8888", true},
		{"http://localhost.evil.com", false},
		{"https://eval.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range tests {
		t.Run(tc.origin, func(t *testing.T) {
			if got := isOriginAllowed(tc.origin, allowed); got != tc.want {
				t.Errorf("isOriginAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORS([]string{"https://eval.example.com"})(next)

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/evaluate", nil)
		req.Header.Set("Origin", "https://eval.example.com")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", recorder.Code)
		}
		if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://eval.example.com" {
			t.Errorf("expected origin to be echoed, got %q", got)
		}
		if recorder.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("expected allowed methods on preflight")
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusTeapot {
			t.Errorf("expected request to reach handler, got %d", recorder.Code)
		}
		if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no allow-origin header, got %q", got)
		}
		if recorder.Header().Get("Vary") != "Origin" {
			t.Error("expected Vary: Origin")
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := recorder.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}
