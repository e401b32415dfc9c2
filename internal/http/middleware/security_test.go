package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(opt SecurityOptions, prep func(*http.Request)) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	if prep != nil {
		prep(req)
	}
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(SecurityOptions{}, nil)

	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("missing baseline headers: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("%s should be off by default", k)
		}
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, Idempotency-Replayed" {
		t.Fatalf("unexpected expose headers %q", got)
	}
}

func TestSecurityHeaders_AllOptions(t *testing.T) {
	h := serveSecurity(SecurityOptions{
		EnableHSTS:        true,
		HSTSMaxAge:        24 * time.Hour,
		NoStore:           true,
		PermissionsPolicy: DefaultPermissionsPolicy,
	}, func(r *http.Request) { r.TLS = &tls.ConnectionState{} })

	if h.Get("Permissions-Policy") != DefaultPermissionsPolicy || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("missing cache headers: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("unexpected HSTS %q", got)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true}
	if got := serveSecurity(opt, nil).Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP, got %q", got)
	}
	got := serveSecurity(opt, func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") }).Get("Strict-Transport-Security")
	if got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("expected default 180d HSTS behind a TLS proxy, got %q", got)
	}
}

func TestExposeHeader_NoDuplicates(t *testing.T) {
	h := http.Header{}
	h.Set("Access-Control-Expose-Headers", "ETag, x-request-id")
	exposeHeader(h, requestIDHeader)
	exposeHeader(h, "Link")
	if got := h.Get("Access-Control-Expose-Headers"); got != "ETag, x-request-id, Link" {
		t.Fatalf("unexpected %q", got)
	}
}
