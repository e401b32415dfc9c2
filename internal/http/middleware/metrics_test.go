package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.DELETE("/recordings/:name", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.PUT("/session/audio", func(c *gin.Context) { c.Status(http.StatusOK) })

	baseDel := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/recordings/:name", "204"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404"))

	for _, name := range []string{"1.mp3", "2.mp3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/recordings/"+name, nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("DELETE -> %d", w.Code)
		}
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/session/audio", strings.NewReader("pcm-bytes")))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/recordings/:name", "204")); got != baseDel+2 {
		t.Fatalf("route counter = %v; want %v", got, baseDel+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.CollectAndCount(httpReqSize); got < 1 {
		t.Fatalf("expected a request size series, got %d", got)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("in-flight = %v; want 0", v)
	}
}
