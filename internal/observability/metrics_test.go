package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/msgwire/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(codecOperations.WithLabelValues("encode", "Person", ResultOK))
	RecordCodecOp("encode", "Person", ResultOK, 11)
	RecordCodecOp("encode", "Person", ResultInvalid, -1)
	after := testutil.ToFloat64(codecOperations.WithLabelValues("encode", "Person", ResultOK))
	if after != before+1 {
		t.Fatalf("expected counter to grow by one, got %v -> %v", before, after)
	}
	RecordHTTPRequest("wired", "GET", "/health", 200, 12*time.Millisecond)

	testlog.Logf(t, "observability/metrics: registration idempotent and recording paths executed")
}

func TestMiddlewaresRecordRequests(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var logs strings.Builder
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&logs)), RequestMetricsMiddleware("test-node"))
	r.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusTeapot, "x") })
	r.GET("/metrics", gin.WrapH(Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if !strings.Contains(logs.String(), `"path":"/items/:id"`) || !strings.Contains(logs.String(), `"level":"warn"`) {
		t.Fatalf("unexpected request log %s", logs.String())
	}
	got := testutil.ToFloat64(httpRequests.WithLabelValues("test-node", "GET", "/items/:id", "418"))
	if got < 1 {
		t.Fatalf("request not counted")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "msgwire_http_requests_total") {
		t.Fatalf("metrics endpoint missing http counter")
	}
}

func TestRecoveryLogsPanic(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var logs strings.Builder
	r := gin.New()
	r.Use(Recovery(zerolog.New(&logs)))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if !strings.Contains(logs.String(), "http_panic") {
		t.Fatalf("panic not logged: %s", logs.String())
	}
}
