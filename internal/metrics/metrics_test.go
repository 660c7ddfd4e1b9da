package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("read", "error"))

	RecordOperation("read", errors.New("boom"), time.Millisecond)
	RecordOperation("read", nil, time.Millisecond)

	if got := testutil.ToFloat64(operationsTotal.WithLabelValues("read", "error")); got != before+1 {
		t.Errorf("Expected error counter %v, got %v", before+1, got)
	}
}

func TestSetActiveSessions(t *testing.T) {
	SetActiveSessions(3)
	if got := testutil.ToFloat64(activeSessions); got != 3 {
		t.Errorf("Expected 3 active sessions, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	RecordConnect("ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "sftp_mcp_connects_total") {
		t.Error("Metrics output should contain the connect counter")
	}
}
