package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func TestCollector(t *testing.T) {
	c := NewCollector("emotivoice", zaptest.NewLogger(t))

	c.ObserveStage(StageTTS, "gpt_sovits", 200*time.Millisecond, false)
	c.ObserveStage(StageTTS, "gpt_sovits", time.Second, true)
	c.RecordFallback("parse_failed")
	c.RecordRequest("/chat_api/text", 200)

	if got := testutil.ToFloat64(c.stageFailures.WithLabelValues(StageTTS, "gpt_sovits")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(c.fallbackReplies.WithLabelValues("parse_failed")); got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `emotivoice_requests_total{route="/chat_api/text",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.ObserveStage(StageASR, "funasr", time.Second, true)
	c.RecordFallback("stream_error")
	c.RecordRequest("/health", 200)
}
