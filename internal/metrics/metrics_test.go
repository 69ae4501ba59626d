package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcphub/mcphub/internal/mcp"
)

func TestObserveRequest(t *testing.T) {
	m := New("cpp-analyzer")

	m.ObserveRequest(mcp.MethodToolsList, 0)
	m.ObserveRequest(mcp.MethodToolsList, 0)
	m.ObserveRequest("made/up", -32601)
	m.ObserveRequest("another/one", -32601)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("tools/list", "0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("other", "-32601")))
}

func TestObserveToolCall(t *testing.T) {
	m := New("sp-metadata")

	m.ObserveToolCall("get_sp_list", mcp.OutcomeOK, 10*time.Millisecond)
	m.ObserveToolCall("get_sp_list", mcp.OutcomeError, time.Second)
	m.ObserveToolCall("bogus", mcp.OutcomeUnknownTool, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("get_sp_list", mcp.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("get_sp_list", mcp.OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("", mcp.OutcomeUnknownTool)))
}

func TestHandler(t *testing.T) {
	m := New("cpp-analyzer")
	m.ObserveRequest(mcp.MethodInitialize, 0)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `mcphub_requests_total{code="0",method="initialize",service="cpp-analyzer"} 1`)
}
