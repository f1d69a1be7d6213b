package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/internal/testutil"
	"github.com/hupe1980/agentgate/tool"
)

func weatherCall(id string) core.ToolCall {
	return core.ToolCall{ID: id, Name: "get_weather", Arguments: map[string]any{"city": "Berlin"}}
}

func countingWeatherTool(execs *int32) tool.Tool {
	return tool.NewFunctionTool("get_weather", "Get the current weather for a city", map[string]any{
		"type":       "object",
		"properties": map[string]any{"city": map[string]any{"type": "string"}},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		atomic.AddInt32(execs, 1)
		return "sunny, 22C", nil
	})
}

func TestRunAgentStreamsChunks(t *testing.T) {
	e := echo.New()
	h, store, _ := newTestHandler(testutil.NewScriptedModel().Reply("Hello there."), nil)

	req, rec := postJSON(t, "/api/agent/run", map[string]any{
		"message":        "hi",
		"memberId":       "123",
		"serverId":       "456",
		"channelId":      "42",
		"conversationId": "789",
	})
	c := e.NewContext(req, rec)

	require.NoError(t, h.RunAgent(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ndjsonMIME, rec.Header().Get(echo.HeaderContentType))

	chunks := decodeChunks(t, rec.Body.String())
	require.Len(t, chunks, 1)
	assert.Equal(t, core.NewUpdateChunk("Hello there."), chunks[0])

	assert.Equal(t, 1, store.Len())
}

func TestRunAgentStreamsInterruptWireShape(t *testing.T) {
	e := echo.New()

	var execs int32
	h, _, _ := newTestHandler(
		testutil.NewScriptedModel().
			Reply("", weatherCall("call-1")).
			Reply("Should I look up the weather in Berlin?"),
		[]tool.Tool{countingWeatherTool(&execs)},
	)

	req, rec := postJSON(t, "/api/agent/run", map[string]any{
		"message":        "what is the weather in berlin",
		"memberId":       "123",
		"serverId":       "456",
		"conversationId": "789",
	})
	c := e.NewContext(req, rec)

	require.NoError(t, h.RunAgent(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	line := strings.TrimSpace(rec.Body.String())
	assert.Contains(t, line, `"type":"interrupt"`)
	assert.Contains(t, line, `"tool_name":"get_weather"`)
	assert.EqualValues(t, 0, atomic.LoadInt32(&execs))
}

func TestRunAgentAnswersBlankMessageInStream(t *testing.T) {
	e := echo.New()
	m := testutil.NewScriptedModel()
	h, _, _ := newTestHandler(m, nil)

	req, rec := postJSON(t, "/api/agent/run", map[string]any{
		"message":        "   ",
		"memberId":       "123",
		"serverId":       "456",
		"conversationId": "789",
	})
	c := e.NewContext(req, rec)

	require.NoError(t, h.RunAgent(c))

	// Message validation is part of the stream contract, not an HTTP 400.
	assert.Equal(t, http.StatusOK, rec.Code)

	chunks := decodeChunks(t, rec.Body.String())
	require.Len(t, chunks, 1)
	assert.Equal(t, "Error: Provided message must be a non-empty string.\n", chunks[0].Content)
	assert.Empty(t, chunks[0].Type)
	assert.Equal(t, 0, m.CallCount())
}

func TestRunAgentRequiresIdentity(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(testutil.NewScriptedModel(), nil)

	req, rec := postJSON(t, "/api/agent/run", map[string]any{
		"message":  "hi",
		"memberId": "123",
	})
	c := e.NewContext(req, rec)

	require.NoError(t, h.RunAgent(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "memberId, serverId and conversationId are required", errorDetail(t, rec))
}

func TestRunAgentRejectsDecisionCombinedWithMessage(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(testutil.NewScriptedModel(), nil)

	req, rec := postJSON(t, "/api/agent/run", map[string]any{
		"message":        "and also send the email",
		"memberId":       "123",
		"serverId":       "456",
		"conversationId": "789",
		"approved":       true,
	})
	c := e.NewContext(req, rec)

	require.NoError(t, h.RunAgent(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "approved and message cannot be combined in one request", errorDetail(t, rec))
}

func TestRunAgentResumesSuspendedTurn(t *testing.T) {
	e := echo.New()

	var execs int32
	h, store, _ := newTestHandler(
		testutil.NewScriptedModel().
			Reply("Checking the weather in Berlin...").
			Reply("It is sunny in Berlin."),
		[]tool.Tool{countingWeatherTool(&execs)},
	)

	thread := testutil.NewThreadBuilder("123", "456", "789").
		Messages(
			core.NewUserMessage("what is the weather in berlin"),
			core.NewAssistantMessage("", weatherCall("call-1")),
		).
		Pending([]core.ToolCall{weatherCall("call-1")}, "get_weather").
		Build()
	require.NoError(t, store.Save(thread))

	req, rec := postJSON(t, "/api/agent/run", map[string]any{
		"memberId":       "123",
		"serverId":       "456",
		"conversationId": "789",
		"approved":       true,
	})
	c := e.NewContext(req, rec)

	require.NoError(t, h.RunAgent(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	chunks := decodeChunks(t, rec.Body.String())
	require.Len(t, chunks, 2)
	assert.Equal(t, core.ChunkTypeProgress, chunks[0].Type)
	assert.Equal(t, core.ChunkTypeUpdate, chunks[1].Type)
	assert.EqualValues(t, 1, atomic.LoadInt32(&execs))

	persisted, err := store.Get(thread.Key)
	require.NoError(t, err)
	assert.False(t, persisted.IsSuspended())
}

func TestRunAgentWSStreamsTurns(t *testing.T) {
	h, _, _ := newTestHandler(testutil.NewScriptedModel().Reply("Hello there."), nil)

	srv := httptest.NewServer(NewServer(h))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/agent/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// A malformed turn is answered with a validation object and keeps the
	// socket open.
	require.NoError(t, conn.WriteJSON(map[string]any{"message": "hi"}))

	var problem map[string]string
	require.NoError(t, conn.ReadJSON(&problem))
	assert.Equal(t, "memberId, serverId and conversationId are required", problem["detail"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"message":        "hi",
		"memberId":       "123",
		"serverId":       "456",
		"conversationId": "789",
	}))

	var chunk core.Chunk
	require.NoError(t, conn.ReadJSON(&chunk))
	assert.Equal(t, core.NewUpdateChunk("Hello there."), chunk)
}
