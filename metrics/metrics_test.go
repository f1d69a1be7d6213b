package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRun("run", "completed", 1.5)
	m.RecordRun("run", "suspended", 0.3)
	m.RecordRun("resume", "completed", 0.2)

	expected := `
		# HELP agentgate_runs_total Total number of agent runs and resumes by kind and outcome
		# TYPE agentgate_runs_total counter
		agentgate_runs_total{kind="resume",status="completed"} 1
		agentgate_runs_total{kind="run",status="completed"} 1
		agentgate_runs_total{kind="run",status="suspended"} 1
	`
	if err := testutil.CollectAndCompare(m.RunCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}

	if count := testutil.CollectAndCount(m.RunDuration); count != 2 {
		t.Errorf("Expected 2 duration label combinations, got %d", count)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordLLMRequest("anthropic", "claude-sonnet-4", "success", 2.1)
	m.RecordLLMRequest("anthropic", "claude-sonnet-4", "success", 1.8)
	m.RecordLLMRequest("openai", "gpt-4o", "error", 0.5)

	expected := `
		# HELP agentgate_llm_requests_total Total number of LLM requests by provider, model, and status
		# TYPE agentgate_llm_requests_total counter
		agentgate_llm_requests_total{model="claude-sonnet-4",provider="anthropic",status="success"} 2
		agentgate_llm_requests_total{model="gpt-4o",provider="openai",status="error"} 1
	`
	if err := testutil.CollectAndCompare(m.LLMRequestCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestRecordToolExecution(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordToolExecution("get_weather", "success", 0.05)
	m.RecordToolExecution("get_weather", "success", 0.07)
	m.RecordToolExecution("send_email", "rejected", 0)

	expected := `
		# HELP agentgate_tool_executions_total Total number of tool executions by tool name and status
		# TYPE agentgate_tool_executions_total counter
		agentgate_tool_executions_total{status="rejected",tool_name="send_email"} 1
		agentgate_tool_executions_total{status="success",tool_name="get_weather"} 2
	`
	if err := testutil.CollectAndCompare(m.ToolExecutionCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestRecordDecision(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordDecision(true)
	m.RecordDecision(true)
	m.RecordDecision(false)

	expected := `
		# HELP agentgate_decisions_total Total number of human decisions by verdict
		# TYPE agentgate_decisions_total counter
		agentgate_decisions_total{verdict="approved"} 2
		agentgate_decisions_total{verdict="rejected"} 1
	`
	if err := testutil.CollectAndCompare(m.DecisionCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestRecordDiscovery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordDiscovery("success", map[string]int{
		"built-in": 2,
		"weather":  5,
	})

	expected := `
		# HELP agentgate_tools_discovered Current number of discovered tools by source
		# TYPE agentgate_tools_discovered gauge
		agentgate_tools_discovered{source="built-in"} 2
		agentgate_tools_discovered{source="weather"} 5
	`
	if err := testutil.CollectAndCompare(m.ToolsDiscovered, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}

	m.RecordDiscovery("degraded", map[string]int{"built-in": 2})
	if count := testutil.CollectAndCount(m.DiscoveryCounter); count != 2 {
		t.Errorf("Expected 2 discovery status labels, got %d", count)
	}
}

func TestPublishBufferGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordPublish("buffered")
	m.SetPublishBufferSize(3)

	if got := testutil.ToFloat64(m.PublishBufferSize); got != 3 {
		t.Errorf("Expected buffer size 3, got %v", got)
	}

	m.SetPublishBufferSize(0)
	if got := testutil.ToFloat64(m.PublishBufferSize); got != 0 {
		t.Errorf("Expected buffer size 0, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	// Nothing below may panic.
	m.RecordRun("run", "completed", 1)
	m.RecordLLMRequest("anthropic", "claude", "success", 1)
	m.RecordToolExecution("t", "success", 1)
	m.RecordInterrupt("t")
	m.RecordDecision(true)
	m.RecordDiscovery("success", map[string]int{"built-in": 1})
	m.RecordGraphCompile("hit")
	m.RecordPublish("ok")
	m.RecordPublishLatency(0.01)
	m.SetPublishBufferSize(1)
	m.RecordConnectionTransition(false)
	m.RecordError("runner", "timeout")
}

func TestNewWithNilRegisterer(t *testing.T) {
	// Registers on the default registry, so this must be the only New(nil)
	// call in the test binary.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("New(nil) panicked: %v", r)
		}
	}()
	m := New(nil)
	if m.RunCounter == nil {
		t.Fatal("Expected metrics to be constructed")
	}
}
