package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/model"
)

// ScriptedModel is a model.Model that pops canned replies in call order,
// independent of the request content. Agent turns and narration calls of a
// single run are scripted as one sequence; an unscripted call fails.
type ScriptedModel struct {
	mu    sync.Mutex
	steps []scriptedStep
	calls int
}

type scriptedStep struct {
	text      string
	toolCalls []core.ToolCall
	err       error
}

// Compile-time interface compliance check.
var _ model.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates an empty script.
func NewScriptedModel() *ScriptedModel { return &ScriptedModel{} }

// Reply appends a canned completion with optional tool calls (chainable).
func (m *ScriptedModel) Reply(text string, calls ...core.ToolCall) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, scriptedStep{text: text, toolCalls: calls})

	return m
}

// Fail appends a canned model error (chainable).
func (m *ScriptedModel) Fail(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, scriptedStep{err: err})

	return m
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls++
	var step scriptedStep
	if len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
	} else {
		step = scriptedStep{err: fmt.Errorf("scripted model exhausted after %d calls", m.calls)}
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if step.err != nil {
			errCh <- step.err
			return
		}

		finish := "stop"
		if len(step.toolCalls) > 0 {
			finish = "tool_calls"
		}

		respCh <- model.Response{
			Message:      core.NewAssistantMessage(step.text, step.toolCalls...),
			FinishReason: finish,
		}
	}()

	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}

// CallCount reports how many times Generate has been invoked.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}
