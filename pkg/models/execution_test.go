package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionLifecycleTransitions(t *testing.T) {
	execution := &Execution{ID: "exec-1", Status: ExecutionRunning, CurrentNodeID: "msg-1"}
	execution.AppendLog(LogEventStarted, "start-1", "")

	resumeAt := time.Now().UTC().Add(30 * time.Minute)
	execution.Suspend(ExecutionWaiting, "msg-2", &resumeAt)

	assert.Equal(t, ExecutionWaiting, execution.Status)
	assert.Equal(t, "msg-2", execution.CurrentNodeID)
	require.NotNil(t, execution.NextExecutionAt)
	assert.False(t, execution.Status.IsTerminal())

	execution.Complete("flow completed successfully")

	assert.Equal(t, ExecutionCompleted, execution.Status)
	assert.True(t, execution.Status.IsTerminal())
	assert.NotNil(t, execution.CompletedAt)
	assert.Nil(t, execution.NextExecutionAt)

	// Log only ever grows: started, suspended, completed.
	require.Len(t, execution.Log, 3)
	assert.Equal(t, LogEventStarted, execution.Log[0].Event)
	assert.Equal(t, LogEventSuspended, execution.Log[1].Event)
	assert.Equal(t, LogEventCompleted, execution.Log[2].Event)
}

func TestExecutionFail(t *testing.T) {
	execution := &Execution{ID: "exec-1", Status: ExecutionRunning, CurrentNodeID: "msg-1"}

	execution.Fail("send failed: session disconnected")

	assert.Equal(t, ExecutionFailed, execution.Status)
	assert.Equal(t, "send failed: session disconnected", execution.ErrorMessage)
	assert.True(t, execution.Status.IsTerminal())
}

func TestSetVariableInitializesMap(t *testing.T) {
	execution := &Execution{}
	execution.SetVariable("menu_choice", "Sim")

	assert.Equal(t, "Sim", execution.Variables["menu_choice"])
}

func TestMenuOptionHandle(t *testing.T) {
	assert.Equal(t, "option-0", MenuOptionHandle(0))
	assert.Equal(t, "option-2", MenuOptionHandle(2))
}
