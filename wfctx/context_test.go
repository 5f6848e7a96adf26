package wfctx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsCorrelationID(t *testing.T) {
	c := New()
	require.NotEmpty(t, c.CorrelationID)
	assert.Empty(t, c.CausationID)
	assert.Equal(t, 1, c.TraceFlags)
}

func TestNewAppliesOptions(t *testing.T) {
	c := New(
		WithWorkflowID("wf-1"),
		WithSessionID("sess-1"),
		WithMetadata("environment", "production"),
		WithTag("team", "platform"),
	)

	assert.Equal(t, "wf-1", c.WorkflowID)
	assert.Equal(t, "sess-1", c.SessionID)
	assert.Equal(t, "production", c.Environment())
	assert.Equal(t, "platform", c.Tags["team"])
}

func TestChildInheritsAndForks(t *testing.T) {
	parent := New(WithMetadata("environment", "staging"))
	parent.SpanID = "span-a"
	parent.Baggage["tenant"] = "acme"

	child := parent.Child()

	assert.Equal(t, parent.CorrelationID, child.CorrelationID)
	assert.Equal(t, parent.CorrelationID, child.CausationID)
	assert.Equal(t, "span-a", child.ParentSpanID)

	// Mutating the child's maps must not affect the parent.
	child.Baggage["tenant"] = "other"
	child.Metadata["environment"] = "production"
	assert.Equal(t, "acme", parent.Baggage["tenant"])
	assert.Equal(t, "staging", parent.Environment())
}

func TestCheckpointAndElapsed(t *testing.T) {
	c := New()
	time.Sleep(2 * time.Millisecond)
	c.Checkpoint("validated")
	require.Len(t, c.Checkpoints, 1)
	assert.Equal(t, "validated", c.Checkpoints[0].Name)
	assert.Greater(t, c.Elapsed(), time.Duration(0))
}

func TestTraceAttrsIncludesCorrelationID(t *testing.T) {
	c := New(WithWorkflowID("wf-2"))
	attrs := c.TraceAttrs()

	found := false
	for _, kv := range attrs {
		if string(kv.Key) == "workflow.correlation_id" {
			found = true
			assert.Equal(t, c.CorrelationID, kv.Value.AsString())
		}
	}
	assert.True(t, found, "expected workflow.correlation_id attribute")
}
