// Package wfctx provides the per-request envelope that flows through every
// primitive in the runtime: trace/correlation identifiers, baggage, tags,
// free-form metadata and scratch state, and timing checkpoints.
package wfctx

import (
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Context carries identifiers, tracing, baggage, tags, and timing for a
// single workflow execution. It is logically owned by the currently
// executing primitive and shared by reference with the children it spawns
// directly (Sequential); primitives that fan out (Parallel) call Child() to
// obtain an independent copy per branch.
//
// Context is not safe for concurrent mutation of its maps from multiple
// goroutines without first calling Child() to fork an independent copy -
// only correlation/trace identifiers are meant to be shared as-is.
type Context struct {
	WorkflowID string
	SessionID  string
	PlayerID   string

	// CorrelationID is mandatory and unique per top-level request.
	CorrelationID string
	// CausationID is the correlation ID of the request that caused this one.
	CausationID string

	TraceID      string
	SpanID       string
	ParentSpanID string
	TraceFlags   int

	Baggage  map[string]string
	Tags     map[string]string
	Metadata map[string]any
	State    map[string]any

	StartTime   time.Time
	Checkpoints []Checkpoint
}

// Checkpoint is a named timestamp recorded on a Context.
type Checkpoint struct {
	Name string
	At   time.Time
}

// Option configures a new Context.
type Option func(*Context)

// WithWorkflowID sets the workflow identifier.
func WithWorkflowID(id string) Option { return func(c *Context) { c.WorkflowID = id } }

// WithSessionID sets the session identifier.
func WithSessionID(id string) Option { return func(c *Context) { c.SessionID = id } }

// WithPlayerID sets the player identifier.
func WithPlayerID(id string) Option { return func(c *Context) { c.PlayerID = id } }

// WithMetadata sets a single metadata entry, used by the adaptive layer for
// per-context strategy selection (conventionally "environment", "priority",
// "time_sensitive").
func WithMetadata(key string, value any) Option {
	return func(c *Context) { c.Metadata[key] = value }
}

// WithTag sets a single tag used for filtering/grouping.
func WithTag(key, value string) Option {
	return func(c *Context) { c.Tags[key] = value }
}

// WithBaggage sets a single baggage entry propagated to children.
func WithBaggage(key, value string) Option {
	return func(c *Context) { c.Baggage[key] = value }
}

// WithCausationID sets the causation ID explicitly (e.g. when this request
// was produced by an upstream event rather than by New()).
func WithCausationID(id string) Option {
	return func(c *Context) { c.CausationID = id }
}

// New creates a root Context. CorrelationID is minted with uuid.NewString()
// unless overridden via an Option that sets it after construction.
func New(opts ...Option) *Context {
	c := &Context{
		CorrelationID: uuid.NewString(),
		TraceFlags:    1,
		Baggage:       make(map[string]string),
		Tags:          make(map[string]string),
		Metadata:      make(map[string]any),
		State:         make(map[string]any),
		StartTime:     time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Child returns a new Context inheriting trace/correlation identifiers, with
// ParentSpanID set to the current SpanID and CausationID chained to the
// current CorrelationID. Baggage, tags, metadata, and state are copied one
// level deep: the child may add, replace or delete entries without
// affecting the parent, but a value that is itself a map, slice or pointer
// is shared with the parent.
func (c *Context) Child() *Context {
	return &Context{
		WorkflowID:    c.WorkflowID,
		SessionID:     c.SessionID,
		PlayerID:      c.PlayerID,
		CorrelationID: c.CorrelationID,
		CausationID:   c.CorrelationID,
		TraceID:       c.TraceID,
		ParentSpanID:  c.SpanID,
		TraceFlags:    c.TraceFlags,
		Baggage:       maps.Clone(c.Baggage),
		Tags:          maps.Clone(c.Tags),
		Metadata:      maps.Clone(c.Metadata),
		State:         maps.Clone(c.State),
		StartTime:     time.Now(),
		Checkpoints:   nil,
	}
}

// Checkpoint appends a named timestamp.
func (c *Context) Checkpoint(name string) {
	c.Checkpoints = append(c.Checkpoints, Checkpoint{Name: name, At: time.Now()})
}

// Elapsed returns the time since StartTime.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.StartTime)
}

// Environment returns the "environment" metadata key used by the adaptive
// layer's default context selector, or "" if unset.
func (c *Context) Environment() string {
	if v, ok := c.Metadata["environment"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// TraceAttrs returns attributes suitable for tagging an observability span.
func (c *Context) TraceAttrs() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("workflow.correlation_id", c.CorrelationID),
		attribute.Float64("workflow.elapsed_ms", float64(c.Elapsed().Milliseconds())),
	}
	if c.WorkflowID != "" {
		attrs = append(attrs, attribute.String("workflow.id", c.WorkflowID))
	}
	if c.SessionID != "" {
		attrs = append(attrs, attribute.String("workflow.session_id", c.SessionID))
	}
	if c.PlayerID != "" {
		attrs = append(attrs, attribute.String("workflow.player_id", c.PlayerID))
	}
	if c.CausationID != "" {
		attrs = append(attrs, attribute.String("workflow.causation_id", c.CausationID))
	}
	return attrs
}
