package pipeline

import (
	"time"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// Context carries one message through the pipeline, accumulating stage
// results. It is owned by a single Execute call and not safe for
// concurrent use.
type Context struct {
	Message        model.Message
	Classification model.Classification
	Draft          *model.OrderDraft
	StartedAt      time.Time

	completed []string
	failed    []string
	errors    map[string]error
	values    map[string]any
}

// NewContext creates a processing context for one message.
func NewContext(msg model.Message) *Context {
	return &Context{
		Message:   msg,
		StartedAt: time.Now().UTC(),
		errors:    make(map[string]error),
		values:    make(map[string]any),
	}
}

// MarkCompleted records a stage as successfully finished.
func (c *Context) MarkCompleted(stage string) {
	c.completed = append(c.completed, stage)
}

// MarkFailed records a stage failure with its error.
func (c *Context) MarkFailed(stage string, err error) {
	c.failed = append(c.failed, stage)
	c.errors[stage] = err
}

// HasCompleted reports whether the named stage finished successfully.
func (c *Context) HasCompleted(stage string) bool {
	for _, s := range c.completed {
		if s == stage {
			return true
		}
	}
	return false
}

// HasFailed reports whether the named stage failed.
func (c *Context) HasFailed(stage string) bool {
	for _, s := range c.failed {
		if s == stage {
			return true
		}
	}
	return false
}

// Completed returns the stages that finished, in execution order.
func (c *Context) Completed() []string { return c.completed }

// Failed returns the stages that failed, in execution order.
func (c *Context) Failed() []string { return c.failed }

// Err returns the error recorded for a stage, or nil.
func (c *Context) Err(stage string) error { return c.errors[stage] }

// IsOrder reports whether the message was classified as a transport order.
func (c *Context) IsOrder() bool { return c.Classification.IsOrder() }

// SetValue stores arbitrary stage-to-stage data outside the draft, such as
// cleaned addresses that later stages may prefer over the raw ones.
func (c *Context) SetValue(key string, v any) { c.values[key] = v }

// Value returns data stored by an earlier stage, or nil.
func (c *Context) Value(key string) any { return c.values[key] }

// StringValue returns a string stored by an earlier stage, or "".
func (c *Context) StringValue(key string) string {
	s, _ := c.values[key].(string)
	return s
}
