package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// Handler produces the text output of a tool. Arguments are passed as decoded
// from the request; see Typed for a decoding adapter.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

type entry struct {
	descriptor ToolDescriptor
	handler    Handler
}

// Registry maps tool names to descriptors and handlers. Tools are registered
// during startup; once sealed the registry is read-only and safe for
// concurrent lookups without locking.
type Registry struct {
	sealed  atomic.Bool
	entries []entry
	index   map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a tool. It must not be called concurrently with lookups.
func (r *Registry) Register(descriptor ToolDescriptor, handler Handler) error {
	if r.sealed.Load() {
		return fmt.Errorf("register %q: %w", descriptor.Name, ErrRegistrySealed)
	}
	if descriptor.Name == "" {
		return errors.New("register tool: missing tool name")
	}
	if handler == nil {
		return fmt.Errorf("register %q: nil handler", descriptor.Name)
	}
	if _, exists := r.index[descriptor.Name]; exists {
		return &DuplicateToolError{Name: descriptor.Name}
	}

	if descriptor.InputSchema.Type == "" {
		descriptor.InputSchema.Type = "object"
	}
	if descriptor.InputSchema.Properties == nil {
		descriptor.InputSchema.Properties = map[string]interface{}{}
	}
	if descriptor.InputSchema.Required == nil {
		descriptor.InputSchema.Required = []string{}
	}

	r.index[descriptor.Name] = len(r.entries)
	r.entries = append(r.entries, entry{descriptor: descriptor, handler: handler})
	return nil
}

// Seal freezes the registry. Further Register calls fail.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

// List returns the descriptors in registration order.
func (r *Registry) List() []ToolDescriptor {
	descriptors := make([]ToolDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descriptors = append(descriptors, e.descriptor)
	}
	return descriptors
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Invoke runs the named tool. Failures are reported as *UnknownToolError,
// *ArgumentError, *TimeoutError or *ToolExecutionError. Only a reached
// deadline is a timeout; a cancelled ctx is an execution failure.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	i, ok := r.index[name]
	if !ok {
		return ToolResult{}, &UnknownToolError{Name: name}
	}
	e := r.entries[i]

	if args == nil {
		args = map[string]interface{}{}
	}
	if missing := missingArguments(e.descriptor.InputSchema, args); len(missing) > 0 {
		return ToolResult{}, &ArgumentError{Tool: name, Missing: missing}
	}

	text, err := call(ctx, e.handler, args)
	if err != nil {
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			argErr.Tool = name
			return ToolResult{}, argErr
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
			return ToolResult{}, &TimeoutError{Tool: name, Cause: ctx.Err()}
		}
		return ToolResult{}, &ToolExecutionError{Tool: name, Cause: err}
	}

	return TextResult(text), nil
}

type outcome struct {
	text string
	err  error
}

// call runs the handler on its own goroutine so the caller stops waiting when
// ctx is done, even if the handler ignores ctx. A handler panic is reported as
// an error.
func call(ctx context.Context, handler Handler, args map[string]interface{}) (string, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool panic: %v", p)}
			}
		}()
		text, err := handler(ctx, args)
		done <- outcome{text: text, err: err}
	}()

	select {
	case o := <-done:
		return o.text, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func missingArguments(schema InputSchema, args map[string]interface{}) []string {
	var missing []string
	for _, key := range schema.Required {
		if v, ok := args[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	return missing
}
