package mcp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRegistrySealed is returned by Register once a dispatcher owns the registry.
var ErrRegistrySealed = errors.New("registry is sealed")

type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	if e.Name == "" {
		return "Unknown tool: (none)"
	}
	return "Unknown tool: " + e.Name
}

// ArgumentError rejects a call whose arguments do not fit the tool before the
// handler runs.
type ArgumentError struct {
	Tool    string
	Missing []string
	Err     error
}

func (e *ArgumentError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("tool %s: missing required argument(s): %s", e.Tool, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("tool %s: invalid arguments: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// ToolExecutionError wraps whatever the handler failed with. Error returns the
// cause's message unchanged.
type ToolExecutionError struct {
	Tool  string
	Cause error
}

func (e *ToolExecutionError) Error() string {
	return e.Cause.Error()
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

type TimeoutError struct {
	Tool  string
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out: %v", e.Tool, e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// BlockedError is returned by an ArgumentGuard that refuses a call.
type BlockedError struct {
	Tool    string
	Reasons []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("Blocked: arguments for %s contain sensitive data (%s)", e.Tool, strings.Join(e.Reasons, "; "))
}
