package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagerctx"

	"github.com/mcphub/mcphub/internal/jsonrpc"
)

// ArgumentGuard inspects a tool call after routing and before invocation.
// Returning a *BlockedError refuses the call.
type ArgumentGuard interface {
	Inspect(call ToolCall) error
}

// Observer receives the outcome of every request. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveRequest(method string, code int)
	ObserveToolCall(tool, outcome string, elapsed time.Duration)
}

// Tool call outcomes reported to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeUnknownTool = "unknown_tool"
	OutcomeInvalid     = "invalid_params"
	OutcomeBlocked     = "blocked"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
)

type Option func(*Dispatcher)

func WithArgumentGuard(guard ArgumentGuard) Option {
	return func(d *Dispatcher) {
		d.guard = guard
	}
}

func WithObserver(observer Observer) Option {
	return func(d *Dispatcher) {
		d.observer = observer
	}
}

// WithToolTimeout bounds every tools/call. Zero means no bound.
func WithToolTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// Dispatcher serves the three protocol methods. It keeps no state between
// requests; Dispatch may be called concurrently.
type Dispatcher struct {
	registry *Registry
	info     Implementation
	guard    ArgumentGuard
	observer Observer
	timeout  time.Duration
}

// NewDispatcher seals registry and returns a dispatcher serving it.
func NewDispatcher(registry *Registry, info Implementation, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("new dispatcher: registry is required")
	}
	if info.Name == "" {
		return nil, errors.New("new dispatcher: server name is required")
	}
	if info.Version == "" {
		return nil, errors.New("new dispatcher: server version is required")
	}

	d := &Dispatcher{registry: registry, info: info}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.timeout < 0 {
		return nil, fmt.Errorf("new dispatcher: negative tool timeout %s", d.timeout)
	}

	registry.Seal()
	return d, nil
}

func (d *Dispatcher) Info() Implementation {
	return d.info
}

// Dispatch handles one raw request body and always returns a well-formed
// response envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) *jsonrpc.Response {
	logger := lagerctx.FromContext(ctx).Session("dispatch")

	if !json.Valid(body) {
		logger.Info("invalid-json", lager.Data{"size": len(body)})
		return d.fail(nil, "", jsonrpc.CodeParseError, "Invalid JSON")
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Info("invalid-envelope", lager.Data{"error": err.Error()})
		return d.fail(req.ID, req.Method, jsonrpc.CodeParseError, "Invalid JSON: request must be an object")
	}
	if req.JSONRPC != jsonrpc.Version {
		logger.Info("unsupported-version", lager.Data{"jsonrpc": req.JSONRPC})
		return d.fail(req.ID, req.Method, jsonrpc.CodeParseError, "Invalid JSON: jsonrpc must be \"2.0\"")
	}

	logger.Debug("request", lager.Data{"method": req.Method, "id": string(jsonrpc.NormalizeID(req.ID))})

	switch req.Method {
	case MethodInitialize:
		return d.succeed(req, d.initialize())
	case MethodToolsList:
		return d.succeed(req, ListToolsResult{Tools: d.registry.List()})
	case MethodToolsCall:
		return d.callTool(lagerctx.NewContext(ctx, logger), req)
	default:
		return d.fail(req.ID, req.Method, jsonrpc.CodeMethodNotFound, fmt.Sprintf("Method %s not found", req.Method))
	}
}

func (d *Dispatcher) initialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: ToolCapabilities{List: true, Call: true},
		},
		ServerInfo: d.info,
	}
}

func (d *Dispatcher) callTool(ctx context.Context, req jsonrpc.Request) *jsonrpc.Response {
	logger := lagerctx.FromContext(ctx)

	call, err := decodeToolCall(req.Params)
	if err != nil {
		logger.Info("invalid-tool-call", lager.Data{"error": err.Error()})
		return d.fail(req.ID, req.Method, jsonrpc.CodeMethodNotFound, "Invalid tool call: "+err.Error())
	}

	logger = logger.WithData(lager.Data{"tool": call.Name})
	start := time.Now()

	if !d.registry.Has(call.Name) {
		unknown := &UnknownToolError{Name: call.Name}
		logger.Info("unknown-tool")
		d.observeTool(call.Name, OutcomeUnknownTool, start)
		return d.fail(req.ID, req.Method, jsonrpc.CodeMethodNotFound, unknown.Error())
	}

	if d.guard != nil {
		if err := d.guard.Inspect(call); err != nil {
			logger.Info("tool-call-blocked", lager.Data{"reason": err.Error()})
			d.observeTool(call.Name, OutcomeBlocked, start)
			return d.fail(req.ID, req.Method, jsonrpc.CodeInternalError, err.Error())
		}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := d.registry.Invoke(lagerctx.NewContext(ctx, logger), call.Name, call.Arguments)
	if err == nil {
		logger.Debug("tool-call-succeeded", lager.Data{"elapsed": time.Since(start).String()})
		d.observeTool(call.Name, OutcomeOK, start)
		return d.succeed(req, result)
	}

	var (
		unknown *UnknownToolError
		argErr  *ArgumentError
		timeout *TimeoutError
		execErr *ToolExecutionError
	)
	switch {
	case errors.As(err, &unknown):
		logger.Info("unknown-tool")
		d.observeTool(call.Name, OutcomeUnknownTool, start)
		return d.fail(req.ID, req.Method, jsonrpc.CodeMethodNotFound, unknown.Error())
	case errors.As(err, &argErr):
		logger.Info("invalid-arguments", lager.Data{"error": argErr.Error()})
		d.observeTool(call.Name, OutcomeInvalid, start)
		return d.fail(req.ID, req.Method, jsonrpc.CodeMethodNotFound, "Invalid arguments: "+argErr.Error())
	case errors.As(err, &timeout):
		logger.Error("tool-call-timed-out", timeout)
		d.observeTool(call.Name, OutcomeTimeout, start)
		return d.fail(req.ID, req.Method, jsonrpc.CodeInternalError, "Internal error: "+timeout.Error())
	case errors.As(err, &execErr):
		logger.Error("tool-call-failed", execErr.Cause)
		d.observeTool(call.Name, OutcomeError, start)
		return d.fail(req.ID, req.Method, jsonrpc.CodeInternalError, "Internal error: "+execErr.Error())
	default:
		logger.Error("tool-call-failed", err)
		d.observeTool(call.Name, OutcomeError, start)
		return d.fail(req.ID, req.Method, jsonrpc.CodeInternalError, "Internal error: "+err.Error())
	}
}

// decodeToolCall reads tools/call params. Absent params decode to a call with
// no name, which routes as an unknown tool.
func decodeToolCall(params json.RawMessage) (ToolCall, error) {
	var call ToolCall
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &call); err != nil {
			return call, fmt.Errorf("params must be an object with a name and an arguments object: %w", err)
		}
	}
	if call.Arguments == nil {
		call.Arguments = map[string]interface{}{}
	}
	return call, nil
}

func (d *Dispatcher) succeed(req jsonrpc.Request, result interface{}) *jsonrpc.Response {
	if d.observer != nil {
		d.observer.ObserveRequest(req.Method, 0)
	}
	return jsonrpc.NewResult(req.ID, result)
}

func (d *Dispatcher) fail(id json.RawMessage, method string, code int, message string) *jsonrpc.Response {
	if d.observer != nil {
		d.observer.ObserveRequest(method, code)
	}
	return jsonrpc.NewErrorResponse(id, code, message)
}

func (d *Dispatcher) observeTool(tool, outcome string, start time.Time) {
	if d.observer != nil {
		d.observer.ObserveToolCall(tool, outcome, time.Since(start))
	}
}
