// Package mcp implements the tool-invocation core: a registry of named tools
// and a dispatcher serving the initialize, tools/list and tools/call methods
// over JSON-RPC 2.0 envelopes.
package mcp

// ProtocolVersion is reported by initialize.
const ProtocolVersion = "2024-11-05"

// Method names understood by the dispatcher.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// Implementation identifies the serving process in the initialize result.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InputSchema is a JSON Schema object advertised for a tool. Only the
// presence of Required keys is checked before invocation.
type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required"`
}

type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type ToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ToolResult struct {
	Content []ContentBlock `json:"content"`
}

// TextResult wraps handler output in a single text block.
func TextResult(text string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

type ToolCapabilities struct {
	List bool `json:"list"`
	Call bool `json:"call"`
}

type ServerCapabilities struct {
	Tools ToolCapabilities `json:"tools"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}
