// Package jsonrpc holds the JSON-RPC 2.0 envelope types exchanged over the
// transport.
package jsonrpc

import (
	"bytes"
	"encoding/json"
)

const Version = "2.0"

var null = json.RawMessage("null")

// Request is an incoming envelope. ID and Params are kept raw: the ID is echoed
// back byte for byte and the params shape depends on the method.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func NewResult(id json.RawMessage, result interface{}) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      NormalizeID(id),
		Result:  result,
	}
}

func NewErrorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      NormalizeID(id),
		Error:   NewError(code, message),
	}
}

// NormalizeID maps an absent id to an explicit null.
func NormalizeID(id json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(id)
	if len(trimmed) == 0 {
		return null
	}
	return trimmed
}
