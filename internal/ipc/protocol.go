package ipc

import "encoding/json"

// Command channel payloads. Every frame on the command endpoint
// carries one JSON-encoded Request or Response; the monitor endpoint
// carries bare bundle streams instead.

// Request represents a command sent from a client to the daemon.
type Request struct {
	Command string                 `json:"command"`        // e.g. "history", "clear", "copy"
	Args    map[string]interface{} `json:"args,omitempty"` // command-specific arguments
}

// Response represents the daemon's reply to one Request.
type Response struct {
	Status  string          `json:"status"`            // "ok" or "error"
	Message string          `json:"message,omitempty"` // human-readable error detail
	Data    json.RawMessage `json:"data,omitempty"`    // command-specific data
}

// Ok returns a bare success response.
func Ok() *Response {
	return &Response{Status: "ok"}
}

// OkData returns a success response carrying v as JSON.
func OkData(v interface{}) *Response {
	data, err := json.Marshal(v)
	if err != nil {
		return Error("failed to encode response data: " + err.Error())
	}
	return &Response{Status: "ok", Data: data}
}

// Error returns a failure response with a message.
func Error(msg string) *Response {
	return &Response{Status: "error", Message: msg}
}

// IsOK reports whether the response signals success.
func (r *Response) IsOK() bool {
	return r != nil && r.Status == "ok"
}
