package dispatcher

import "github.com/morezero/script-runtime/pkg/value"

// InvokeRequest is the JSON envelope for a remote script call.
type InvokeRequest struct {
	ID string `json:"id"`
	// Call is a call reference: "file.write" or "file.write@^1".
	Call string             `json:"call"`
	Args []value.Value      `json:"args"`
	Ctx  *InvocationContext `json:"ctx,omitempty"`
}

// InvokeResponse is the JSON envelope for the reply.
type InvokeResponse struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result *value.Value `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable bool        `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	// TimeoutMs shortens the server's per-request timeout; it never extends it.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}
