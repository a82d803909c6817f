package dispatcher

import (
	"errors"
	"strings"

	"github.com/morezero/script-runtime/pkg/registry"
)

// Dispatch error codes.
const (
	CodeOK                 = "OK"
	CodeNamespaceNotFound  = registry.CodeNamespaceNotFound
	CodeNoMatchingOverload = "NO_MATCHING_OVERLOAD"
	CodeAmbiguousOverload  = "AMBIGUOUS_OVERLOAD"
	CodeArgumentCoercion   = "ARGUMENT_COERCION"
	CodeOperationFailed    = "OPERATION_FAILED"
	CodeCancelled          = "CANCELLED"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Error is a typed dispatch failure. Resolution failures carry diagnostics in Details;
// OPERATION_FAILED and CANCELLED wrap the implementation's error.
type Error struct {
	Code      string                 `json:"code"`
	Namespace string                 `json:"namespace,omitempty"`
	Operation string                 `json:"operation,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	cause     error
}

func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes the plugin-level cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the dispatch code of err, CodeOK for nil and CodeInternalError
// for errors that did not come from the dispatcher.
func CodeOf(err error) string {
	if err == nil {
		return CodeOK
	}
	var dispErr *Error
	if errors.As(err, &dispErr) {
		return dispErr.Code
	}
	return CodeInternalError
}

// IsCode reports whether err is a dispatch error with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

func joinSignatures(sigs []string) string {
	return strings.Join(sigs, "; ")
}
