package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/script-runtime/pkg/value"
)

const handleLogPrefix = "dispatcher:handle"

// Handle runs an InvokeRequest and always returns a response envelope.
func (d *Dispatcher) Handle(ctx context.Context, req *InvokeRequest) *InvokeResponse {
	slog.Debug(fmt.Sprintf("%s - call=%s id=%s args=%d", handleLogPrefix, req.Call, req.ID, len(req.Args)))

	requestID := req.ID
	if req.Ctx != nil {
		if req.Ctx.RequestID != "" {
			requestID = req.Ctx.RequestID
		}
		if req.Ctx.TimeoutMs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Ctx.TimeoutMs)*time.Millisecond)
			defer cancel()
		}
	}
	ctx = WithRequestID(ctx, requestID)

	result, err := d.Call(ctx, req.Call, req.Args)
	if err != nil {
		return errorToResponse(req.ID, err)
	}
	if result.Kind() == value.KindStream {
		if s, ok := result.AsStream(); ok {
			_ = s.Close()
		}
		return errorResponse(req.ID, CodeInternalError, fmt.Sprintf("%s returned a stream, which cannot be sent", req.Call), false)
	}
	return &InvokeResponse{ID: req.ID, Ok: true, Result: &result}
}

// --- helpers ---

func errorResponse(id, code, message string, retryable bool) *InvokeResponse {
	return &InvokeResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

// ErrorResponse builds a failed envelope; used by transports for undecodable requests.
func ErrorResponse(id, code, message string) *InvokeResponse {
	return errorResponse(id, code, message, false)
}

func errorToResponse(id string, err error) *InvokeResponse {
	var dispErr *Error
	if errors.As(err, &dispErr) {
		var details interface{}
		if dispErr.Details != nil {
			details = dispErr.Details
		}
		return &InvokeResponse{
			ID: id,
			Ok: false,
			Error: &ErrorDetail{
				Code:      dispErr.Code,
				Message:   dispErr.Error(),
				Details:   details,
				Retryable: dispErr.Code == CodeInternalError,
			},
		}
	}
	return errorResponse(id, CodeInternalError, err.Error(), true)
}
