package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/script-runtime/pkg/commsutil"
	"github.com/morezero/script-runtime/pkg/dispatcher"
)

const gatewayLogPrefix = "server:gateway"

// subscribe listens on the invoke subject and on one namespace-scoped subject per
// registered namespace. Each message is served on its own goroutine so a long download
// does not hold up other callers.
func (s *Server) subscribe() error {
	subjects := map[string]string{s.cfg.InvokeSubject: ""}
	for _, info := range s.reg.Catalog() {
		subjects[commsutil.BuildNamespaceInvokeSubject(s.cfg.InvokeSubject, info.Namespace)] = info.Namespace
	}

	for subject, namespace := range subjects {
		namespace := namespace
		sub, err := s.nc.Subscribe(subject, func(msg *comms.Msg) {
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				s.serveMsg(msg, namespace)
			}()
		})
		if err != nil {
			return fmt.Errorf("%s - failed to subscribe to %s: %w", gatewayLogPrefix, subject, err)
		}
		s.subs = append(s.subs, sub)
		slog.Info(fmt.Sprintf("%s - Subscribed to %s", gatewayLogPrefix, subject))
	}
	return nil
}

func (s *Server) serveMsg(msg *comms.Msg, namespace string) {
	data := s.handleInvoke(s.baseCtx, msg.Data, namespace)
	if msg.Reply == "" {
		slog.Debug(fmt.Sprintf("%s - no reply subject on %s; result dropped", gatewayLogPrefix, msg.Subject))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond on %s: %v", gatewayLogPrefix, msg.Subject, err))
	}
}

// handleInvoke decodes one request, runs it under the server's request timeout and
// returns the encoded response. namespace, when set, qualifies calls that name only an
// operation.
func (s *Server) handleInvoke(ctx context.Context, data []byte, namespace string) []byte {
	var req dispatcher.InvokeRequest
	if err := commsutil.DecodePayload(data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", gatewayLogPrefix, err))
		return encodeResponse(dispatcher.ErrorResponse("", dispatcher.CodeInvalidRequest, "Failed to decode request"))
	}
	if strings.TrimSpace(req.Call) == "" {
		return encodeResponse(dispatcher.ErrorResponse(req.ID, dispatcher.CodeInvalidRequest, "call is required"))
	}
	if target, _, _ := strings.Cut(req.Call, "@"); namespace != "" && !strings.Contains(target, ".") {
		req.Call = namespace + "." + req.Call
	}

	// Per-request timeout; the client's timeoutMs may only shorten it
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	return encodeResponse(s.disp.Handle(reqCtx, &req))
}

func encodeResponse(resp *dispatcher.InvokeResponse) []byte {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", gatewayLogPrefix, err))
		data, _ = commsutil.EncodePayload(dispatcher.ErrorResponse(resp.ID, dispatcher.CodeInternalError, "Failed to encode response"))
	}
	return data
}
