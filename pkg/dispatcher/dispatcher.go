// Package dispatcher resolves script calls to registered overloads and invokes them.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/script-runtime/pkg/registry"
	"github.com/morezero/script-runtime/pkg/semver"
	"github.com/morezero/script-runtime/pkg/value"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes script calls to the operations held by a sealed registry.
type Dispatcher struct {
	registry  *registry.Registry
	observers []Observer
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(reg *registry.Registry, observers ...Observer) *Dispatcher {
	return &Dispatcher{registry: reg, observers: observers}
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Invoke resolves (prefix, name, args) to one overload, coerces the arguments and runs it.
// Stream arguments are released when Invoke returns.
func (d *Dispatcher) Invoke(ctx context.Context, prefix, name string, args []value.Value) (value.Value, error) {
	return d.invoke(ctx, prefix, "", name, args)
}

// Call is Invoke addressed by a call reference such as "file.write" or "file.write@^1".
func (d *Dispatcher) Call(ctx context.Context, ref string, args []value.Value) (value.Value, error) {
	parsed, err := semver.ParseCallRef(ref)
	if err != nil {
		releaseStreams(args)
		return value.Null(), &Error{Code: CodeInvalidArgument, Message: err.Error()}
	}
	return d.invoke(ctx, parsed.Namespace, parsed.Range, parsed.Operation, args)
}

// Resolve selects the overload Invoke would run, without coercing or invoking.
func (d *Dispatcher) Resolve(prefix, name string, args []value.Value) (*registry.Descriptor, error) {
	ops, err := d.registry.Lookup(prefix)
	if err != nil {
		return nil, lookupError(prefix, name, err)
	}
	return resolve(ops, prefix, name, value.Kinds(args))
}

func (d *Dispatcher) invoke(ctx context.Context, prefix, rangeStr, name string, args []value.Value) (value.Value, error) {
	started := time.Now()
	inv := &Invocation{
		RequestID: RequestIDFrom(ctx),
		Namespace: prefix,
		Operation: name,
		Arity:     len(args),
		Started:   started,
	}

	result, err := d.run(ctx, prefix, rangeStr, name, args, inv)

	inv.Duration = time.Since(started)
	inv.Code = CodeOf(err)
	inv.Err = err
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - %s.%s failed code=%s: %v", logPrefix, prefix, name, inv.Code, err))
	}
	for _, o := range d.observers {
		o.Observe(ctx, inv)
	}
	return result, err
}

func (d *Dispatcher) run(ctx context.Context, prefix, rangeStr, name string, args []value.Value, inv *Invocation) (value.Value, error) {
	defer releaseStreams(args)

	ops, err := d.registry.LookupVersion(prefix, rangeStr)
	if err != nil {
		return value.Null(), lookupError(prefix, name, err)
	}

	desc, err := resolve(ops, prefix, name, value.Kinds(args))
	if err != nil {
		return value.Null(), err
	}
	inv.Namespace = desc.Namespace
	inv.Signature = desc.Signature()

	coerced, err := coerceArgs(desc, args)
	defer releaseStreams(coerced)
	if err != nil {
		return value.Null(), err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return value.Null(), cancelled(desc, ctxErr)
	}

	slog.Debug(fmt.Sprintf("%s - invoking %s.%s", logPrefix, desc.Namespace, desc.Signature()))
	result, err := desc.Impl(ctx, coerced)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return value.Null(), cancelled(desc, err)
		}
		return value.Null(), &Error{
			Code:      CodeOperationFailed,
			Namespace: desc.Namespace,
			Operation: desc.Name,
			Message:   fmt.Sprintf("%s.%s failed", desc.Namespace, desc.Name),
			cause:     err,
		}
	}
	return result, nil
}

// candidate is an overload compatible with the call's arity and argument kinds.
type candidate struct {
	desc *registry.Descriptor
	cost int
}

// resolve implements the scoring rule: fewest coercions wins, then the larger declared
// arity; anything still tied is reported as ambiguous.
func resolve(ops []*registry.Descriptor, prefix, name string, kinds []value.Kind) (*registry.Descriptor, error) {
	var best []candidate
	for _, desc := range ops {
		if desc.Name != name {
			continue
		}
		cost, ok := score(desc, kinds)
		if !ok {
			continue
		}
		c := candidate{desc: desc, cost: cost}
		switch {
		case len(best) == 0:
			best = []candidate{c}
		case better(c, best[0]):
			best = []candidate{c}
		case !better(best[0], c):
			best = append(best, c)
		}
	}

	if len(best) == 0 {
		sigs := registry.SignaturesFor(ops, name)
		kindNames := make([]string, len(kinds))
		for i, k := range kinds {
			kindNames[i] = k.String()
		}
		return nil, &Error{
			Code:      CodeNoMatchingOverload,
			Namespace: prefix,
			Operation: name,
			Message: fmt.Sprintf("no overload of %s.%s accepts %d argument(s) (%v); declared: %s",
				prefix, name, len(kinds), kindNames, joinSignatures(sigs)),
			Details: map[string]interface{}{
				"arity":      len(kinds),
				"argTypes":   kindNames,
				"signatures": sigs,
			},
		}
	}
	if len(best) > 1 {
		sigs := make([]string, len(best))
		for i, c := range best {
			sigs[i] = c.desc.Signature()
		}
		slog.Error(fmt.Sprintf("%s - ambiguous overloads for %s.%s: %s", logPrefix, prefix, name, joinSignatures(sigs)))
		return nil, &Error{
			Code:      CodeAmbiguousOverload,
			Namespace: prefix,
			Operation: name,
			Message:   fmt.Sprintf("call to %s.%s matches %d overloads equally: %s", prefix, name, len(best), joinSignatures(sigs)),
			Details:   map[string]interface{}{"candidates": sigs},
		}
	}
	return best[0].desc, nil
}

// score returns the number of coercions needed to call desc with kinds.
func score(desc *registry.Descriptor, kinds []value.Kind) (int, bool) {
	if len(kinds) < desc.Required() || len(kinds) > len(desc.Params) {
		return 0, false
	}
	total := 0
	for i, k := range kinds {
		cost, ok := value.Cost(k, desc.Params[i].Type)
		if !ok {
			return 0, false
		}
		total += cost
	}
	return total, true
}

func better(a, b candidate) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	return len(a.desc.Params) > len(b.desc.Params)
}

// coerceArgs converts each supplied argument to its declared type and fills omitted
// optionals from their defaults.
func coerceArgs(desc *registry.Descriptor, args []value.Value) ([]value.Value, error) {
	out := make([]value.Value, 0, len(desc.Params))
	for i, p := range desc.Params {
		if i >= len(args) {
			out = append(out, p.Default)
			continue
		}
		v, err := value.Coerce(args[i], p.Type)
		if err != nil {
			return out, &Error{
				Code:      CodeArgumentCoercion,
				Namespace: desc.Namespace,
				Operation: desc.Name,
				Message:   fmt.Sprintf("argument %d (%s): expected %s, got %s", i, p.Name, p.Type, args[i].Kind()),
				Details: map[string]interface{}{
					"position":  i,
					"parameter": p.Name,
					"expected":  p.Type.String(),
					"actual":    args[i].Kind().String(),
					"signature": desc.Signature(),
				},
				cause: err,
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func cancelled(desc *registry.Descriptor, cause error) *Error {
	return &Error{
		Code:      CodeCancelled,
		Namespace: desc.Namespace,
		Operation: desc.Name,
		Message:   fmt.Sprintf("%s.%s cancelled", desc.Namespace, desc.Name),
		cause:     cause,
	}
}

func lookupError(prefix, name string, err error) error {
	var regErr *registry.RegistryError
	if errors.As(err, &regErr) {
		details, _ := regErr.Details.(map[string]interface{})
		return &Error{
			Code:      regErr.Code,
			Namespace: prefix,
			Operation: name,
			Message:   regErr.Message,
			Details:   details,
		}
	}
	return &Error{Code: CodeInternalError, Namespace: prefix, Operation: name, Message: "lookup failed", cause: err}
}

// releaseStreams closes any stream handles among vs; the dispatcher never keeps them
// past the call.
func releaseStreams(vs []value.Value) {
	for _, v := range vs {
		if s, ok := v.AsStream(); ok && s != nil {
			if err := s.Close(); err != nil {
				slog.Warn(fmt.Sprintf("%s - failed to release stream: %v", logPrefix, err))
			}
		}
	}
}
