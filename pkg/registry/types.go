// Package registry holds the namespaces and operation descriptors contributed by plugins.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/morezero/script-runtime/pkg/value"
)

// Registration and lookup error codes.
const (
	CodeNamespaceNotFound  = "NAMESPACE_NOT_FOUND"
	CodeDuplicateNamespace = "DUPLICATE_NAMESPACE"
	CodeDuplicateOverload  = "DUPLICATE_OVERLOAD"
	CodeInvalidDescriptor  = "INVALID_DESCRIPTOR"
	CodeRegistrySealed     = "REGISTRY_SEALED"
)

// Func is the implementation behind one overload. Args arrive already coerced to the
// declared parameter types, with omitted optionals filled from their defaults.
type Func func(ctx context.Context, args []value.Value) (value.Value, error)

// Param declares one positional parameter.
type Param struct {
	Name     string
	Type     value.Type
	Optional bool
	// Default is used when an optional trailing argument is omitted.
	Default value.Value
}

// Descriptor is the metadata for one callable overload.
type Descriptor struct {
	Namespace string
	Name      string
	Params    []Param
	Returns   value.Type
	Doc       string
	Example   string
	Impl      Func
}

// Required returns the number of leading non-optional parameters.
func (d *Descriptor) Required() int {
	n := 0
	for _, p := range d.Params {
		if p.Optional {
			break
		}
		n++
	}
	return n
}

// Types returns the declared parameter types in order.
func (d *Descriptor) Types() []value.Type {
	types := make([]value.Type, len(d.Params))
	for i, p := range d.Params {
		types[i] = p.Type
	}
	return types
}

// Signature renders the overload for diagnostics, e.g.
// "write(path string, content string[, append boolean = false]) -> null".
func (d *Descriptor) Signature() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString("(")
	for i, p := range d.Params {
		if p.Optional {
			b.WriteString("[")
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(" ")
		b.WriteString(p.Type.String())
		if p.Optional {
			b.WriteString(" = ")
			b.WriteString(p.Default.String())
		}
	}
	for _, p := range d.Params {
		if p.Optional {
			b.WriteString("]")
		}
	}
	b.WriteString(") -> ")
	b.WriteString(d.Returns.String())
	return b.String()
}

// sameTypes reports whether two descriptors declare identical types at every position.
func (d *Descriptor) sameTypes(other *Descriptor) bool {
	if d.Name != other.Name || len(d.Params) != len(other.Params) {
		return false
	}
	for i := range d.Params {
		if d.Params[i].Type != other.Params[i].Type {
			return false
		}
	}
	return true
}

// Plugin contributes one namespace of operations at startup.
type Plugin interface {
	Namespace() string
	Version() string
	Description() string
	Operations() []*Descriptor
}

// Namespace is a registered prefix with its ordered descriptors.
type Namespace struct {
	Prefix      string
	Version     string
	Description string
	Operations  []*Descriptor
}

// RegistryError is a structured error from the registry.
type RegistryError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *RegistryError) Error() string {
	return e.Code + ": " + e.Message
}

// NewRegistryError creates a new RegistryError.
func NewRegistryError(code, message string) *RegistryError {
	return &RegistryError{Code: code, Message: message}
}

func namespaceNotFound(prefix string) *RegistryError {
	return &RegistryError{
		Code:    CodeNamespaceNotFound,
		Message: fmt.Sprintf("Namespace not found: %s", prefix),
		Details: map[string]interface{}{"namespace": prefix},
	}
}
