package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/morezero/script-runtime/pkg/semver"
	"github.com/morezero/script-runtime/pkg/value"
)

const logPrefix = "registry:registry"

// Registry maps namespace prefixes to their operation descriptors.
// It is populated during startup and sealed; after Seal it is never mutated,
// so concurrent lookups need no locking.
type Registry struct {
	namespaces map[string]*Namespace
	order      []string
	aliases    map[string]string
	sealed     bool
}

// New creates an empty, unsealed Registry.
func New() *Registry {
	return &Registry{
		namespaces: make(map[string]*Namespace),
		aliases:    make(map[string]string),
	}
}

// BuildParams holds parameters for Build.
type BuildParams struct {
	Plugins []Plugin
	// Aliases maps an alternative prefix to a registered namespace (e.g., "fs" -> "file").
	Aliases map[string]string
}

// Build registers every plugin and alias once and returns the sealed registry.
func Build(params BuildParams) (*Registry, error) {
	r := New()
	for _, p := range params.Plugins {
		if err := r.RegisterPlugin(p); err != nil {
			return nil, err
		}
	}
	aliases := make([]string, 0, len(params.Aliases))
	for alias := range params.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		if err := r.RegisterAlias(alias, params.Aliases[alias]); err != nil {
			return nil, err
		}
	}
	r.Seal()
	slog.Info(fmt.Sprintf("%s - registry sealed namespaces=%v aliases=%d", logPrefix, r.order, len(r.aliases)))
	return r, nil
}

// RegisterPlugin registers the plugin's namespace with its version and description.
func (r *Registry) RegisterPlugin(p Plugin) error {
	version := p.Version()
	if version != "" {
		v, err := semver.ValidateVersion(version)
		if err != nil {
			return &RegistryError{
				Code:    CodeInvalidDescriptor,
				Message: fmt.Sprintf("Namespace %s declares an invalid version: %s", p.Namespace(), version),
			}
		}
		version = v
	}
	return r.register(&Namespace{
		Prefix:      p.Namespace(),
		Version:     version,
		Description: p.Description(),
	}, p.Operations())
}

// Register adds all descriptors for an unversioned namespace.
func (r *Registry) Register(prefix string, descriptors []*Descriptor) error {
	return r.register(&Namespace{Prefix: prefix}, descriptors)
}

func (r *Registry) register(ns *Namespace, descriptors []*Descriptor) error {
	if r.sealed {
		return &RegistryError{Code: CodeRegistrySealed, Message: fmt.Sprintf("Cannot register %s: registry is sealed", ns.Prefix)}
	}
	if !semver.ValidateNamespace(ns.Prefix) {
		return &RegistryError{Code: CodeInvalidDescriptor, Message: fmt.Sprintf("Invalid namespace prefix: %q", ns.Prefix)}
	}
	if _, exists := r.namespaces[ns.Prefix]; exists {
		return &RegistryError{Code: CodeDuplicateNamespace, Message: fmt.Sprintf("Namespace already registered: %s", ns.Prefix)}
	}
	if _, exists := r.aliases[ns.Prefix]; exists {
		return &RegistryError{Code: CodeDuplicateNamespace, Message: fmt.Sprintf("Namespace %s is already an alias", ns.Prefix)}
	}

	ops := make([]*Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if err := validateDescriptor(ns.Prefix, d); err != nil {
			return err
		}
		for _, prev := range ops {
			if prev.sameTypes(d) {
				return &RegistryError{
					Code:    CodeDuplicateOverload,
					Message: fmt.Sprintf("%s.%s declares the same signature twice: %s", ns.Prefix, d.Name, d.Signature()),
				}
			}
		}
		cp := *d
		cp.Namespace = ns.Prefix
		cp.Params = append([]Param(nil), d.Params...)
		ops = append(ops, &cp)
	}
	ns.Operations = ops

	r.namespaces[ns.Prefix] = ns
	r.order = append(r.order, ns.Prefix)
	slog.Debug(fmt.Sprintf("%s - registered namespace=%s version=%s operations=%d", logPrefix, ns.Prefix, ns.Version, len(ops)))
	return nil
}

func validateDescriptor(prefix string, d *Descriptor) error {
	invalid := func(format string, args ...interface{}) error {
		return &RegistryError{Code: CodeInvalidDescriptor, Message: fmt.Sprintf(format, args...)}
	}
	if d == nil {
		return invalid("%s: nil descriptor", prefix)
	}
	if d.Namespace != "" && d.Namespace != prefix {
		return invalid("%s.%s: descriptor belongs to namespace %s", prefix, d.Name, d.Namespace)
	}
	if !semver.ValidateOperationName(d.Name) {
		return invalid("%s: invalid operation name %q", prefix, d.Name)
	}
	if d.Impl == nil {
		return invalid("%s.%s: missing implementation", prefix, d.Name)
	}
	optional := false
	for i, p := range d.Params {
		if p.Optional {
			optional = true
			if _, ok := value.Cost(p.Default.Kind(), p.Type); !ok {
				return invalid("%s.%s: default for %s is %s, want %s", prefix, d.Name, p.Name, p.Default.Kind(), p.Type)
			}
			continue
		}
		if optional {
			return invalid("%s.%s: required parameter %d (%s) follows an optional one", prefix, d.Name, i, p.Name)
		}
	}
	return nil
}

// RegisterAlias makes alias resolve to an already registered namespace.
func (r *Registry) RegisterAlias(alias, target string) error {
	if r.sealed {
		return &RegistryError{Code: CodeRegistrySealed, Message: fmt.Sprintf("Cannot alias %s: registry is sealed", alias)}
	}
	if !semver.ValidateNamespace(alias) {
		return &RegistryError{Code: CodeInvalidDescriptor, Message: fmt.Sprintf("Invalid alias: %q", alias)}
	}
	if _, exists := r.namespaces[alias]; exists {
		return &RegistryError{Code: CodeDuplicateNamespace, Message: fmt.Sprintf("Alias %s shadows a registered namespace", alias)}
	}
	if _, exists := r.aliases[alias]; exists {
		return &RegistryError{Code: CodeDuplicateNamespace, Message: fmt.Sprintf("Alias already registered: %s", alias)}
	}
	if _, exists := r.namespaces[target]; !exists {
		return namespaceNotFound(target)
	}
	r.aliases[alias] = target
	return nil
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether registration has ended.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Namespace returns the registered namespace for prefix, following aliases.
func (r *Registry) Namespace(prefix string) (*Namespace, error) {
	if target, ok := r.aliases[prefix]; ok {
		prefix = target
	}
	ns, ok := r.namespaces[prefix]
	if !ok {
		return nil, namespaceNotFound(prefix)
	}
	return ns, nil
}

// Lookup returns the descriptors registered for prefix in registration order.
func (r *Registry) Lookup(prefix string) ([]*Descriptor, error) {
	ns, err := r.Namespace(prefix)
	if err != nil {
		return nil, err
	}
	return append([]*Descriptor(nil), ns.Operations...), nil
}

// LookupVersion is Lookup restricted to a namespace whose version satisfies rangeStr.
// An empty range matches any namespace, versioned or not.
func (r *Registry) LookupVersion(prefix, rangeStr string) ([]*Descriptor, error) {
	ns, err := r.Namespace(prefix)
	if err != nil {
		return nil, err
	}
	if rangeStr != "" && !semver.SatisfiesRange(ns.Version, rangeStr) {
		return nil, &RegistryError{
			Code:    CodeNamespaceNotFound,
			Message: fmt.Sprintf("Namespace %s@%s not found (registered version: %q)", prefix, rangeStr, ns.Version),
			Details: map[string]interface{}{
				"namespace": ns.Prefix,
				"range":     rangeStr,
				"version":   ns.Version,
			},
		}
	}
	return append([]*Descriptor(nil), ns.Operations...), nil
}

// Namespaces returns the registered prefixes in registration order.
func (r *Registry) Namespaces() []string {
	return append([]string(nil), r.order...)
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}
