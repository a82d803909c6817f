package registry

import (
	"fmt"
	"log/slog"
	"sort"
)

const describeLogPrefix = "registry:describe"

// NamespaceInfo is the catalog view of a namespace.
type NamespaceInfo struct {
	Namespace   string          `json:"namespace"`
	Version     string          `json:"version,omitempty"`
	Description string          `json:"description,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	Operations  []OperationInfo `json:"operations"`
}

// OperationInfo describes one overload.
type OperationInfo struct {
	Name      string      `json:"name"`
	Signature string      `json:"signature"`
	Params    []ParamInfo `json:"params"`
	Returns   string      `json:"returns"`
	Doc       string      `json:"doc,omitempty"`
	Example   string      `json:"example,omitempty"`
}

// ParamInfo describes one parameter.
type ParamInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
	Default  string `json:"default,omitempty"`
}

// Describe returns the catalog entry for prefix (aliases accepted).
func (r *Registry) Describe(prefix string) (*NamespaceInfo, error) {
	slog.Debug(fmt.Sprintf("%s - namespace=%s", describeLogPrefix, prefix))

	ns, err := r.Namespace(prefix)
	if err != nil {
		return nil, err
	}

	var aliases []string
	for alias, target := range r.aliases {
		if target == ns.Prefix {
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)

	ops := make([]OperationInfo, len(ns.Operations))
	for i, d := range ns.Operations {
		params := make([]ParamInfo, len(d.Params))
		for j, p := range d.Params {
			params[j] = ParamInfo{Name: p.Name, Type: p.Type.String(), Optional: p.Optional}
			if p.Optional {
				params[j].Default = p.Default.String()
			}
		}
		ops[i] = OperationInfo{
			Name:      d.Name,
			Signature: d.Signature(),
			Params:    params,
			Returns:   d.Returns.String(),
			Doc:       d.Doc,
			Example:   d.Example,
		}
	}

	return &NamespaceInfo{
		Namespace:   ns.Prefix,
		Version:     ns.Version,
		Description: ns.Description,
		Aliases:     aliases,
		Operations:  ops,
	}, nil
}

// Catalog describes every registered namespace in registration order.
func (r *Registry) Catalog() []NamespaceInfo {
	out := make([]NamespaceInfo, 0, len(r.order))
	for _, prefix := range r.order {
		info, err := r.Describe(prefix)
		if err != nil {
			continue
		}
		out = append(out, *info)
	}
	return out
}

// Signatures returns the signatures declared for name in prefix, or every signature
// in the namespace when name is unknown.
func (r *Registry) Signatures(prefix, name string) []string {
	ns, err := r.Namespace(prefix)
	if err != nil {
		return nil
	}
	return SignaturesFor(ns.Operations, name)
}

// SignaturesFor is Signatures over an already looked-up descriptor set.
func SignaturesFor(ops []*Descriptor, name string) []string {
	var named, all []string
	for _, d := range ops {
		all = append(all, d.Signature())
		if d.Name == name {
			named = append(named, d.Signature())
		}
	}
	if len(named) > 0 {
		return named
	}
	return all
}
