// Package bootstrap loads the plugin manifest that decides which namespaces a
// runtime registers at startup, and builds the sealed registry from it.
package bootstrap

import (
	"sort"
)

// PluginSettings are the per-plugin knobs a manifest may override. Zero values keep the
// plugin's defaults.
type PluginSettings struct {
	DefaultCharset    string  `json:"defaultCharset,omitempty" yaml:"defaultCharset,omitempty"`
	UserAgent         string  `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	RequestTimeout    string  `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"`
	MaxBodySize       int64   `json:"maxBodySize,omitempty" yaml:"maxBodySize,omitempty"`
	RequestsPerSecond float64 `json:"requestsPerSecond,omitempty" yaml:"requestsPerSecond,omitempty"`
}

// PluginEntry enables one plugin.
type PluginEntry struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Version is a semver range the plugin's version must satisfy (e.g. "^1"); empty accepts any.
	Version  string         `json:"version,omitempty" yaml:"version,omitempty"`
	Settings PluginSettings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// IsEnabled reports whether the entry turns its plugin on.
func (e PluginEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Manifest is the root plugin manifest.
type Manifest struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// RequiredNamespaces must be registered once the manifest is applied.
	RequiredNamespaces []string               `json:"requiredNamespaces,omitempty" yaml:"requiredNamespaces,omitempty"`
	Plugins            map[string]PluginEntry `json:"plugins" yaml:"plugins"`
	// Aliases maps an alternative prefix to a registered namespace.
	Aliases map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// EnabledPlugins returns the names of enabled plugins in sorted order.
func (m *Manifest) EnabledPlugins() []string {
	var names []string
	for name, entry := range m.Plugins {
		if entry.IsEnabled() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ResolveAlias resolves an alias to its namespace; other prefixes are returned unchanged.
func (m *Manifest) ResolveAlias(prefix string) string {
	if target, ok := m.Aliases[prefix]; ok {
		return target
	}
	return prefix
}
