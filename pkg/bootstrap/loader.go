package bootstrap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/morezero/script-runtime/pkg/semver"
)

const logPrefix = "bootstrap:loader"

// ManifestEnv names the environment variable holding a manifest path.
const ManifestEnv = "RUNTIME_PLUGIN_MANIFEST"

// DefaultSearchPaths are tried after the explicit path and ManifestEnv.
var DefaultSearchPaths = []string{
	"config/plugins.json",
	"config/plugins.yaml",
	"plugins.json",
	"plugins.yaml",
}

// LoadManifest loads the plugin manifest. It tries the explicit path first, then
// RUNTIME_PLUGIN_MANIFEST, then DefaultSearchPaths, and falls back to DefaultManifest.
// An explicit or environment path that cannot be read or parsed is an error; a
// malformed default-path file is skipped with a warning.
func LoadManifest(path string) (*Manifest, error) {
	for _, p := range []string{path, os.Getenv(ManifestEnv)} {
		if p == "" {
			continue
		}
		m, err := ReadManifest(p)
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	for _, p := range DefaultSearchPaths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		m, err := ReadManifest(p)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
			continue
		}
		return m, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default plugin manifest", logPrefix))
	return DefaultManifest(), nil
}

// ReadManifest reads and parses one manifest file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read manifest %s: %w", logPrefix, path, err)
	}

	m, err := ParseManifest(data, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse manifest %s: %w", logPrefix, path, err)
	}
	slog.Info(fmt.Sprintf("%s - Loaded plugin manifest %q from %s", logPrefix, m.Name, path))
	return m, nil
}

// Format is a manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// ParseManifest decodes data in the given format and validates the result.
func ParseManifest(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest's internal consistency. Whether plugins exist is checked
// when the registry is built.
func Validate(m *Manifest) error {
	for name, entry := range m.Plugins {
		if !semver.ValidateNamespace(name) {
			return fmt.Errorf("plugin %q: invalid namespace", name)
		}
		if entry.Version != "" {
			if err := semver.ValidateRange(entry.Version); err != nil {
				return fmt.Errorf("plugin %q: %w", name, err)
			}
		}
		if entry.Settings.RequestTimeout != "" {
			if _, err := time.ParseDuration(entry.Settings.RequestTimeout); err != nil {
				return fmt.Errorf("plugin %q: requestTimeout: %w", name, err)
			}
		}
	}
	for alias, target := range m.Aliases {
		if alias == "" || target == "" {
			return fmt.Errorf("alias %q -> %q: both sides required", alias, target)
		}
		if alias == target {
			return fmt.Errorf("alias %q points to itself", alias)
		}
		if _, ok := m.Aliases[target]; ok {
			return fmt.Errorf("alias %q points to another alias %q", alias, target)
		}
	}
	return nil
}

// DefaultManifest enables the file plugin with its defaults and the "fs" alias.
func DefaultManifest() *Manifest {
	enabled := true
	return &Manifest{
		Name:               "script-runtime-default",
		Version:            "1.0.0",
		Description:        "Built-in plugin set",
		RequiredNamespaces: []string{"file"},
		Plugins: map[string]PluginEntry{
			"file": {
				Enabled:  &enabled,
				Version:  "^1",
				Settings: PluginSettings{DefaultCharset: "UTF-8"},
			},
		},
		Aliases: map[string]string{
			"fs": "file",
		},
	}
}

// MergeManifests overlays override onto base. Plugin entries and aliases in override
// replace those in base; an empty override name or version keeps base's.
func MergeManifests(base, override *Manifest) *Manifest {
	merged := *base

	merged.Plugins = make(map[string]PluginEntry, len(base.Plugins)+len(override.Plugins))
	for name, entry := range base.Plugins {
		merged.Plugins[name] = entry
	}
	for name, entry := range override.Plugins {
		merged.Plugins[name] = entry
	}

	merged.Aliases = make(map[string]string, len(base.Aliases)+len(override.Aliases))
	for alias, target := range base.Aliases {
		merged.Aliases[alias] = target
	}
	for alias, target := range override.Aliases {
		merged.Aliases[alias] = target
	}

	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.RequiredNamespaces != nil {
		merged.RequiredNamespaces = append([]string(nil), override.RequiredNamespaces...)
	}
	return &merged
}
