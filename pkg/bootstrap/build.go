package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/script-runtime/pkg/events"
	"github.com/morezero/script-runtime/pkg/plugins/file"
	"github.com/morezero/script-runtime/pkg/registry"
	"github.com/morezero/script-runtime/pkg/semver"
)

const buildLogPrefix = "bootstrap:build"

// Deps are the shared services handed to every plugin factory.
type Deps struct {
	// Publisher receives download events; nil means none.
	Publisher events.Publisher
}

// Factory constructs a plugin from its manifest settings.
type Factory func(settings PluginSettings, deps Deps) (registry.Plugin, error)

// Builtins returns the factories for the plugins compiled into this binary.
func Builtins() map[string]Factory {
	return map[string]Factory{
		file.Namespace: newFilePlugin,
	}
}

func newFilePlugin(settings PluginSettings, deps Deps) (registry.Plugin, error) {
	cfg := file.DefaultConfig()
	if settings.DefaultCharset != "" {
		cfg.DefaultCharset = settings.DefaultCharset
	}
	if settings.UserAgent != "" {
		cfg.UserAgent = settings.UserAgent
	}
	if settings.RequestTimeout != "" {
		d, err := time.ParseDuration(settings.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("requestTimeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if settings.MaxBodySize > 0 {
		cfg.MaxBodySize = settings.MaxBodySize
	}
	cfg.RequestsPerSecond = settings.RequestsPerSecond
	cfg.Publisher = deps.Publisher
	return file.New(cfg), nil
}

// BuildOptions configures BuildRegistry.
type BuildOptions struct {
	// Factories defaults to Builtins().
	Factories map[string]Factory
	Deps      Deps
}

// BuildRegistry constructs every enabled plugin, checks its version against the
// manifest's range, registers plugins and aliases, and returns the sealed registry.
func BuildRegistry(m *Manifest, opts *BuildOptions) (*registry.Registry, error) {
	factories := Builtins()
	var deps Deps
	if opts != nil {
		if opts.Factories != nil {
			factories = opts.Factories
		}
		deps = opts.Deps
	}

	var plugins []registry.Plugin
	for _, name := range m.EnabledPlugins() {
		entry := m.Plugins[name]
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("%s - unknown plugin %q", buildLogPrefix, name)
		}
		p, err := factory(entry.Settings, deps)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to create plugin %q: %w", buildLogPrefix, name, err)
		}
		if p.Namespace() != name {
			return nil, fmt.Errorf("%s - plugin %q registers namespace %q", buildLogPrefix, name, p.Namespace())
		}
		if entry.Version != "" && !semver.SatisfiesRange(p.Version(), entry.Version) {
			return nil, fmt.Errorf("%s - plugin %q version %s does not satisfy %s", buildLogPrefix, name, p.Version(), entry.Version)
		}
		plugins = append(plugins, p)
	}

	reg, err := registry.Build(registry.BuildParams{Plugins: plugins, Aliases: m.Aliases})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to build registry: %w", buildLogPrefix, err)
	}

	for _, ns := range m.RequiredNamespaces {
		if _, err := reg.Namespace(ns); err != nil {
			return nil, fmt.Errorf("%s - required namespace %q is not registered", buildLogPrefix, ns)
		}
	}

	slog.Info(fmt.Sprintf("%s - manifest=%s plugins=%v", buildLogPrefix, m.Name, m.EnabledPlugins()))
	return reg, nil
}
