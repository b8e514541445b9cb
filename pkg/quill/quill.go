// Package quill renders document templates. A template is plain text
// with {{...}} tags for variable interpolation, conditionals, loops,
// and interactive prompts, plus <% ... %> fragments evaluated in a
// budgeted expression sandbox.
//
// Basic usage:
//
//	engine := quill.New()
//	result, err := engine.Render(ctx, "Hello {{name}}!", map[string]interface{}{
//		"name": "Ada",
//	})
//
// Prompt tags ask the host for values through a PromptCollector before
// any rendering happens; a Session remembers answers across renders.
// Validate and GetStatistics inspect templates without rendering them.
package quill

import (
	"context"
)

// Engine is the top-level template processor. It owns the parse cache,
// the filter registry, and the script sandbox; one Engine is safe for
// concurrent use.
type Engine struct {
	config   *Config
	cache    *TemplateCache
	registry *FilterRegistry
	sandbox  *SandboxEvaluator
}

// New creates an engine with the default configuration.
func New() *Engine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an engine with explicit configuration. A nil
// config means defaults.
func NewWithConfig(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	registry := NewFilterRegistry()
	for _, name := range DefaultFilterRegistry().Names() {
		fn, _ := DefaultFilterRegistry().Get(name)
		registry.Register(name, fn)
	}
	return &Engine{
		config:   cfg,
		cache:    NewTemplateCache(cfg.CacheMaxSize, cfg.CacheTTL),
		registry: registry,
		sandbox:  NewSandboxEvaluator(cfg.SandboxBudget()),
	}
}

// NewFromEnv creates an engine configured from QUILL_* environment
// variables.
func NewFromEnv() (*Engine, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg), nil
}

// RegisterFilter adds or replaces a filter on this engine. Registering
// a built-in name overrides the built-in for this engine only.
func (e *Engine) RegisterFilter(name string, fn FilterFunc) {
	e.registry.Register(name, fn)
}

// Filters returns the names of the filters this engine resolves.
func (e *Engine) Filters() []string {
	return e.registry.Names()
}

// Render processes a template with the engine's defaults: no prompt
// collector and no session, so prompt tags render their defaults.
func (e *Engine) Render(ctx context.Context, content string, data map[string]interface{}) (*Result, error) {
	return e.Process(ctx, content, data, Options{})
}

// Process runs the full pipeline with per-render options. The engine's
// cache, registry, and sandbox fill any option left nil; an engine
// configured strict renders strict regardless of the options.
func (e *Engine) Process(ctx context.Context, content string, data map[string]interface{}, opts Options) (*Result, error) {
	if opts.Registry == nil {
		opts.Registry = e.registry
	}
	if opts.Sandbox == nil {
		opts.Sandbox = e.sandbox
	}
	if opts.Cache == nil {
		opts.Cache = e.cache
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = e.config.MaxLoopIterations
	}
	if e.config.StrictMode {
		opts.Strict = true
	}
	return Process(ctx, content, data, opts)
}

// ProcessTemplate parses a stored template document (frontmatter plus
// body) and renders its body.
func (e *Engine) ProcessTemplate(ctx context.Context, raw string, data map[string]interface{}, opts Options) (*Template, *Result, error) {
	tpl, err := ParseTemplate(raw)
	if err != nil {
		return nil, nil, err
	}
	result, err := e.Process(ctx, tpl.Content, data, opts)
	if err != nil {
		return tpl, nil, err
	}
	return tpl, result, nil
}

// Validate checks a template against this engine's filter registry.
func (e *Engine) Validate(content string) *ValidationResult {
	return Validate(content, e.registry)
}

// Statistics tallies a template's constructs.
func (e *Engine) Statistics(content string) *TemplateStatistics {
	return GetStatistics(content)
}

// ClearCache drops all cached parse results.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}
