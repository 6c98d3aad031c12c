package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dispatchd/dispatch/cache"
	"github.com/dispatchd/dispatch/fault"
)

const (
	defaultResultTTL = 5 * time.Minute
	defaultTimeout   = 10 * time.Second
	defaultCacheCap  = 256
)

// Options configures a Registry.
type Options struct {
	ResultTTL     time.Duration // how long tool results stay cached
	Timeout       time.Duration // per-invocation execution deadline
	CacheCapacity int
	Logger        *slog.Logger
}

// Registry holds a fixed set of tools and executes them with validation,
// a deadline, and result caching. The tool set never changes after
// construction.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	results *cache.Cache[any]
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistry creates a registry populated with the given tools.
func NewRegistry(opts Options, tools ...Tool) *Registry {
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = defaultResultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = defaultCacheCap
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		results: cache.New[any](opts.CacheCapacity),
		ttl:     opts.ResultTTL,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	for _, t := range tools {
		r.tools[t.Definition().Name] = t
	}
	return r
}

// NewDefaultRegistry creates a registry with the built-in tool set.
func NewDefaultRegistry(opts Options) *Registry {
	return NewRegistry(opts,
		&CalculateTool{},
		&ClockTool{},
		&JSONTool{},
		&RunCodeTool{},
	)
}

// Defs returns the definitions of all registered tools, sorted by name.
func (r *Registry) Defs() []Def {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Def, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// CacheStats returns the result cache counters.
func (r *Registry) CacheStats() cache.Stats { return r.results.Stats() }

// Execute runs a tool by name. A cached result within its TTL is returned
// without re-running the handler; concurrent misses on the same invocation
// share one handler run. Execution is bounded by the registry deadline.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	v, _, err := r.execute(ctx, name, args)
	return v, err
}

// execute additionally reports whether the result came from the cache
// rather than a handler run of this call's own.
func (r *Registry) execute(ctx context.Context, name string, args map[string]any) (any, bool, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false, fault.NotFound("tool %q not registered", name)
	}
	if err := validateArgs(t.Definition(), args); err != nil {
		return nil, false, err
	}

	key := invocationKey(name, args)
	ran := false
	v, err := r.results.GetOrSet(key, r.ttl, func() (any, error) {
		ran = true
		start := time.Now()
		execCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		done := make(chan struct{})
		var (
			result any
			err    error
		)
		go func() {
			defer close(done)
			result, err = t.Execute(execCtx, args)
		}()

		select {
		case <-done:
		case <-execCtx.Done():
			r.logger.Warn("tool timed out", slog.String("tool", name), slog.Duration("after", r.timeout))
			return nil, fault.Timeout("tool %q exceeded %s", name, r.timeout)
		}
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		r.logger.Debug("tool executed",
			slog.String("tool", name),
			slog.Duration("took", time.Since(start)))
		return result, nil
	})
	return v, err == nil && !ran, err
}

// Invocation is one entry in an ExecuteMany batch.
type Invocation struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Result pairs an invocation with its outcome. Exactly one of Value and
// Err is meaningful. Cached reports that the value was served from the
// result cache; Duration is this invocation's own wall time.
type Result struct {
	Name     string        `json:"name"`
	Value    any           `json:"value,omitempty"`
	Cached   bool          `json:"cached,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// ExecuteMany runs independent invocations concurrently. Results are
// returned in input order regardless of completion order, and one failing
// invocation never cancels its siblings.
func (r *Registry) ExecuteMany(ctx context.Context, invocations []Invocation) []Result {
	results := make([]Result, len(invocations))
	var wg sync.WaitGroup
	for i, inv := range invocations {
		wg.Add(1)
		go func(i int, inv Invocation) {
			defer wg.Done()
			start := time.Now()
			v, cached, err := r.execute(ctx, inv.Name, inv.Args)
			results[i] = Result{
				Name:     inv.Name,
				Value:    v,
				Cached:   cached,
				Duration: time.Since(start),
				Err:      err,
			}
		}(i, inv)
	}
	wg.Wait()
	return results
}

// invocationKey derives the cache key for (name, args). encoding/json
// writes map keys in sorted order, so equal argument sets produce equal
// keys.
func invocationKey(name string, args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", args))
	}
	return name + ":" + string(data)
}

// validateArgs checks args against the tool's schema before dispatch.
func validateArgs(def Def, args map[string]any) error {
	known := make(map[string]Param, len(def.Params))
	for _, p := range def.Params {
		known[p.Name] = p
		if p.Required {
			if _, ok := args[p.Name]; !ok {
				return fault.Validation("tool %q: missing required argument %q", def.Name, p.Name)
			}
		}
	}
	for name, val := range args {
		p, ok := known[name]
		if !ok {
			return fault.Validation("tool %q: unknown argument %q", def.Name, name)
		}
		if !kindMatches(p.Kind, val) {
			return fault.Validation("tool %q: argument %q must be %s", def.Name, name, p.Kind)
		}
	}
	return nil
}

func kindMatches(kind ParamKind, val any) bool {
	if val == nil {
		return true
	}
	switch kind {
	case KindString:
		_, ok := val.(string)
		return ok
	case KindNumber:
		switch val.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case KindBoolean:
		_, ok := val.(bool)
		return ok
	case KindObject:
		_, ok := val.(map[string]any)
		return ok
	case KindArray:
		_, ok := val.([]any)
		return ok
	default:
		return true
	}
}
