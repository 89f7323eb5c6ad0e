// Package errors provides the audio core's error-builder type: a thin
// wrapper over the standard errors package that attaches a component, a
// category, and free-form context to an error without losing Is/As
// compatibility.
package errors

import (
	stderrors "errors"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Category groups errors by the subsystem that raised them, mirroring the
// error/warning taxonomy of the audio core (init errors, runtime errors,
// and the component that detected them).
type Category string

const (
	CategoryInit      Category = "init"
	CategoryRuntime   Category = "runtime"
	CategoryQueue     Category = "queue"
	CategoryPipeline  Category = "pipeline"
	CategoryCDC       Category = "cdc"
	CategoryADPCM     Category = "adpcm"
	CategoryFIR       Category = "fir"
	CategoryFallback  Category = "fallback"
	CategoryPacking   Category = "packing"
	CategoryVolume    Category = "volume"
	CategoryEndpoint  Category = "endpoint"
	CategoryGeneric   Category = "generic"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// CoreError wraps an error with a component, category and context.
type CoreError struct {
	Err       error
	component string
	Category  Category
	Context   map[string]any
	Timestamp time.Time
	mu        sync.RWMutex
	detected  bool
}

func (ce *CoreError) Error() string { return ce.Err.Error() }

func (ce *CoreError) Unwrap() error { return ce.Err }

func (ce *CoreError) Is(target error) bool {
	if other, ok := target.(*CoreError); ok {
		return ce.Category == other.Category
	}
	return stderrors.Is(ce.Err, target)
}

// GetComponent returns the component name, detecting it lazily from the
// call stack the first time it is asked for.
func (ce *CoreError) GetComponent() string {
	ce.mu.RLock()
	if ce.detected {
		c := ce.component
		ce.mu.RUnlock()
		return c
	}
	ce.mu.RUnlock()

	ce.mu.Lock()
	defer ce.mu.Unlock()
	if !ce.detected {
		if ce.component == "" {
			ce.component = detectComponent()
		}
		ce.detected = true
	}
	return ce.component
}

// GetContext returns a copy of the error's context map.
func (ce *CoreError) GetContext() map[string]any {
	ce.mu.RLock()
	defer ce.mu.RUnlock()
	if ce.Context == nil {
		return nil
	}
	cp := make(map[string]any, len(ce.Context))
	maps.Copy(cp, ce.Context)
	return cp
}

// Builder accumulates component/category/context before producing a
// *CoreError.
type Builder struct {
	err       error
	component string
	category  Category
	context   map[string]any
}

// New starts building an error around err.
func New(err error) *Builder {
	return &Builder{err: err}
}

func (b *Builder) Component(component string) *Builder {
	b.component = component
	return b
}

func (b *Builder) Category(category Category) *Builder {
	b.category = category
	return b
}

func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build produces the CoreError. Component auto-detects from the call
// stack when not set explicitly; category defaults to CategoryGeneric.
func (b *Builder) Build() *CoreError {
	ce := &CoreError{
		Err:       b.err,
		component: b.component,
		Category:  b.category,
		Context:   b.context,
		Timestamp: time.Now(),
		detected:  b.component != "",
	}
	if ce.Category == "" {
		ce.Category = CategoryGeneric
	}
	return ce
}

var (
	componentRegistry = map[string]string{
		"audiocore/pool":     "pool",
		"audiocore/node":     "node",
		"audiocore/pipeline": "pipeline",
		"stages/packing":     "packing",
		"stages/adpcm":       "adpcm",
		"stages/resample":    "fir",
		"stages/volume":      "volume",
		"stages/cdcresample": "cdc-resample",
		"stages/cdcpll":      "cdc-pll",
		"stages/mute":        "mute",
		"fallback":           "fallback",
	}
	registryMutex sync.RWMutex
)

// RegisterComponent adds a package-path-fragment to component-name
// mapping used by auto-detection.
func RegisterComponent(packagePattern, componentName string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	componentRegistry[packagePattern] = componentName
}

func detectComponent() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	for i := 0; i < n; i++ {
		fn := runtime.FuncForPC(pcs[i])
		if fn == nil {
			continue
		}
		name := fn.Name()
		if strings.Contains(name, "sparkmicro/audiocore/internal/errors") {
			continue
		}
		if c := lookupComponent(name); c != ComponentUnknown {
			return c
		}
	}
	return ComponentUnknown
}

func lookupComponent(funcName string) string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	for pattern, component := range componentRegistry {
		if strings.Contains(funcName, pattern) {
			return component
		}
	}
	parts := strings.Split(funcName, "/")
	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if dot := strings.Index(last, "."); dot > 0 {
			return last[:dot]
		}
	}
	return ComponentUnknown
}

// Standard library passthroughs so this package composes with errors.Is/As.

func Is(err, target error) bool { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// IsCategory reports whether err is a *CoreError of the given category.
func IsCategory(err error, category Category) bool {
	var ce *CoreError
	return As(err, &ce) && ce.Category == category
}
