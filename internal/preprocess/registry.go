package preprocess

import (
	"fmt"
	"image"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/pdevine/tensor"

	"framectl/internal/services"
)

// Params are the per-frame preprocessor arguments.
type Params struct {
	Resolution int
	ThresholdA float64
	ThresholdB float64
	// Rand is the unit's seeded random source. Stochastic preprocessors must
	// draw from it and nothing else.
	Rand *rand.Rand
}

// Embedding holds the named outputs of embedding-style preprocessors.
type Embedding struct {
	LastHiddenState *tensor.Dense
	ImageEmbeds     *tensor.Dense
	HiddenStates    []*tensor.Dense
	// Raw is the plain tensor list produced by face-identity preprocessors.
	Raw []*tensor.Dense
}

// Result is a preprocessor's output: either an image-like detected map or
// an embedding.
type Result struct {
	Image     image.Image
	Embedding *Embedding
}

// IsImage reports whether the result is image-like.
func (r Result) IsImage() bool { return r.Image != nil }

// Func runs a preprocessor on one frame.
type Func func(img image.Image, p Params) (Result, error)

// Spec is a registered preprocessor.
type Spec struct {
	Name   string
	Family Family
	Run    Func
	// Unload releases cached weights, if any.
	Unload func()
}

// Option customizes a registration.
type Option func(*Spec)

// WithFamily overrides the family derived from the name.
func WithFamily(f Family) Option {
	return func(s *Spec) { s.Family = f }
}

// WithUnload installs a hook run when the preprocessor is no longer used.
func WithUnload(fn func()) Option {
	return func(s *Spec) { s.Unload = fn }
}

// Registry maps preprocessor names to implementations.
type Registry struct {
	specs   map[string]*Spec
	aliases map[string]string
	loaded  map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:   make(map[string]*Spec),
		aliases: make(map[string]string),
		loaded:  make(map[string]struct{}),
	}
}

// Register adds or replaces a preprocessor.
func (r *Registry) Register(name string, fn Func, opts ...Option) {
	spec := &Spec{Name: name, Family: FamilyOf(name), Run: fn}
	for _, opt := range opts {
		opt(spec)
	}
	r.specs[name] = spec
}

// Alias maps a display name onto a registered basename.
func (r *Registry) Alias(alias, name string) {
	r.aliases[alias] = name
}

// Basename resolves aliases and surrounding whitespace.
func (r *Registry) Basename(name string) string {
	name = strings.TrimSpace(name)
	if target, ok := r.aliases[name]; ok {
		return target
	}
	return name
}

// Lookup returns the spec for name after alias resolution.
func (r *Registry) Lookup(name string) (*Spec, error) {
	spec, ok := r.specs[r.Basename(name)]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "preprocess", "lookup", fmt.Sprintf("unknown preprocessor %q", name), nil)
	}
	return spec, nil
}

// Family returns the registered family for name, or the name-derived family
// for unregistered names.
func (r *Registry) Family(name string) Family {
	if spec, ok := r.specs[r.Basename(name)]; ok {
		return spec.Family
	}
	return FamilyOf(name)
}

// Run invokes a preprocessor and marks it loaded.
func (r *Registry) Run(spec *Spec, img image.Image, p Params) (Result, error) {
	r.loaded[spec.Name] = struct{}{}
	return spec.Run(img, p)
}

// UnloadUnused calls Unload on every loaded preprocessor not in active.
func (r *Registry) UnloadUnused(active []string) {
	keep := make(map[string]struct{}, len(active))
	for _, name := range active {
		keep[r.Basename(name)] = struct{}{}
	}
	for name := range r.loaded {
		if _, ok := keep[name]; ok {
			continue
		}
		if spec, ok := r.specs[name]; ok && spec.Unload != nil {
			spec.Unload()
		}
		delete(r.loaded, name)
	}
}

// Names lists registered preprocessors in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
