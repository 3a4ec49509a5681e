// Package codec holds the payload codecs used to serialize entity versions
// into conflict records and back.
package codec

import (
	"encoding/json"
	"sort"
	"sync"
)

// Codec encodes and decodes the payload of one entity type.
type Codec interface {
	// Kind returns the entity type this codec serves
	Kind() string
	// Encode converts an entity version to raw JSON
	Encode(any) (json.RawMessage, error)
	// Decode converts raw JSON into the target, which must be a pointer
	Decode(raw json.RawMessage, target any) error
}

// JSON is the default codec: plain encoding/json for any kind.
type JSON struct {
	kind string
}

// NewJSON returns a JSON codec registered under kind.
func NewJSON(kind string) JSON { return JSON{kind: kind} }

func (c JSON) Kind() string { return c.kind }

func (c JSON) Encode(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

func (c JSON) Decode(raw json.RawMessage, target any) error {
	return json.Unmarshal(raw, target)
}

// Registry manages codec registration and lookup with thread safety.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates a new codec registry instance.
func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Codec),
	}
}

// Register adds a codec to the registry using its Kind() as the key.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Kind()] = c
}

// Get retrieves a codec by its kind identifier.
func (r *Registry) Get(kind string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[kind]
	return c, ok
}

// Lookup returns the codec for kind, or a JSON codec if none is registered.
func (r *Registry) Lookup(kind string) Codec {
	if c, ok := r.Get(kind); ok {
		return c
	}
	return NewJSON(kind)
}

// Kinds returns all registered codec kinds in ascending order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.codecs))
	for kind := range r.codecs {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultRegistry provides a global registry instance for convenience.
var DefaultRegistry = NewRegistry()

// Register registers a codec with the default registry.
func Register(c Codec) {
	DefaultRegistry.Register(c)
}

// Get retrieves a codec from the default registry.
func Get(kind string) (Codec, bool) {
	return DefaultRegistry.Get(kind)
}
