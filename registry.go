package evstream

import (
	"fmt"
	"slices"
	"strings"
)

// RedefinePolicy decides what happens when a klass id is registered twice
// with a different layout. Identical re-registrations are always no-ops.
type RedefinePolicy uint8

const (
	// RedefineReplace atomically swaps in the new definition and bumps its Version.
	RedefineReplace RedefinePolicy = iota
	// RedefineReject refuses the new definition with ErrKlassRedefined.
	RedefineReject
	// RedefineKeep silently keeps the first definition.
	RedefineKeep
)

var policyNames = [...]string{
	RedefineReplace: "replace",
	RedefineReject:  "reject",
	RedefineKeep:    "keep",
}

func (p RedefinePolicy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("RedefinePolicy(%d)", uint8(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p RedefinePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *RedefinePolicy) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range policyNames {
		if n == name {
			*p = RedefinePolicy(i)
			return nil
		}
	}
	return fmt.Errorf("%w: redefine policy %q", ErrInvalidOption, string(text))
}

// Registry maps klass ids to their current definition.
//
// A Registry belongs to one Assembler and is not safe for concurrent use.
type Registry struct {
	klasses map[uint32]*Klass
	policy  RedefinePolicy
}

// NewRegistry creates an empty registry with the given policy.
func NewRegistry(policy RedefinePolicy) *Registry {
	return &Registry{klasses: make(map[uint32]*Klass), policy: policy}
}

// Policy returns the redefinition policy.
func (r *Registry) Policy() RedefinePolicy { return r.policy }

// Register inserts k, or resolves a redefinition according to the policy.
// It returns a copy of the definition now in effect for k.ID and whether
// the registry changed. The registry keeps its own copy of k.
func (r *Registry) Register(k Klass) (*Klass, bool, error) {
	def, changed, err := r.register(k)
	if def != nil {
		def = def.clone()
	}
	return def, changed, err
}

func (r *Registry) register(k Klass) (*Klass, bool, error) {
	if err := k.Validate(); err != nil {
		return nil, false, err
	}
	prev, ok := r.klasses[k.ID]
	if !ok {
		def := k.clone()
		def.Version = 1
		r.klasses[k.ID] = def
		return def, true, nil
	}
	if prev.Equal(&k) {
		return prev, false, nil
	}
	switch r.policy {
	case RedefineReject:
		return prev, false, fmt.Errorf("%w: klass %d %q", ErrKlassRedefined, k.ID, prev.Name)
	case RedefineKeep:
		return prev, false, nil
	}
	def := k.clone()
	def.Version = prev.Version + 1
	r.klasses[k.ID] = def
	return def, true, nil
}

// Lookup returns a copy of the definition for id.
func (r *Registry) Lookup(id uint32) (*Klass, bool) {
	k, ok := r.klasses[id]
	if !ok {
		return nil, false
	}
	return k.clone(), true
}

// get returns the stored definition for the decode path. Callers must not
// modify it.
func (r *Registry) get(id uint32) (*Klass, bool) {
	k, ok := r.klasses[id]
	return k, ok
}

// LookupName returns a copy of the lowest-id klass with the given name.
func (r *Registry) LookupName(name string) (*Klass, bool) {
	var found *Klass
	for _, k := range r.klasses {
		if k.Name == name && (found == nil || k.ID < found.ID) {
			found = k
		}
	}
	if found == nil {
		return nil, false
	}
	return found.clone(), true
}

// Len returns the number of registered klasses.
func (r *Registry) Len() int { return len(r.klasses) }

// Klasses returns copies of all definitions ordered by id.
func (r *Registry) Klasses() []Klass {
	out := make([]Klass, 0, len(r.klasses))
	for _, k := range r.klasses {
		out = append(out, *k.clone())
	}
	slices.SortFunc(out, func(a, b Klass) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Preload registers klasses known ahead of the stream, typically from config.
func (r *Registry) Preload(klasses []Klass) error {
	for _, k := range klasses {
		if _, _, err := r.register(k); err != nil {
			return fmt.Errorf("preload klass %d %q: %w", k.ID, k.Name, err)
		}
	}
	return nil
}

// restore replaces the contents wholesale, keeping stored versions.
func (r *Registry) restore(klasses []Klass) error {
	m := make(map[uint32]*Klass, len(klasses))
	for _, k := range klasses {
		if err := k.Validate(); err != nil {
			return err
		}
		m[k.ID] = k.clone()
	}
	r.klasses = m
	return nil
}
