package signatures

import (
	"errors"
	"fmt"
	"sort"
)

// Registry is an immutable, ordered catalog of compiled signatures. It is safe
// for concurrent use. Definition order is preserved and decides the order in
// which signatures are evaluated on a line.
type Registry struct {
	signatures []Signature
	byID       map[string]int
}

// NewRegistry validates and compiles the given signatures. Any malformed
// signature or duplicate id is a configuration error; all problems are
// reported together.
func NewRegistry(sigs ...Signature) (*Registry, error) {
	r := &Registry{
		signatures: make([]Signature, 0, len(sigs)),
		byID:       make(map[string]int, len(sigs)),
	}
	if err := r.add(sigs); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNewRegistry is NewRegistry that panics on error. Use it for catalogs
// compiled into the binary.
func MustNewRegistry(sigs ...Signature) *Registry {
	r, err := NewRegistry(sigs...)
	if err != nil {
		panic(fmt.Sprintf("signatures: %v", err))
	}
	return r
}

func (r *Registry) add(sigs []Signature) error {
	var errs []error
	for _, sig := range sigs {
		sig.Languages = append([]string(nil), sig.Languages...)
		if err := sig.compile(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, exists := r.byID[sig.ID]; exists {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateID, sig.ID))
			continue
		}
		r.byID[sig.ID] = len(r.signatures)
		r.signatures = append(r.signatures, sig)
	}
	return errors.Join(errs...)
}

// Extend returns a new registry holding the current signatures followed by
// sigs. Existing entries cannot be replaced: reusing an id is an error.
func (r *Registry) Extend(sigs ...Signature) (*Registry, error) {
	next := &Registry{
		signatures: make([]Signature, len(r.signatures), len(r.signatures)+len(sigs)),
		byID:       make(map[string]int, len(r.signatures)+len(sigs)),
	}
	copy(next.signatures, r.signatures)
	for id, idx := range r.byID {
		next.byID[id] = idx
	}
	if err := next.add(sigs); err != nil {
		return nil, err
	}
	return next, nil
}

// Applicable returns the signatures that apply to language, in definition
// order. Unknown or empty languages only get wildcard signatures.
func (r *Registry) Applicable(language string) []Signature {
	language = NormalizeLanguage(language)

	result := make([]Signature, 0, len(r.signatures))
	for i := range r.signatures {
		if r.signatures[i].AppliesTo(language) {
			result = append(result, r.signatures[i])
		}
	}
	return result
}

// Lookup returns the signature with the given id.
func (r *Registry) Lookup(id string) (Signature, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Signature{}, false
	}
	return r.signatures[idx], true
}

// All returns a copy of every signature in definition order.
func (r *Registry) All() []Signature {
	result := make([]Signature, len(r.signatures))
	copy(result, r.signatures)
	return result
}

// Len returns the number of signatures.
func (r *Registry) Len() int {
	return len(r.signatures)
}

// Languages returns the sorted set of explicit language tags referenced by the
// catalog. The wildcard is not included.
func (r *Registry) Languages() []string {
	seen := make(map[string]bool)
	for _, sig := range r.signatures {
		for _, l := range sig.Languages {
			if l != Wildcard {
				seen[l] = true
			}
		}
	}

	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}
