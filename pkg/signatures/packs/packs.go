// Package packs provides the embedded default signature catalog for CodeShield.
package packs

import (
	"embed"
	"fmt"

	"github.com/brad07/codeshield/pkg/signatures"
)

//go:embed *.yaml
var packsFS embed.FS

// PackName represents a signature pack name.
type PackName string

const (
	Injection PackName = "injection"
	Secrets   PackName = "secrets"
	Crypto    PackName = "crypto"
	Web       PackName = "web"
)

// ValidPackNames returns all valid pack names in catalog order.
func ValidPackNames() []PackName {
	return []PackName{Injection, Secrets, Crypto, Web}
}

// IsValidPackName checks if a pack name is valid.
func IsValidPackName(name string) bool {
	for _, valid := range ValidPackNames() {
		if string(valid) == name {
			return true
		}
	}
	return false
}

// Load loads a signature pack by name.
func Load(name PackName) (*signatures.Pack, error) {
	filename := string(name) + ".yaml"
	data, err := packsFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read pack %s: %w", name, err)
	}

	return signatures.Parse(data)
}

// LoadByName loads a signature pack by string name.
func LoadByName(name string) (*signatures.Pack, error) {
	if !IsValidPackName(name) {
		return nil, fmt.Errorf("invalid pack name: %s (valid: injection, secrets, crypto, web)", name)
	}
	return Load(PackName(name))
}

// LoadAll loads all embedded packs in catalog order.
func LoadAll() ([]*signatures.Pack, error) {
	var packs []*signatures.Pack

	for _, name := range ValidPackNames() {
		p, err := Load(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load pack %s: %w", name, err)
		}
		packs = append(packs, p)
	}

	return packs, nil
}

// Default returns a registry holding every embedded pack. Pack order, then
// the order inside each file, is the evaluation order.
func Default() (*signatures.Registry, error) {
	packs, err := LoadAll()
	if err != nil {
		return nil, err
	}

	var all []signatures.Signature
	for _, p := range packs {
		all = append(all, p.Signatures...)
	}
	return signatures.NewRegistry(all...)
}

// MustDefault returns the default registry and panics on error.
// A broken embedded catalog is a build defect, so failure is fatal.
func MustDefault() *signatures.Registry {
	r, err := Default()
	if err != nil {
		panic(fmt.Sprintf("failed to load default signature catalog: %v", err))
	}
	return r
}

// PackInfo contains information about a signature pack.
type PackInfo struct {
	Name           PackName
	DisplayName    string
	Description    string
	Version        string
	SignatureCount int
}

// ListAll returns information about all available packs.
func ListAll() ([]*PackInfo, error) {
	packs, err := LoadAll()
	if err != nil {
		return nil, err
	}

	infos := make([]*PackInfo, 0, len(packs))
	for i, p := range packs {
		infos = append(infos, &PackInfo{
			Name:           ValidPackNames()[i],
			DisplayName:    p.Name,
			Description:    p.Description,
			Version:        p.Version,
			SignatureCount: len(p.Signatures),
		})
	}
	return infos, nil
}
