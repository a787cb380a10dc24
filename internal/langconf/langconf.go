package langconf

import (
	"fmt"
	"os"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pelletier/go-toml/v2"
)

// LanguageConfig describes one supported toolchain: the base image the
// submission is built on top of and the compiler invocation prefix.
type LanguageConfig struct {
	ID        string `toml:"id"`
	BaseImage string `toml:"base_image"`
	Compiler  string `toml:"compiler"`
}

// BuildCommand renders the compile line for the given entry point and
// source files. Source filenames are joined in submission order; argument
// order is part of the contract with the submitter.
func (c LanguageConfig) BuildCommand(entryPoint string, sources []string) string {
	return fmt.Sprintf("%s -o %s %s", c.Compiler, entryPoint, strings.Join(sources, " "))
}

// ErrUndefinedLanguage is returned for a toolchain id outside the
// allow-list.
type ErrUndefinedLanguage struct {
	ID string
}

func (e *ErrUndefinedLanguage) Error() string {
	return fmt.Sprintf("undefined language: %s", e.ID)
}

// Registry is the fixed allow-list of supported toolchains.
type Registry struct {
	langs map[string]LanguageConfig
	ids   mapset.Set[string]
}

// Default returns the built-in registry. It carries a single toolchain;
// more are added through a registry file, not code.
func Default() *Registry {
	return newRegistry([]LanguageConfig{
		{
			ID:        "cpp17",
			BaseImage: "gcc:13",
			Compiler:  "g++ -std=c++17 -O2",
		},
	})
}

// Load reads a TOML registry file of [[languages]] entries.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language registry: %w", err)
	}
	var root struct {
		Languages []LanguageConfig `toml:"languages"`
	}
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse language registry: %w", err)
	}
	if len(root.Languages) == 0 {
		return nil, fmt.Errorf("language registry %s defines no languages", path)
	}
	for _, l := range root.Languages {
		if l.ID == "" || l.BaseImage == "" || l.Compiler == "" {
			return nil, fmt.Errorf("language registry entry incomplete; require id, base_image, compiler (id=%q)", l.ID)
		}
	}
	return newRegistry(root.Languages), nil
}

func newRegistry(langs []LanguageConfig) *Registry {
	r := &Registry{
		langs: make(map[string]LanguageConfig, len(langs)),
		ids:   mapset.NewSet[string](),
	}
	for _, l := range langs {
		r.langs[l.ID] = l
		r.ids.Add(l.ID)
	}
	return r
}

// Get looks a toolchain up by id.
func (r *Registry) Get(id string) (LanguageConfig, error) {
	c, ok := r.langs[id]
	if !ok {
		return LanguageConfig{}, &ErrUndefinedLanguage{ID: id}
	}
	return c, nil
}

func (r *Registry) IsSupported(id string) bool {
	return r.ids.Contains(id)
}

// Supported returns the allow-list ids in stable order.
func (r *Registry) Supported() []string {
	ids := r.ids.ToSlice()
	sort.Strings(ids)
	return ids
}
