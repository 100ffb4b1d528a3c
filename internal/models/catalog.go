// Package models holds the built-in reaction networks.
package models

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/modelfile"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

var (
	loadOnce sync.Once
	catalog  map[string]kinetics.Definition
	loadErr  error
)

func load() {
	entries, err := catalogFS.ReadDir("catalog")
	if err != nil {
		loadErr = err
		return
	}
	catalog = make(map[string]kinetics.Definition, len(entries))
	for _, e := range entries {
		data, err := catalogFS.ReadFile(path.Join("catalog", e.Name()))
		if err != nil {
			loadErr = err
			return
		}
		def, err := modelfile.DecodeYAML(bytes.NewReader(data))
		if err != nil {
			loadErr = fmt.Errorf("built-in model %s: %w", e.Name(), err)
			return
		}
		if want := strings.TrimSuffix(e.Name(), ".yaml"); def.Name != want {
			loadErr = fmt.Errorf("built-in model %s is named %q", e.Name(), def.Name)
			return
		}
		catalog[def.Name] = def
	}
}

// Names returns the built-in model names in sorted order.
func Names() []string {
	loadOnce.Do(load)
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of a built-in definition.
func Get(name string) (kinetics.Definition, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return kinetics.Definition{}, loadErr
	}
	def, ok := catalog[name]
	if !ok {
		return kinetics.Definition{}, fmt.Errorf("unknown model: %s (available: %v)", name, Names())
	}
	return def.Clone(), nil
}
