// Package modelfile reads model definitions from YAML and CUE files.
package modelfile

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/reactsim/internal/kinetics"
)

//go:embed schema.cue
var schemaSource string

// LoadError reports a model file that could not be read, decoded or
// validated.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads a model definition, choosing the decoder by file extension.
func Load(path string) (kinetics.Definition, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".cue":
		return LoadCUE(path)
	}
	return kinetics.Definition{}, &LoadError{Path: path, Err: fmt.Errorf("unsupported model file extension %q", filepath.Ext(path))}
}

// IsModelFile reports whether path has an extension Load understands.
func IsModelFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

func LoadYAML(path string) (kinetics.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return kinetics.Definition{}, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	def, err := DecodeYAML(f)
	if err != nil {
		return kinetics.Definition{}, &LoadError{Path: path, Err: err}
	}
	return def, nil
}

// DecodeYAML decodes and validates one definition. Unknown keys are errors.
func DecodeYAML(r io.Reader) (kinetics.Definition, error) {
	var def kinetics.Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if err == io.EOF {
			return kinetics.Definition{}, fmt.Errorf("empty model file")
		}
		return kinetics.Definition{}, fmt.Errorf("decoding yaml: %w", err)
	}
	if err := def.Validate(); err != nil {
		return kinetics.Definition{}, err
	}
	return def, nil
}

func LoadCUE(path string) (kinetics.Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return kinetics.Definition{}, &LoadError{Path: path, Err: err}
	}
	def, err := DecodeCUE(src, path)
	if err != nil {
		return kinetics.Definition{}, &LoadError{Path: path, Err: err}
	}
	return def, nil
}

// DecodeCUE checks src against the closed #Model schema and decodes it.
// Every field must be concrete.
func DecodeCUE(src []byte, filename string) (kinetics.Definition, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return kinetics.Definition{}, fmt.Errorf("compiling schema: %w", err)
	}
	model := schema.LookupPath(cue.ParsePath("#Model"))

	value := ctx.CompileBytes(bytes.TrimSpace(src), cue.Filename(filename))
	if err := value.Err(); err != nil {
		return kinetics.Definition{}, fmt.Errorf("compiling cue: %w", err)
	}

	unified := model.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return kinetics.Definition{}, fmt.Errorf("validating against #Model: %w", err)
	}

	var def kinetics.Definition
	if err := unified.Decode(&def); err != nil {
		return kinetics.Definition{}, fmt.Errorf("decoding cue: %w", err)
	}
	if err := def.Validate(); err != nil {
		return kinetics.Definition{}, err
	}
	return def, nil
}

// WriteYAML encodes def as YAML.
func WriteYAML(w io.Writer, def kinetics.Definition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return err
	}
	return enc.Close()
}
