package experiment

import (
	"fmt"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/integrators"
	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/metrics"
	"github.com/san-kum/reactsim/internal/modelfile"
	"github.com/san-kum/reactsim/internal/models"
)

// Registry resolves model and integrator names for the CLI and scenarios.
// Models come from the built-in catalog or, for names with a model file
// extension, from disk.
type Registry struct {
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
	}
	for _, name := range integrators.Names() {
		r.integrators[name] = func() dynamo.Integrator {
			integ, _ := integrators.New(name)
			return integ
		}
	}
	return r
}

// GetDefinition returns a built-in model or loads a model file.
func (r *Registry) GetDefinition(name string) (kinetics.Definition, error) {
	if modelfile.IsModelFile(name) {
		return modelfile.Load(name)
	}
	return models.Get(name)
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, integrators.Names())
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	return models.Names()
}

func (r *Registry) ListIntegrators() []string {
	return integrators.Names()
}

func (r *Registry) DefaultMetrics(def kinetics.Definition) []dynamo.Metric {
	return metrics.Default(def.Species)
}
