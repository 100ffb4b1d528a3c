package integrators

import (
	"testing"

	"github.com/san-kum/reactsim/internal/dynamo"
)

type benchNetwork struct{}

func (b *benchNetwork) StateDim() int { return 20 }
func (b *benchNetwork) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	dx := make(dynamo.State, 20)
	for i := 0; i < 19; i++ {
		flux := 0.1 * x[i]
		dx[i] -= flux
		dx[i+1] += flux
	}
	return dx, nil
}

func benchState() dynamo.State {
	x := make(dynamo.State, 20)
	x[0] = 1
	return x
}

func BenchmarkEuler(b *testing.B) {
	integrator := NewEuler()
	dyn := &benchNetwork{}
	x := benchState()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, _ = integrator.Step(dyn, x, 0, 0.01)
	}
}

func BenchmarkRK4(b *testing.B) {
	integrator := NewRK4()
	dyn := &benchNetwork{}
	x := benchState()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, _ = integrator.Step(dyn, x, 0, 0.01)
	}
}

func BenchmarkRK45(b *testing.B) {
	integrator := NewRK45()
	dyn := &benchNetwork{}
	x := benchState()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, _ = integrator.Step(dyn, x, 0, 0.01)
	}
}

func BenchmarkRK45_Adaptive(b *testing.B) {
	integrator := NewRK45()
	dyn := &benchNetwork{}
	x := benchState()
	dt := 0.01

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, _, dt, _ = integrator.StepAdaptive(dyn, x, 0, dt, 1e-6)
		if dt > 1 {
			dt = 1
		}
	}
}
