package integrators

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/san-kum/reactsim/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int { return 2 }

func (h *harmonicOscillator) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{x[1], -x[0]}, nil
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

// ramp decreases x at a constant rate and fails once x turns negative, like a
// Monod term evaluated past its singularity.
type ramp struct{ calls int }

func (r *ramp) StateDim() int { return 1 }

func (r *ramp) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	r.calls++
	if x[0] < 0 {
		return nil, &dynamo.EvalError{Formula: "log(S)", Ident: "log", Err: fmt.Errorf("%w: negative", dynamo.ErrNumeric)}
	}
	return dynamo.State{-10}, nil
}

type failing struct{ err error }

func (f failing) StateDim() int { return 1 }
func (f failing) Derive(dynamo.State, float64) (dynamo.State, error) {
	return nil, f.err
}

func TestRK45_Step(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}
	dt := 0.01

	for i := 0; i < 1000; i++ {
		var err error
		x, err = integrator.Step(dyn, x, float64(i)*dt, dt)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if !x.IsValid() {
		t.Error("RK45 produced invalid state")
	}
}

func TestRK45_EnergyConservation(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	initialEnergy := dyn.Energy(x0)
	x := x0.Clone()
	dt := 0.01

	for i := 0; i < 10000; i++ {
		x, _ = integrator.Step(dyn, x, float64(i)*dt, dt)
	}

	drift := math.Abs(dyn.Energy(x)-initialEnergy) / initialEnergy
	if drift > 1e-6 {
		t.Errorf("RK45 energy drift too high: %e", drift)
	}
}

func TestRK45_AdaptiveStep(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}

	x, taken, proposed, err := integrator.StepAdaptive(dyn, dynamo.State{1.0, 0.0}, 0, 0.1, 1e-8)
	if err != nil {
		t.Fatalf("StepAdaptive returned error: %v", err)
	}
	if !x.IsValid() {
		t.Error("StepAdaptive produced invalid state")
	}
	if taken <= 0 || taken > 0.1 {
		t.Errorf("taken dt = %g, want (0, 0.1]", taken)
	}
	if proposed <= 0 {
		t.Errorf("proposed dt = %g", proposed)
	}
	if math.Abs(x[0]-math.Cos(taken)) > 1e-7 {
		t.Errorf("x = %v after %g, want cos", x, taken)
	}
}

func TestRK45_RejectsLargeSteps(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}

	_, taken, _, err := integrator.StepAdaptive(dyn, dynamo.State{1.0, 0.0}, 0, 5.0, 1e-10)
	if err != nil {
		t.Fatal(err)
	}
	if taken >= 5.0 {
		t.Errorf("taken = %g, want a reduced step", taken)
	}
	if integrator.Rejections() == 0 {
		t.Error("expected rejected trial steps")
	}
}

func TestRK45_MaxDtCapsProposal(t *testing.T) {
	integrator := NewRK45()
	integrator.MaxDt = 0.05

	_, _, proposed, err := integrator.StepAdaptive(&harmonicOscillator{}, dynamo.State{1.0, 0.0}, 0, 0.01, 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	if proposed > 0.05 {
		t.Errorf("proposed = %g, want <= 0.05", proposed)
	}
}

func TestRK45_HalvesOnNumericError(t *testing.T) {
	integrator := NewRK45()
	dyn := &ramp{}

	x, taken, _, err := integrator.StepAdaptive(dyn, dynamo.State{1}, 0, 1.0, 1e-6)
	if err != nil {
		t.Fatalf("StepAdaptive: %v", err)
	}
	if taken >= 0.1 {
		t.Errorf("taken = %g, want below 0.1", taken)
	}
	if x[0] < 0 {
		t.Errorf("x = %v, want non-negative", x)
	}
	if integrator.Rejections() == 0 {
		t.Error("numeric failures should count as rejections")
	}
}

func TestRK45_StepTooSmall(t *testing.T) {
	integrator := NewRK45()
	integrator.MinDt = 1e-3
	dyn := failing{err: fmt.Errorf("%w: always", dynamo.ErrNumeric)}

	_, _, _, err := integrator.StepAdaptive(dyn, dynamo.State{1}, 0, 1.0, 1e-6)
	if !errors.Is(err, dynamo.ErrStepTooSmall) {
		t.Errorf("err = %v, want ErrStepTooSmall", err)
	}
}

func TestRK45_OtherErrorsAbort(t *testing.T) {
	integrator := NewRK45()
	dyn := failing{err: dynamo.ErrUnresolvedIdentifier}

	_, _, _, err := integrator.StepAdaptive(dyn, dynamo.State{1}, 0, 1.0, 1e-6)
	if !errors.Is(err, dynamo.ErrUnresolvedIdentifier) {
		t.Errorf("err = %v, want ErrUnresolvedIdentifier", err)
	}
	if integrator.Rejections() != 0 {
		t.Errorf("rejections = %d, want 0", integrator.Rejections())
	}
}

func TestRK45_VsRK4_Accuracy(t *testing.T) {
	rk4 := NewRK4()
	rk45 := NewRK45()
	dyn := &harmonicOscillator{}

	x4 := dynamo.State{1.0, 0.0}
	x45 := dynamo.State{1.0, 0.0}
	dt := 0.1

	for i := 0; i < 100; i++ {
		x4, _ = rk4.Step(dyn, x4, float64(i)*dt, dt)
		x45, _ = rk45.Step(dyn, x45, float64(i)*dt, dt)
	}

	e4 := dyn.Energy(x4)
	e45 := dyn.Energy(x45)
	if math.Abs(e45-0.5) > math.Abs(e4-0.5) {
		t.Errorf("RK45 drift %e exceeds RK4 drift %e", math.Abs(e45-0.5), math.Abs(e4-0.5))
	}
}
