package integrators

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/reactsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is the Dormand-Prince 5(4) pair with local error control. A trial step
// whose error exceeds the tolerance is rejected and retried smaller; a trial
// step that hits a numeric error (division by zero, log of a negative value)
// is retried at half size. Both give up below MinDt.
type RK45 struct {
	Safety   float64
	MinScale float64
	MaxScale float64
	MinDt    float64
	MaxDt    float64

	rejected int
}

func NewRK45() *RK45 {
	return &RK45{
		Safety:   0.9,
		MinScale: 0.2,
		MaxScale: 10.0,
		MinDt:    1e-10,
	}
}

// SetStepBounds limits the step sizes StepAdaptive may try or propose.
// A zero bound is left unchanged.
func (r *RK45) SetStepBounds(minDt, maxDt float64) {
	if minDt > 0 {
		r.MinDt = minDt
	}
	if maxDt > 0 {
		r.MaxDt = maxDt
	}
}

// Rejections returns how many trial steps were rejected so far.
func (r *RK45) Rejections() int { return r.rejected }

// Step takes one step of exactly dt with the fifth-order solution and no
// error control.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	next, _, err := r.trial(dyn, x, t, dt)
	return next, err
}

// StepAdaptive tries dt and shrinks it until the step is accepted. It returns
// the new state, the step actually taken and the proposal for the next step.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, t, dt, tol float64) (dynamo.State, float64, float64, error) {
	if tol <= 0 {
		return nil, 0, 0, fmt.Errorf("rk45: tolerance must be positive, got %g", tol)
	}
	for {
		if dt < r.MinDt {
			return nil, 0, 0, fmt.Errorf("%w: dt=%g at t=%g", dynamo.ErrStepTooSmall, dt, t)
		}

		next, errMax, err := r.trial(dyn, x, t, dt)
		if err != nil {
			if errors.Is(err, dynamo.ErrNumeric) {
				r.rejected++
				dt *= 0.5
				continue
			}
			return nil, 0, 0, err
		}

		errRatio := errMax / tol
		if errRatio > 1 || !next.IsValid() {
			r.rejected++
			scale := r.MinScale
			if errRatio > 1 && !math.IsInf(errRatio, 0) && !math.IsNaN(errRatio) {
				scale = math.Max(r.MinScale, r.Safety*math.Pow(errRatio, -0.25))
			}
			dt *= scale
			continue
		}

		var proposed float64
		if errRatio > 0 {
			proposed = dt * math.Min(r.MaxScale, r.Safety*math.Pow(errRatio, -0.2))
		} else {
			proposed = dt * r.MaxScale
		}
		if r.MaxDt > 0 && proposed > r.MaxDt {
			proposed = r.MaxDt
		}
		return next, dt, proposed, nil
	}
}

// trial computes one Dormand-Prince step and its scaled error estimate.
func (r *RK45) trial(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, float64, error) {
	n := len(x)

	k1, err := dyn.Derive(x, t)
	if err != nil {
		return nil, 0, err
	}

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + dt*b21*k1[i]
	}
	k2, err := dyn.Derive(x2, t+a2*dt)
	if err != nil {
		return nil, 0, err
	}

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3, err := dyn.Derive(x3, t+a3*dt)
	if err != nil {
		return nil, 0, err
	}

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4, err := dyn.Derive(x4, t+a4*dt)
	if err != nil {
		return nil, 0, err
	}

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5, err := dyn.Derive(x5, t+a5*dt)
	if err != nil {
		return nil, 0, err
	}

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6, err := dyn.Derive(x6, t+dt)
	if err != nil {
		return nil, 0, err
	}

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	k7, err := dyn.Derive(xNew, t+dt)
	if err != nil {
		return nil, 0, err
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := math.Abs(x[i]) + math.Abs(dt*k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}
	return xNew, errMax, nil
}
