// Package dynamo provides the core primitives shared by every stage of a
// kinetic simulation.
//
// The package defines the fundamental interfaces and types for integrating
// ordinary differential equations (ODEs) assembled from reaction networks:
//
//   - [State]: vector of species values, ordered like the species list
//   - [System]: interface for ODE systems (dy/dt = f(y, t))
//   - [Integrator]: numerical stepper interface
//   - [Metric]: observer that summarizes a run
//   - [Result]: trajectory produced by a run
//
// It also holds the error taxonomy used across the module: configuration
// errors raised while a model is assembled ([ConfigError], [ErrConfiguration]),
// evaluation errors raised while a right-hand side is computed ([EvalError],
// [ErrUnresolvedIdentifier], [ErrNumeric]) and simulation errors wrapped with
// step context ([SimulationError]).
//
// # Example
//
//	sys, _ := kinetics.Assemble(def)
//	integ := integrators.NewRK45()
//	s := sim.New(sys, integ)
//	result, _ := s.Run(ctx, def.InitialState, dynamo.DefaultConfig())
//
// # Thread Safety
//
// Systems produced by assembly are immutable and may be shared. Integrators
// keep scratch buffers and must not be shared between concurrent runs.
package dynamo
