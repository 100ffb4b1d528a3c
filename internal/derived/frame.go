package derived

import "fmt"

// Frame evaluates derived quantities for a single state vector. Each node is
// computed at most once per frame. A Frame is not safe for concurrent use.
type Frame struct {
	g      *Graph
	y      []float64
	values []float64
	done   []bool
}

// NewFrame binds y without copying it; y must not change while the frame is used.
func (g *Graph) NewFrame(y []float64) *Frame {
	return &Frame{
		g:      g,
		y:      y,
		values: make([]float64, len(g.nodes)),
		done:   make([]bool, len(g.nodes)),
	}
}

// Reset rebinds the frame to a new state vector and clears the memo.
func (f *Frame) Reset(y []float64) {
	f.y = y
	for i := range f.done {
		f.done[i] = false
	}
}

func (f *Frame) State() []float64 { return f.y }

// Derived returns the value of the node in slot, evaluating its
// dependencies on demand. Graph construction guarantees termination.
func (f *Frame) Derived(slot int) (float64, error) {
	if slot < 0 || slot >= len(f.values) {
		return 0, fmt.Errorf("derived: slot %d out of range", slot)
	}
	if f.done[slot] {
		return f.values[slot], nil
	}
	v, err := f.g.nodes[slot].expr.Eval(f)
	if err != nil {
		return 0, err
	}
	f.values[slot] = v
	f.done[slot] = true
	return v, nil
}
