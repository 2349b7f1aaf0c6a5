package graph

import "math"

// Gain multiplies its input by the Gain param.
type Gain struct {
	*node

	// Gain is the linear multiplier, 1 by default.
	Gain *Param

	values []float64
}

// NewGain creates a unity gain node.
func (c *Context) NewGain() *Gain {
	g := &Gain{values: make([]float64, RenderQuantum)}
	g.Gain = newParam(c, 1, -math.MaxFloat32, math.MaxFloat32)
	g.node = newNode(c, g)
	return g
}

func (g *Gain) process(in, out []float32, frame int64) {
	g.Gain.fill(g.values, frame)
	if in == nil {
		clear(out)
		return
	}
	for i, s := range in {
		out[i] = s * float32(g.values[i])
	}
}
