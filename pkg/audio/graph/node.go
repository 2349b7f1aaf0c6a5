package graph

import (
	"errors"
	"slices"
)

var (
	// ErrForeignNode is returned when connecting nodes from different contexts.
	ErrForeignNode = errors.New("graph: node belongs to another context")

	// ErrAlreadyStarted is returned by Start on a source that was started.
	ErrAlreadyStarted = errors.New("graph: source already started")
)

// AudioNode is a vertex in the render graph.
type AudioNode interface {
	// Context returns the owning context.
	Context() *Context

	// Connect routes this node's output into dst.
	Connect(dst AudioNode) error

	// Disconnect removes every outgoing connection of this node.
	Disconnect()

	base() *node
}

type processor interface {
	// process renders one quantum. in is the summed input and may be nil for
	// source nodes.
	process(in, out []float32, frame int64)
}

type node struct {
	ctx     *Context
	proc    processor
	inputs  []*node
	outputs []*node

	out      []float32
	mixed    []float32
	rendered int64
}

func newNode(ctx *Context, proc processor) *node {
	return &node{
		ctx:   ctx,
		proc:  proc,
		out:   make([]float32, RenderQuantum),
		mixed: make([]float32, RenderQuantum),
	}
}

func (n *node) base() *node { return n }

// Context returns the owning context.
func (n *node) Context() *Context { return n.ctx }

// Connect routes this node's output into dst. Connecting twice is a no-op.
func (n *node) Connect(dst AudioNode) error {
	d := dst.base()
	if d.ctx != n.ctx {
		return ErrForeignNode
	}
	if slices.Contains(n.outputs, d) {
		return nil
	}
	n.outputs = append(n.outputs, d)
	d.inputs = append(d.inputs, n)
	return nil
}

// Disconnect removes every outgoing connection.
func (n *node) Disconnect() {
	for _, d := range n.outputs {
		d.inputs = slices.DeleteFunc(d.inputs, func(x *node) bool { return x == n })
	}
	n.outputs = nil
}

// Inputs returns the number of nodes connected into this node.
func (n *node) Inputs() int { return len(n.inputs) }

// Outputs returns the number of nodes this node feeds.
func (n *node) Outputs() int { return len(n.outputs) }

// pull renders the node for quantum q, pulling its inputs first. A node is
// rendered at most once per quantum.
func (n *node) pull(q int64) []float32 {
	if n.rendered == q {
		return n.out
	}
	n.rendered = q

	var in []float32
	if len(n.inputs) > 0 {
		clear(n.mixed)
		for _, src := range n.inputs {
			for i, s := range src.pull(q) {
				n.mixed[i] += s
			}
		}
		in = n.mixed
	}
	n.proc.process(in, n.out, n.ctx.frame)
	return n.out
}

// Destination is the graph sink. Its output is what Context.Render returns.
type Destination struct {
	*node
}

func newDestination(ctx *Context) *Destination {
	d := &Destination{}
	d.node = newNode(ctx, d)
	return d
}

func (d *Destination) process(in, out []float32, _ int64) {
	if in == nil {
		clear(out)
		return
	}
	copy(out, in)
}
