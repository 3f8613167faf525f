package fbd

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/smarty-bms/smarty/pkgs/coerce"
)

type inEdge struct {
	from     string
	fromPort int
	toPort   int
}

// Executor evaluates one program's diagram. Build one per cycle; the
// topological order is computed once at construction.
type Executor struct {
	name    string
	nodes   map[string]Node
	order   []string
	inEdges map[string][]inEdge
	io      PointIO

	// CycleDetected is set when the diagram is not a DAG. The executor
	// still runs a best-effort pass with cycle members at the end.
	CycleDetected bool
}

// NewExecutor parses the diagram and prepares the evaluation order.
// io may be nil for programs without I/O blocks.
func NewExecutor(name string, diagram Diagram, io PointIO) *Executor {
	e := &Executor{
		name:    name,
		nodes:   make(map[string]Node, len(diagram.Nodes)),
		inEdges: make(map[string][]inEdge),
		io:      io,
	}
	for _, n := range diagram.Nodes {
		e.nodes[n.ID] = n
	}

	adj := make(map[string][]string)
	inDegree := make(map[string]int, len(e.nodes))
	for id := range e.nodes {
		inDegree[id] = 0
	}
	for _, edge := range diagram.Edges {
		if _, ok := e.nodes[edge.FromNode]; !ok {
			continue
		}
		if _, ok := e.nodes[edge.ToNode]; !ok {
			continue
		}
		adj[edge.FromNode] = append(adj[edge.FromNode], edge.ToNode)
		inDegree[edge.ToNode]++
		e.inEdges[edge.ToNode] = append(e.inEdges[edge.ToNode], inEdge{
			from:     edge.FromNode,
			fromPort: edge.FromPort,
			toPort:   edge.ToPort,
		})
	}

	e.order = topoOrder(e.nodes, adj, inDegree)
	if len(e.order) < len(e.nodes) {
		// not a DAG: append the remaining members and keep going
		e.CycleDetected = true
		logrus.Errorf("cycle detected in FBD program %s", name)
		seen := make(map[string]bool, len(e.order))
		for _, id := range e.order {
			seen[id] = true
		}
		for _, n := range diagram.Nodes {
			if !seen[n.ID] {
				e.order = append(e.order, n.ID)
			}
		}
	}
	return e
}

// topoOrder is Kahn's algorithm over the adjacency built from the edges.
// Zero-degree nodes are visited in diagram order via the map iteration
// being seeded from a deterministic queue.
func topoOrder(nodes map[string]Node, adj map[string][]string, inDegree map[string]int) []string {
	queue := make([]string, 0, len(nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		for _, v := range adj[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	return order
}

// Cycle runs one evaluation pass and returns per-node output vectors.
func (e *Executor) Cycle() map[string][]interface{} {
	values := make(map[string][]interface{}, len(e.nodes))

	for _, nodeID := range e.order {
		node := e.nodes[nodeID]

		// gather a fixed-width input vector; unwired ports stay nil
		inputs := make([]interface{}, node.Inputs)
		for _, in := range e.inEdges[nodeID] {
			outputs, ok := values[in.from]
			if !ok {
				continue
			}
			if in.fromPort >= 0 && in.fromPort < len(outputs) &&
				in.toPort >= 0 && in.toPort < len(inputs) {
				inputs[in.toPort] = outputs[in.fromPort]
			}
		}

		values[nodeID] = e.evalNode(node, inputs)
	}
	return values
}

// evalNode dispatches one block and normalizes its result vector. A block
// that panics contributes a null vector for this cycle only.
func (e *Executor) evalNode(node Node, inputs []interface{}) (result []interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("error executing block %s (%s) in %s: %v", node.Type, node.ID, e.name, r)
			result = nullVector(node.Outputs)
		}
	}()

	ctx := &blockCtx{
		node: node,
		raw:  inputs,
		f:    make([]float64, len(inputs)),
		b:    make([]bool, len(inputs)),
		io:   e.io,
	}
	for i, v := range inputs {
		ctx.f[i] = coerce.Float(v)
		ctx.b[i] = coerce.Bool(v)
	}

	eval, ok := blockTable[node.Type]
	if !ok {
		logrus.Errorf("unknown block type %q (%s) in %s", node.Type, node.ID, e.name)
		return nullVector(node.Outputs)
	}
	res := eval(ctx)

	// truncate or pad to the declared output width
	if node.Outputs > 0 {
		if len(res) < node.Outputs {
			for len(res) < node.Outputs {
				res = append(res, nil)
			}
		} else {
			res = res[:node.Outputs]
		}
	} else if len(res) == 0 && implicitSingleOutput(node.Type) {
		// I/O and display blocks are probed by the viewer even when the
		// editor saved them with zero declared outputs
		res = []interface{}{0.0}
	}
	return res
}

func implicitSingleOutput(blockType string) bool {
	switch blockType {
	case "DIGITAL_IN", "ANALOG_IN", "DIGITAL_OUT", "ANALOG_OUT",
		"CONST_DIG", "CONST_ANA", "ANA_DISP", "DIG_DISP":
		return true
	}
	return false
}

func nullVector(n int) []interface{} {
	if n <= 0 {
		n = 1
	}
	return make([]interface{}, n)
}

func sum(f []float64) float64 {
	s := 0.0
	for _, v := range f {
		s += v
	}
	return s
}

// String implements fmt.Stringer for log lines.
func (e *Executor) String() string {
	return fmt.Sprintf("fbd(%s, %d nodes)", e.name, len(e.nodes))
}
