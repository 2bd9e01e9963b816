package onnxir

import (
	"fmt"
	"log/slog"

	"github.com/goombaio/dag"

	"github.com/loom-ml/loom/internal/onnx"
)

// checkValidity re-checks the raw file independently of pipeline state.
// It runs on registry-error paths as a best-effort diagnostic and behind
// ParseOptions.Validate as a standalone check. The file is deserialized
// afresh (when a path is available) and converted through the fallback
// path, since only node identity and I/O names matter for ordering.
func (b *graphBuilder) checkValidity() error {
	model := b.model
	if b.path != "" {
		parsed, err := onnx.ParseFile(b.path)
		if err != nil {
			return err
		}
		model = parsed
	}
	if model.Graph == nil {
		return ErrNoGraph
	}

	nodes := make([]Node, 0, len(model.Graph.Nodes))
	for i := range model.Graph.Nodes {
		nodes = append(nodes, fallbackConvertNodeProto(&model.Graph.Nodes[i]))
	}

	if err := checkAcyclic(nodes); err != nil {
		return err
	}
	// ONNX requires topological node order:
	// https://github.com/onnx/onnx/blob/main/docs/IR.md#graphs
	if pos, consumer, ok := findOrderViolation(nodes); ok {
		slog.Error("node consumed before its producer",
			"producer_pos", pos, "consumer_pos", consumer)
		return fmt.Errorf("%w: node %d consumes an output of node %d", ErrNotTopSorted, consumer, pos)
	}
	return nil
}

// checkAcyclic builds the producer→consumer dependency DAG and rejects
// graphs where no execution order exists at all.
func checkAcyclic(nodes []Node) error {
	graph := dag.NewDAG()
	vertices := make([]*dag.Vertex, len(nodes))
	for i := range nodes {
		vertices[i] = dag.NewVertex(fmt.Sprintf("node%d", i), i)
		if err := graph.AddVertex(vertices[i]); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGraph, err)
		}
	}

	producers := make(map[string]int)
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			producers[out.Name] = i
		}
	}
	for j := range nodes {
		for _, in := range nodes[j].Inputs {
			i, ok := producers[in.Name]
			if !ok || i == j {
				continue
			}
			if err := graph.AddEdge(vertices[i], vertices[j]); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidGraph, err)
			}
		}
	}

	// Kahn-style traversal: repeatedly settle vertices whose predecessors
	// are all settled. Leftovers mean a cycle.
	settled := make(map[string]bool, len(vertices))
	progress := true
	for progress {
		progress = false
		for _, v := range vertices {
			if settled[v.ID] {
				continue
			}
			preds, err := graph.Predecessors(v)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidGraph, err)
			}
			ready := true
			for _, p := range preds {
				if !settled[p.ID] {
					ready = false
					break
				}
			}
			if ready {
				settled[v.ID] = true
				progress = true
			}
		}
	}
	if len(settled) != len(vertices) {
		return fmt.Errorf("%w: dependency cycle detected", ErrNotTopSorted)
	}
	return nil
}

// findOrderViolation reports the first producer/consumer pair appearing
// out of file order. Quadratic over node count, which is fine on a
// diagnostic-only path.
func findOrderViolation(nodes []Node) (producer, consumer int, found bool) {
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			for j := range nodes {
				if !consumesName(&nodes[j], out.Name) {
					continue
				}
				if i > j {
					return i, j, true
				}
			}
		}
	}
	return 0, 0, false
}

func consumesName(node *Node, name string) bool {
	for _, in := range node.Inputs {
		if in.Name == name {
			return true
		}
	}
	return false
}
