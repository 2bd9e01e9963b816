package onnxir

import (
	"log/slog"

	"github.com/loom-ml/loom/internal/onnx"
)

// nodeCursor is a forward-only peekable cursor over the remaining raw file
// nodes. Coalescing is the only stage that looks past the current node,
// and only ever forward.
type nodeCursor struct {
	nodes []onnx.NodeProto
	pos   int
}

// Next returns the next raw node and advances the cursor.
func (c *nodeCursor) Next() (*onnx.NodeProto, bool) {
	if c.pos >= len(c.nodes) {
		return nil, false
	}
	np := &c.nodes[c.pos]
	c.pos++
	return np, true
}

// Peek returns the next raw node without advancing.
func (c *nodeCursor) Peek() (*onnx.NodeProto, bool) {
	if c.pos >= len(c.nodes) {
		return nil, false
	}
	return &c.nodes[c.pos], true
}

// coalesce fuses multi-node patterns into single IR nodes, greedily
// consuming following raw nodes from the cursor when a pattern matches.
func coalesce(node *Node, cursor *nodeCursor, gio *GraphIO) error {
	switch node.Type {
	case NodeGemm:
		convertGemmToLinear(node)
	case NodeMatMul:
		return convertMatMulToLinear(node, cursor, gio)
	}
	return nil
}

// convertGemmToLinear rewrites a Gemm into a Linear when the attributes
// describe a plain y = x*W^T + b. Other Gemm configurations stay as Gemm.
func convertGemmToLinear(node *Node) {
	alpha := attrFloat(node, "alpha", 1)
	beta := attrFloat(node, "beta", 1)
	transB := attrInt(node, "transB", 0)
	if alpha != 1 || beta != 1 || transB != 1 {
		slog.Debug("gemm not coalescible into linear",
			"node", node.Name, "alpha", alpha, "beta", beta, "transB", transB)
		return
	}
	node.Type = NodeLinear
	node.Attrs = map[string]AttributeValue{}
	if len(node.Inputs) >= 2 {
		transposeLinearWeight(&node.Inputs[1])
	}
}

// transposeLinearWeight rewrites a constant [d_output, d_input] weight into
// the [d_input, d_output] layout Linear uses, so Linear nodes look the same
// whether they came from a Gemm or a MatMul.
func transposeLinearWeight(weight *Argument) {
	if weight.Value == nil || weight.Type.Kind != ArgTensor {
		return
	}
	shape := weight.Type.Tensor.Shape
	if len(shape) != 2 {
		return
	}
	rows, cols := shape[0], shape[1]
	switch weight.Value.Kind {
	case DataFloat32s:
		src := weight.Value.F32s
		if len(src) != rows*cols {
			return
		}
		dst := make([]float32, len(src))
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				dst[c*rows+r] = src[r*cols+c]
			}
		}
		weight.Value = &Data{Kind: DataFloat32s, F32s: dst}
	case DataFloat64s:
		src := weight.Value.F64s
		if len(src) != rows*cols {
			return
		}
		dst := make([]float64, len(src))
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				dst[c*rows+r] = src[r*cols+c]
			}
		}
		weight.Value = &Data{Kind: DataFloat64s, F64s: dst}
	default:
		slog.Debug("leaving linear weight untransposed", "kind", weight.Value.Kind)
		return
	}
	weight.Type.Tensor.Shape = []int{cols, rows}
}

// convertMatMulToLinear rewrites a MatMul with a constant 2-D weight into a
// Linear, and folds a directly following Add on its output in as the bias,
// consuming that raw node from the cursor.
func convertMatMulToLinear(node *Node, cursor *nodeCursor, gio *GraphIO) error {
	if len(node.Inputs) != 2 {
		return nil
	}
	weight := &node.Inputs[1]
	if weight.Value == nil || weight.Type.Kind != ArgTensor || weight.Type.Tensor.Rank != 2 {
		return nil
	}
	node.Type = NodeLinear

	next, ok := cursor.Peek()
	if !ok || next.OpType != string(NodeAdd) || len(next.Inputs) != 2 || len(next.Outputs) != 1 {
		return nil
	}
	var biasName string
	switch node.Outputs[0].Name {
	case next.Inputs[0]:
		biasName = next.Inputs[1]
	case next.Inputs[1]:
		biasName = next.Inputs[0]
	default:
		return nil
	}

	cursor.Next() // consume the Add
	bias, err := gio.InitIn(biasName)
	if err != nil {
		return err
	}
	slog.Debug("coalesced matmul+add into linear", "node", node.Name, "bias", biasName)
	node.Inputs = append(node.Inputs, bias)
	node.Outputs[0] = NewArgument(next.Outputs[0])
	return nil
}

// attrFloat returns a float attribute or the default.
func attrFloat(node *Node, name string, def float32) float32 {
	if attr, ok := node.Attrs[name]; ok && attr.Kind == AttrFloat {
		return attr.F
	}
	return def
}

// attrInt returns an int attribute or the default.
func attrInt(node *Node, name string, def int64) int64 {
	if attr, ok := node.Attrs[name]; ok && attr.Kind == AttrInt {
		return attr.I
	}
	return def
}

// attrInts returns an int-list attribute, or nil when absent.
func attrInts(node *Node, name string) []int64 {
	if attr, ok := node.Attrs[name]; ok && attr.Kind == AttrInts {
		return attr.Ints
	}
	return nil
}
