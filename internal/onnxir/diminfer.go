package onnxir

import "log/slog"

// inferDimensions computes the output types of a node from its resolved
// inputs and attributes, then propagates them into the registry. It runs
// after the rewrite stages, so it sees the node's final shape; malformed
// shapes at this point are a bug in an earlier stage, not a runtime error,
// so unknown cases degrade to rank-preserving fallbacks rather than fail.
func inferDimensions(node *Node, gio *GraphIO) {
	switch node.Type {
	case NodeAdd, NodeSub, NodeMul, NodeDiv, NodePow, NodeWhere:
		broadcastOutput(node)
	case NodeEqual:
		broadcastOutput(node)
		if node.Outputs[0].Type.Kind == ArgTensor {
			node.Outputs[0].Type.Tensor.Elem = ElementBool
			node.Outputs[0].Type.Tensor.Shape = nil
		}
	case NodeRelu, NodeSigmoid, NodeTanh, NodeSoftmax, NodeLogSoftmax,
		NodeErf, NodeGelu, NodeSqrt, NodeExp, NodeLog, NodeNeg, NodeClip,
		NodeIdentity, NodePad, NodeResize, NodeSlice:
		sameAsInput(node)
	case NodeDropout, NodeBatchNormalization:
		// Trailing outputs (mask, running stats) keep their declared types.
		sameAsInput(node)
	case NodeCast:
		inferCast(node)
	case NodeConstant:
		inferConstant(node)
	case NodeReshape:
		inferReshape(node)
	case NodeUnsqueeze:
		inferUnsqueeze(node)
	case NodeSqueeze:
		inferSqueeze(node)
	case NodeFlatten:
		inferRank(node, 2)
	case NodeMatMul, NodeGemm:
		inferMatMul(node)
	case NodeLinear:
		sameRankAsInput(node)
	case NodeConv1d, NodeConv2d, NodeMaxPool1d, NodeMaxPool2d,
		NodeAveragePool1d, NodeAveragePool2d, NodeGlobalAveragePool:
		sameRankAsInput(node)
	case NodeConcat:
		sameRankAsInput(node)
	case NodeTranspose:
		inferTranspose(node)
	case NodeShape:
		inferShape(node)
	case NodeGather:
		inferGather(node)
	case NodeReduceMean, NodeReduceSum:
		inferReduce(node)
	default:
		slog.Debug("no dimension rule for operator, keeping input type",
			"type", node.Type, "name", node.Name)
		sameAsInput(node)
	}

	gio.UpdateTensorOutput(node)
}

// firstTensor returns the first input with a tensor type, or nil.
func firstTensor(node *Node) *TensorType {
	for i := range node.Inputs {
		if node.Inputs[i].Type.Kind == ArgTensor {
			return &node.Inputs[i].Type.Tensor
		}
	}
	return nil
}

// sameAsInput copies the first tensor input's type onto output 0.
func sameAsInput(node *Node) {
	if t := firstTensor(node); t != nil && len(node.Outputs) > 0 {
		node.Outputs[0].Type = ArgType{Kind: ArgTensor, Tensor: *t}
	}
}

// sameRankAsInput keeps the first input's element kind and rank but drops
// the concrete shape, which the operator changes.
func sameRankAsInput(node *Node) {
	if t := firstTensor(node); t != nil && len(node.Outputs) > 0 {
		node.Outputs[0].Type = TensorArg(t.Elem, t.Rank, nil)
	}
}

// inferRank forces output 0 to the given rank with unknown shape.
func inferRank(node *Node, rank int) {
	if t := firstTensor(node); t != nil && len(node.Outputs) > 0 {
		node.Outputs[0].Type = TensorArg(t.Elem, rank, nil)
	}
}

// broadcastOutput ranks the output at the maximum input rank, the
// numpy-style broadcast result.
func broadcastOutput(node *Node) {
	if len(node.Outputs) == 0 {
		return
	}
	var elem ElementType
	rank := -1
	var shape []int
	for i := range node.Inputs {
		if node.Inputs[i].Type.Kind != ArgTensor {
			continue
		}
		t := &node.Inputs[i].Type.Tensor
		if t.Rank > rank {
			rank = t.Rank
			elem = t.Elem
			shape = t.Shape
		}
	}
	if rank >= 0 {
		node.Outputs[0].Type = TensorArg(elem, rank, shape)
	}
}

func inferCast(node *Node) {
	sameAsInput(node)
	if node.Outputs[0].Type.Kind != ArgTensor {
		return
	}
	if to, ok := node.Attrs["to"]; ok && to.Kind == AttrInt {
		if elem, err := elementTypeFromProto(int32(to.I)); err == nil { //nolint:gosec // G115: ONNX type codes are small.
			node.Outputs[0].Type.Tensor.Elem = elem
		}
	}
}

func inferConstant(node *Node) {
	arg, err := convertConstantValue(node)
	if err != nil {
		// Identity-backed constants carry the value on their input instead.
		if len(node.Inputs) > 0 && node.Inputs[0].Value != nil {
			node.Outputs[0].Type = node.Inputs[0].Type
		}
		return
	}
	node.Outputs[0].Type = arg.Type
}

func inferReshape(node *Node) {
	t := firstTensor(node)
	if t == nil || len(node.Inputs) < 2 || node.Inputs[1].Value == nil {
		sameAsInput(node)
		return
	}
	target := node.Inputs[1].Value.Int64Slice()
	shape := make([]int, 0, len(target))
	for _, d := range target {
		if d <= 0 {
			// -1 (inferred) or 0 (copied) entries leave the shape symbolic.
			shape = nil
			break
		}
		shape = append(shape, int(d))
	}
	node.Outputs[0].Type = TensorArg(t.Elem, len(target), shape)
}

func inferUnsqueeze(node *Node) {
	t := firstTensor(node)
	if t == nil {
		return
	}
	added := 0
	if len(node.Inputs) > 1 && node.Inputs[1].Value != nil {
		added = len(node.Inputs[1].Value.Int64Slice())
	} else if axes := attrInts(node, "axes"); axes != nil {
		added = len(axes)
	}
	node.Outputs[0].Type = TensorArg(t.Elem, t.Rank+added, nil)
}

func inferSqueeze(node *Node) {
	t := firstTensor(node)
	if t == nil {
		return
	}
	removed := 0
	if len(node.Inputs) > 1 && node.Inputs[1].Value != nil {
		removed = len(node.Inputs[1].Value.Int64Slice())
	} else if axes := attrInts(node, "axes"); axes != nil {
		removed = len(axes)
	}
	rank := t.Rank - removed
	if rank < 0 {
		rank = 0
	}
	node.Outputs[0].Type = TensorArg(t.Elem, rank, nil)
}

func inferMatMul(node *Node) {
	if len(node.Outputs) == 0 {
		return
	}
	rank := 0
	var elem ElementType
	for i := 0; i < len(node.Inputs) && i < 2; i++ {
		if node.Inputs[i].Type.Kind != ArgTensor {
			continue
		}
		t := &node.Inputs[i].Type.Tensor
		if t.Rank > rank {
			rank = t.Rank
		}
		if elem == ElementUndefined {
			elem = t.Elem
		}
	}
	if rank > 0 {
		node.Outputs[0].Type = TensorArg(elem, rank, nil)
	}
}

func inferTranspose(node *Node) {
	t := firstTensor(node)
	if t == nil {
		return
	}
	out := TensorArg(t.Elem, t.Rank, nil)
	if perm := attrInts(node, "perm"); t.Shape != nil && len(perm) == len(t.Shape) {
		shape := make([]int, len(perm))
		valid := true
		for i, p := range perm {
			if p < 0 || int(p) >= len(t.Shape) {
				valid = false
				break
			}
			shape[i] = t.Shape[p]
		}
		if valid {
			out.Tensor.Shape = shape
		}
	} else if t.Shape != nil && len(perm) == 0 && t.Rank == 2 {
		out.Tensor.Shape = []int{t.Shape[1], t.Shape[0]}
	}
	node.Outputs[0].Type = out
}

func inferShape(node *Node) {
	t := firstTensor(node)
	if t == nil {
		return
	}
	node.Outputs[0].Type = TensorArg(ElementInt64, 1, []int{t.Rank})
}

func inferGather(node *Node) {
	if len(node.Inputs) < 2 {
		return
	}
	data := node.Inputs[0].Type
	indices := node.Inputs[1].Type
	if data.Kind != ArgTensor {
		return
	}
	rank := data.Tensor.Rank - 1
	if indices.Kind == ArgTensor {
		rank += indices.Tensor.Rank
	}
	if rank < 0 {
		rank = 0
	}
	node.Outputs[0].Type = TensorArg(data.Tensor.Elem, rank, nil)
}

func inferReduce(node *Node) {
	t := firstTensor(node)
	if t == nil {
		return
	}
	keepDims := attrInt(node, "keepdims", 1)
	axes := attrInts(node, "axes")
	rank := t.Rank
	if keepDims == 0 {
		if axes == nil {
			rank = 0
		} else {
			rank -= len(axes)
			if rank < 0 {
				rank = 0
			}
		}
	}
	node.Outputs[0].Type = TensorArg(t.Elem, rank, nil)
}
