package onnxir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tensorArgNamed(name string, elem ElementType, shape ...int) Argument {
	arg := NewArgument(name)
	arg.Type = TensorArg(elem, len(shape), shape)
	return arg
}

func inferNode(t *testing.T, node *Node) {
	t.Helper()
	gio, err := NewGraphIO(nil, nil, nil)
	require.NoError(t, err)
	inferDimensions(node, gio)
}

func TestInferBroadcast(t *testing.T) {
	node := Node{
		Type: NodeAdd,
		Inputs: []Argument{
			tensorArgNamed("a", ElementFloat32, 4),
			tensorArgNamed("b", ElementFloat32, 2, 4),
		},
		Outputs: []Argument{NewArgument("out")},
	}
	inferNode(t, &node)

	out := node.Outputs[0].Type
	require.Equal(t, ArgTensor, out.Kind)
	assert.Equal(t, 2, out.Tensor.Rank)
	assert.Equal(t, []int{2, 4}, out.Tensor.Shape)
}

func TestInferEqualYieldsBool(t *testing.T) {
	node := Node{
		Type: NodeEqual,
		Inputs: []Argument{
			tensorArgNamed("a", ElementFloat32, 3),
			tensorArgNamed("b", ElementFloat32, 3),
		},
		Outputs: []Argument{NewArgument("out")},
	}
	inferNode(t, &node)

	out := node.Outputs[0].Type
	require.Equal(t, ArgTensor, out.Kind)
	assert.Equal(t, ElementBool, out.Tensor.Elem)
	assert.Equal(t, 1, out.Tensor.Rank)
}

func TestInferCast(t *testing.T) {
	node := Node{
		Type:    NodeCast,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 2, 2)},
		Outputs: []Argument{NewArgument("out")},
		Attrs: map[string]AttributeValue{
			"to": {Kind: AttrInt, I: 7}, // int64 type code
		},
	}
	inferNode(t, &node)

	out := node.Outputs[0].Type
	require.Equal(t, ArgTensor, out.Kind)
	assert.Equal(t, ElementInt64, out.Tensor.Elem)
	assert.Equal(t, []int{2, 2}, out.Tensor.Shape)
}

func TestInferReshape(t *testing.T) {
	target := NewArgument("shape")
	target.Value = &Data{Kind: DataInt64s, I64s: []int64{2, 6}}
	node := Node{
		Type:    NodeReshape,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 3, 4), target},
		Outputs: []Argument{NewArgument("out")},
	}
	inferNode(t, &node)

	out := node.Outputs[0].Type
	require.Equal(t, ArgTensor, out.Kind)
	assert.Equal(t, []int{2, 6}, out.Tensor.Shape)

	// Nonpositive entries (inferred or copied dims) leave the shape
	// symbolic but still fix the rank.
	target.Value = &Data{Kind: DataInt64s, I64s: []int64{-1, 6}}
	node.Inputs[1] = target
	node.Outputs = []Argument{NewArgument("out")}
	inferNode(t, &node)

	out = node.Outputs[0].Type
	assert.Equal(t, 2, out.Tensor.Rank)
	assert.Nil(t, out.Tensor.Shape)
}

func TestInferSqueezeUnsqueeze(t *testing.T) {
	node := Node{
		Type:    NodeUnsqueeze,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 3, 4)},
		Outputs: []Argument{NewArgument("out")},
		Attrs: map[string]AttributeValue{
			"axes": {Kind: AttrInts, Ints: []int64{0}},
		},
	}
	inferNode(t, &node)
	assert.Equal(t, 3, node.Outputs[0].Type.Tensor.Rank)

	node = Node{
		Type:    NodeSqueeze,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 1, 3, 4)},
		Outputs: []Argument{NewArgument("out")},
		Attrs: map[string]AttributeValue{
			"axes": {Kind: AttrInts, Ints: []int64{0}},
		},
	}
	inferNode(t, &node)
	assert.Equal(t, 2, node.Outputs[0].Type.Tensor.Rank)
}

func TestInferFlatten(t *testing.T) {
	node := Node{
		Type:    NodeFlatten,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 2, 3, 4)},
		Outputs: []Argument{NewArgument("out")},
	}
	inferNode(t, &node)
	assert.Equal(t, 2, node.Outputs[0].Type.Tensor.Rank)
}

func TestInferTranspose(t *testing.T) {
	node := Node{
		Type:    NodeTranspose,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 2, 3, 4)},
		Outputs: []Argument{NewArgument("out")},
		Attrs: map[string]AttributeValue{
			"perm": {Kind: AttrInts, Ints: []int64{2, 0, 1}},
		},
	}
	inferNode(t, &node)
	assert.Equal(t, []int{4, 2, 3}, node.Outputs[0].Type.Tensor.Shape)

	// No perm on a matrix means plain transposition.
	node = Node{
		Type:    NodeTranspose,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 2, 5)},
		Outputs: []Argument{NewArgument("out")},
	}
	inferNode(t, &node)
	assert.Equal(t, []int{5, 2}, node.Outputs[0].Type.Tensor.Shape)
}

func TestInferShape(t *testing.T) {
	node := Node{
		Type:    NodeShape,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 2, 3, 4)},
		Outputs: []Argument{NewArgument("out")},
	}
	inferNode(t, &node)

	out := node.Outputs[0].Type
	require.Equal(t, ArgTensor, out.Kind)
	assert.Equal(t, ElementInt64, out.Tensor.Elem)
	assert.Equal(t, []int{3}, out.Tensor.Shape)
}

func TestInferGather(t *testing.T) {
	node := Node{
		Type: NodeGather,
		Inputs: []Argument{
			tensorArgNamed("data", ElementFloat32, 10, 4),
			tensorArgNamed("indices", ElementInt64, 5),
		},
		Outputs: []Argument{NewArgument("out")},
	}
	inferNode(t, &node)
	assert.Equal(t, 2, node.Outputs[0].Type.Tensor.Rank)
}

func TestInferReduce(t *testing.T) {
	node := Node{
		Type:    NodeReduceMean,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 2, 3, 4)},
		Outputs: []Argument{NewArgument("out")},
		Attrs: map[string]AttributeValue{
			"axes":     {Kind: AttrInts, Ints: []int64{1}},
			"keepdims": {Kind: AttrInt, I: 0},
		},
	}
	inferNode(t, &node)
	assert.Equal(t, 2, node.Outputs[0].Type.Tensor.Rank)

	// keepdims (the default) preserves the rank.
	node = Node{
		Type:    NodeReduceSum,
		Inputs:  []Argument{tensorArgNamed("a", ElementFloat32, 2, 3, 4)},
		Outputs: []Argument{NewArgument("out")},
		Attrs: map[string]AttributeValue{
			"axes": {Kind: AttrInts, Ints: []int64{1}},
		},
	}
	inferNode(t, &node)
	assert.Equal(t, 3, node.Outputs[0].Type.Tensor.Rank)
}
