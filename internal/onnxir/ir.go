package onnxir

import (
	"fmt"
	"strings"
)

// ElementType is the element kind of a tensor or scalar value.
type ElementType uint8

// Element kinds.
const (
	ElementUndefined ElementType = iota
	ElementFloat32
	ElementFloat64
	ElementInt32
	ElementInt64
	ElementUint8
	ElementBool
	ElementString
	ElementFloat16
)

// String returns the element kind name.
func (e ElementType) String() string {
	switch e {
	case ElementFloat32:
		return "float32"
	case ElementFloat64:
		return "float64"
	case ElementInt32:
		return "int32"
	case ElementInt64:
		return "int64"
	case ElementUint8:
		return "uint8"
	case ElementBool:
		return "bool"
	case ElementString:
		return "string"
	case ElementFloat16:
		return "float16"
	default:
		return "undefined"
	}
}

// TensorType describes a tensor-valued Argument: element kind, rank, and
// the concrete shape when every dimension is static (nil otherwise).
type TensorType struct {
	Elem  ElementType
	Rank  int
	Shape []int
}

// ArgKind discriminates the ArgType variants.
type ArgKind uint8

// ArgType variants.
const (
	// ArgUnset marks an Argument whose type has not been resolved yet.
	ArgUnset ArgKind = iota
	// ArgTensor is a tensor value; Tensor carries the detail.
	ArgTensor
	// ArgScalar is a rank-0 value; Scalar carries the element kind.
	ArgScalar
	// ArgShape is a shape value; ShapeLen carries the dimension count.
	ArgShape
)

// ArgType is the type of an Argument.
type ArgType struct {
	Kind     ArgKind
	Tensor   TensorType
	Scalar   ElementType
	ShapeLen int
}

// TensorArg builds a tensor ArgType.
func TensorArg(elem ElementType, rank int, shape []int) ArgType {
	return ArgType{Kind: ArgTensor, Tensor: TensorType{Elem: elem, Rank: rank, Shape: shape}}
}

// DataKind discriminates the Data variants.
type DataKind uint8

// Data variants. Scalar kinds come first, then the slice kinds.
const (
	DataNone DataKind = iota
	DataFloat32
	DataFloat64
	DataInt64
	DataBool
	DataString
	DataFloat32s
	DataFloat64s
	DataInt32s
	DataInt64s
	DataBools
	DataStrings
)

// Data is a compile-time-known literal carried by an Argument. A Data value
// is immutable once constructed; clones may share it.
type Data struct {
	Kind DataKind

	F32 float32
	F64 float64
	I64 int64
	B   bool
	Str string

	F32s []float32
	F64s []float64
	I32s []int32
	I64s []int64
	Bs   []bool
	Strs []string
}

// Int64Slice returns the literal as an int64 slice, widening int32 data.
// Returns nil when the literal is not integer-valued.
func (d *Data) Int64Slice() []int64 {
	switch d.Kind {
	case DataInt64s:
		return d.I64s
	case DataInt32s:
		out := make([]int64, len(d.I32s))
		for i, v := range d.I32s {
			out[i] = int64(v)
		}
		return out
	case DataInt64:
		return []int64{d.I64}
	default:
		return nil
	}
}

// Argument is a named value flowing along one edge of the graph.
type Argument struct {
	Name string
	Type ArgType
	// Value is non-nil when the argument is a compile-time-known constant.
	Value *Data
	// Passed becomes true once something in the final graph consumes or
	// produces the argument. Arguments still false at the end of the
	// pipeline are dead and get pruned.
	Passed bool
}

// NewArgument returns an Argument with the given name and no type.
func NewArgument(name string) Argument {
	return Argument{Name: name}
}

// Clone returns a copy of the argument. Value and shape slices are shared;
// both are treated as immutable.
func (a *Argument) Clone() Argument {
	return *a
}

// CopyValue copies the literal value and type from another argument.
func (a *Argument) CopyValue(other *Argument) {
	a.Value = other.Value
	a.Type = other.Type
}

// AttrKind discriminates the AttributeValue variants.
type AttrKind uint8

// Attribute value kinds.
const (
	AttrUndefined AttrKind = iota
	AttrFloat
	AttrInt
	AttrString
	AttrTensor
	AttrFloats
	AttrInts
	AttrStrings
	AttrTensors
)

// Tensor is a constant tensor payload carried by an attribute.
type Tensor struct {
	Elem  ElementType
	Shape []int
	Data  *Data
}

// AttributeValue is one operator parameter from the source file.
type AttributeValue struct {
	Kind AttrKind

	F   float32
	I   int64
	Str string

	Floats  []float32
	Ints    []int64
	Strs    []string
	Tensor  *Tensor
	Tensors []Tensor
}

// NodeType is the operator kind of a Node. The set of valid values is
// closed: conversion from a file accepts only the constants below, and the
// remap table is the sole extension point.
type NodeType string

// Operator kinds.
const (
	NodeAdd                NodeType = "Add"
	NodeAveragePool        NodeType = "AveragePool"
	NodeAveragePool1d      NodeType = "AveragePool1d"
	NodeAveragePool2d      NodeType = "AveragePool2d"
	NodeBatchNormalization NodeType = "BatchNormalization"
	NodeCast               NodeType = "Cast"
	NodeClip               NodeType = "Clip"
	NodeConcat             NodeType = "Concat"
	NodeConstant           NodeType = "Constant"
	NodeConv               NodeType = "Conv"
	NodeConv1d             NodeType = "Conv1d"
	NodeConv2d             NodeType = "Conv2d"
	NodeDiv                NodeType = "Div"
	NodeDropout            NodeType = "Dropout"
	NodeEqual              NodeType = "Equal"
	NodeErf                NodeType = "Erf"
	NodeExp                NodeType = "Exp"
	NodeFlatten            NodeType = "Flatten"
	NodeGather             NodeType = "Gather"
	NodeGelu               NodeType = "Gelu"
	NodeGemm               NodeType = "Gemm"
	NodeGlobalAveragePool  NodeType = "GlobalAveragePool"
	NodeIdentity           NodeType = "Identity"
	NodeLinear             NodeType = "Linear"
	NodeLog                NodeType = "Log"
	NodeLogSoftmax         NodeType = "LogSoftmax"
	NodeMatMul             NodeType = "MatMul"
	NodeMaxPool            NodeType = "MaxPool"
	NodeMaxPool1d          NodeType = "MaxPool1d"
	NodeMaxPool2d          NodeType = "MaxPool2d"
	NodeMul                NodeType = "Mul"
	NodeNeg                NodeType = "Neg"
	NodePad                NodeType = "Pad"
	NodePow                NodeType = "Pow"
	NodeReduceMean         NodeType = "ReduceMean"
	NodeReduceSum          NodeType = "ReduceSum"
	NodeRelu               NodeType = "Relu"
	NodeReshape            NodeType = "Reshape"
	NodeResize             NodeType = "Resize"
	NodeShape              NodeType = "Shape"
	NodeSigmoid            NodeType = "Sigmoid"
	NodeSlice              NodeType = "Slice"
	NodeSoftmax            NodeType = "Softmax"
	NodeSqrt               NodeType = "Sqrt"
	NodeSqueeze            NodeType = "Squeeze"
	NodeSub                NodeType = "Sub"
	NodeTanh               NodeType = "Tanh"
	NodeTranspose          NodeType = "Transpose"
	NodeUnsqueeze          NodeType = "Unsqueeze"
	NodeWhere              NodeType = "Where"

	// Legacy aliases accepted from files and rewritten by the remap table.
	NodeSpatialBN NodeType = "SpatialBN"
	NodeUpsample  NodeType = "Upsample"
)

var nodeTypes = func() map[string]NodeType {
	types := []NodeType{
		NodeAdd, NodeAveragePool, NodeAveragePool1d, NodeAveragePool2d,
		NodeBatchNormalization, NodeCast, NodeClip, NodeConcat, NodeConstant,
		NodeConv, NodeConv1d, NodeConv2d, NodeDiv, NodeDropout, NodeEqual,
		NodeErf, NodeExp, NodeFlatten, NodeGather, NodeGelu, NodeGemm,
		NodeGlobalAveragePool, NodeIdentity, NodeLinear, NodeLog,
		NodeLogSoftmax, NodeMatMul, NodeMaxPool, NodeMaxPool1d, NodeMaxPool2d,
		NodeMul, NodeNeg, NodePad, NodePow, NodeReduceMean, NodeReduceSum,
		NodeRelu, NodeReshape, NodeResize, NodeShape, NodeSigmoid, NodeSlice,
		NodeSoftmax, NodeSqrt, NodeSqueeze, NodeSub, NodeTanh, NodeTranspose,
		NodeUnsqueeze, NodeWhere, NodeSpatialBN, NodeUpsample,
	}
	m := make(map[string]NodeType, len(types))
	for _, t := range types {
		m[string(t)] = t
	}
	return m
}()

// nodeTypeFromString resolves an op_type tag against the closed operator
// enumeration.
func nodeTypeFromString(opType string) (NodeType, error) {
	if t, ok := nodeTypes[opType]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, opType)
}

// lower returns the node-type tag in the form used for generated names.
func (t NodeType) lower() string {
	return strings.ToLower(string(t))
}

// Node is one operator application in the IR. Nodes are mutated in place as
// they move through the import pipeline and logically deleted by index; the
// physical removal happens in a single filter pass at the end.
type Node struct {
	Type    NodeType
	Name    string
	Inputs  []Argument
	Outputs []Argument
	Attrs   map[string]AttributeValue
}

// Graph is the imported IR: nodes in topologically valid order with pruned
// boundary lists. This is the sole artifact handed to code generation.
type Graph struct {
	Nodes   []Node
	Inputs  []Argument
	Outputs []Argument
}
