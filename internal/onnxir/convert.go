package onnxir

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/onnx"
)

// convertNodeProto converts one raw file node into an IR node, resolving
// its input names through the registry. Output arguments keep their file
// names; the I/O resolution stage renames them later.
func convertNodeProto(np *onnx.NodeProto, gio *GraphIO) (Node, error) {
	nodeType, err := nodeTypeFromString(np.OpType)
	if err != nil {
		return Node{}, fmt.Errorf("node %q: %w", np.Name, err)
	}

	node := Node{
		Type:    nodeType,
		Name:    np.Name,
		Inputs:  make([]Argument, 0, len(np.Inputs)),
		Outputs: make([]Argument, 0, len(np.Outputs)),
		Attrs:   convertAttributes(np.Attributes),
	}

	for _, name := range np.Inputs {
		if name == "" {
			// Omitted optional input.
			node.Inputs = append(node.Inputs, NewArgument(""))
			continue
		}
		arg, err := gio.InitIn(name)
		if err != nil {
			return Node{}, err
		}
		node.Inputs = append(node.Inputs, arg)
	}
	for _, name := range np.Outputs {
		node.Outputs = append(node.Outputs, NewArgument(name))
	}
	return node, nil
}

// fallbackConvertNodeProto converts a raw node without the registry and
// without the closed-enum check. Only node identity and I/O names survive;
// the topological validator needs nothing more.
func fallbackConvertNodeProto(np *onnx.NodeProto) Node {
	node := Node{
		Type:    NodeType(np.OpType),
		Name:    np.Name,
		Inputs:  make([]Argument, 0, len(np.Inputs)),
		Outputs: make([]Argument, 0, len(np.Outputs)),
	}
	for _, name := range np.Inputs {
		node.Inputs = append(node.Inputs, NewArgument(name))
	}
	for _, name := range np.Outputs {
		node.Outputs = append(node.Outputs, NewArgument(name))
	}
	return node
}

// convertAttributes maps raw attribute protos to IR attribute values.
func convertAttributes(attrs []onnx.AttributeProto) map[string]AttributeValue {
	out := make(map[string]AttributeValue, len(attrs))
	for i := range attrs {
		out[attrs[i].Name] = convertAttribute(&attrs[i])
	}
	return out
}

func convertAttribute(attr *onnx.AttributeProto) AttributeValue {
	switch attr.Type {
	case onnx.AttributeProtoFloat:
		return AttributeValue{Kind: AttrFloat, F: attr.F}
	case onnx.AttributeProtoInt:
		return AttributeValue{Kind: AttrInt, I: attr.I}
	case onnx.AttributeProtoString:
		return AttributeValue{Kind: AttrString, Str: string(attr.S)}
	case onnx.AttributeProtoTensor:
		var t *Tensor
		if attr.T != nil {
			t = tensorFromProto(attr.T)
		}
		return AttributeValue{Kind: AttrTensor, Tensor: t}
	case onnx.AttributeProtoFloats:
		return AttributeValue{Kind: AttrFloats, Floats: attr.Floats}
	case onnx.AttributeProtoInts:
		return AttributeValue{Kind: AttrInts, Ints: attr.Ints}
	case onnx.AttributeProtoStrings:
		strs := make([]string, len(attr.Strings))
		for i, s := range attr.Strings {
			strs[i] = string(s)
		}
		return AttributeValue{Kind: AttrStrings, Strs: strs}
	case onnx.AttributeProtoTensors:
		tensors := make([]Tensor, 0, len(attr.Tensors))
		for i := range attr.Tensors {
			if t := tensorFromProto(&attr.Tensors[i]); t != nil {
				tensors = append(tensors, *t)
			}
		}
		return AttributeValue{Kind: AttrTensors, Tensors: tensors}
	default:
		return AttributeValue{Kind: AttrUndefined}
	}
}

// tensorFromProto decodes an attribute tensor payload. Returns nil when
// the element kind is unsupported.
func tensorFromProto(tp *onnx.TensorProto) *Tensor {
	data, elem, err := tensorData(tp)
	if err != nil {
		return nil
	}
	shape := make([]int, len(tp.Dims))
	for i, d := range tp.Dims {
		shape[i] = int(d)
	}
	return &Tensor{Elem: elem, Shape: shape, Data: data}
}

// argumentFromInitializer builds a constant Argument from an initializer
// tensor.
func argumentFromInitializer(tp *onnx.TensorProto) (Argument, error) {
	data, elem, err := tensorData(tp)
	if err != nil {
		return Argument{}, err
	}
	shape := make([]int, len(tp.Dims))
	for i, d := range tp.Dims {
		shape[i] = int(d)
	}
	arg := NewArgument(tp.Name)
	arg.Type = TensorArg(elem, len(shape), shape)
	arg.Value = data
	return arg, nil
}

// argumentFromValueInfo builds an Argument from a graph input/output
// declaration. The shape is concrete only when every dimension is static.
func argumentFromValueInfo(vi *onnx.ValueInfoProto) (Argument, error) {
	arg := NewArgument(vi.Name)
	if vi.Type == nil || vi.Type.TensorType == nil {
		return arg, nil
	}
	tt := vi.Type.TensorType
	elem, err := elementTypeFromProto(tt.ElemType)
	if err != nil {
		return Argument{}, err
	}
	rank := 0
	var shape []int
	if tt.Shape != nil {
		rank = len(tt.Shape.Dims)
		shape = make([]int, 0, rank)
		for _, dim := range tt.Shape.Dims {
			if dim.DimParam != "" || dim.DimValue <= 0 {
				// Symbolic or unknown dimension: no concrete shape.
				shape = nil
				break
			}
			shape = append(shape, int(dim.DimValue))
		}
	}
	arg.Type = TensorArg(elem, rank, shape)
	return arg, nil
}

// elementTypeFromProto maps an ONNX data-type code to an ElementType.
func elementTypeFromProto(code int32) (ElementType, error) {
	switch code {
	case onnx.TensorProtoFloat:
		return ElementFloat32, nil
	case onnx.TensorProtoDouble:
		return ElementFloat64, nil
	case onnx.TensorProtoInt32:
		return ElementInt32, nil
	case onnx.TensorProtoInt64:
		return ElementInt64, nil
	case onnx.TensorProtoUint8:
		return ElementUint8, nil
	case onnx.TensorProtoBool:
		return ElementBool, nil
	case onnx.TensorProtoString:
		return ElementString, nil
	case onnx.TensorProtoFloat16:
		return ElementFloat16, nil
	default:
		return ElementUndefined, fmt.Errorf("unsupported element type code %d", code)
	}
}

// tensorData decodes the payload of a tensor proto into a literal. Typed
// legacy fields win over raw data when both are present.
func tensorData(tp *onnx.TensorProto) (*Data, ElementType, error) {
	elem, err := elementTypeFromProto(tp.DataType)
	if err != nil {
		return nil, ElementUndefined, err
	}

	switch {
	case len(tp.FloatData) > 0:
		return &Data{Kind: DataFloat32s, F32s: tp.FloatData}, elem, nil
	case len(tp.DoubleData) > 0:
		return &Data{Kind: DataFloat64s, F64s: tp.DoubleData}, elem, nil
	case len(tp.Int32Data) > 0:
		return &Data{Kind: DataInt32s, I32s: tp.Int32Data}, elem, nil
	case len(tp.Int64Data) > 0:
		return &Data{Kind: DataInt64s, I64s: tp.Int64Data}, elem, nil
	case len(tp.RawData) > 0:
		return rawTensorData(tp.RawData, elem)
	default:
		// Zero-element tensor.
		return &Data{Kind: DataNone}, elem, nil
	}
}

// rawTensorData decodes little-endian raw bytes per the element kind.
func rawTensorData(raw []byte, elem ElementType) (*Data, ElementType, error) {
	switch elem {
	case ElementFloat32:
		vals := make([]float32, 0, len(raw)/4)
		for i := 0; i+4 <= len(raw); i += 4 {
			vals = append(vals, math.Float32frombits(binary.LittleEndian.Uint32(raw[i:])))
		}
		return &Data{Kind: DataFloat32s, F32s: vals}, elem, nil
	case ElementFloat64:
		vals := make([]float64, 0, len(raw)/8)
		for i := 0; i+8 <= len(raw); i += 8 {
			vals = append(vals, math.Float64frombits(binary.LittleEndian.Uint64(raw[i:])))
		}
		return &Data{Kind: DataFloat64s, F64s: vals}, elem, nil
	case ElementInt32:
		vals := make([]int32, 0, len(raw)/4)
		for i := 0; i+4 <= len(raw); i += 4 {
			vals = append(vals, int32(binary.LittleEndian.Uint32(raw[i:]))) //nolint:gosec // G115: reinterpreting stored int32 bits.
		}
		return &Data{Kind: DataInt32s, I32s: vals}, elem, nil
	case ElementInt64:
		vals := make([]int64, 0, len(raw)/8)
		for i := 0; i+8 <= len(raw); i += 8 {
			vals = append(vals, int64(binary.LittleEndian.Uint64(raw[i:]))) //nolint:gosec // G115: reinterpreting stored int64 bits.
		}
		return &Data{Kind: DataInt64s, I64s: vals}, elem, nil
	case ElementBool:
		vals := make([]bool, len(raw))
		for i, b := range raw {
			vals[i] = b != 0
		}
		return &Data{Kind: DataBools, Bs: vals}, elem, nil
	default:
		return nil, ElementUndefined, fmt.Errorf("unsupported raw tensor element type %s", elem)
	}
}
