package onnx

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Wire-encoding helpers for building test models by hand.

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendTag(buf []byte, field, wire int) []byte {
	return appendVarint(buf, uint64(field)<<3|uint64(wire)) //nolint:gosec // test values are small
}

func appendBytesField(buf []byte, field int, body []byte) []byte {
	buf = appendTag(buf, field, wireBytes)
	buf = appendVarint(buf, uint64(len(body)))
	return append(buf, body...)
}

func appendStringField(buf []byte, field int, s string) []byte {
	return appendBytesField(buf, field, []byte(s))
}

func appendVarintField(buf []byte, field int, v uint64) []byte {
	buf = appendTag(buf, field, wireVarint)
	return appendVarint(buf, v)
}

func encodeValueInfo(name string, elemType int64, dims []int64) []byte {
	var shape []byte
	for _, d := range dims {
		var dim []byte
		if d > 0 {
			dim = appendVarintField(dim, 1, uint64(d))
		} else {
			dim = appendStringField(dim, 2, "batch")
		}
		shape = appendBytesField(shape, 1, dim)
	}
	var tensorType []byte
	tensorType = appendVarintField(tensorType, 1, uint64(elemType)) //nolint:gosec // test values are small
	tensorType = appendBytesField(tensorType, 2, shape)
	var typeProto []byte
	typeProto = appendBytesField(typeProto, 1, tensorType)

	var vi []byte
	vi = appendStringField(vi, 1, name)
	return appendBytesField(vi, 2, typeProto)
}

func encodeNode(opType string, inputs, outputs []string, attrs ...[]byte) []byte {
	var node []byte
	for _, in := range inputs {
		node = appendStringField(node, 1, in)
	}
	for _, out := range outputs {
		node = appendStringField(node, 2, out)
	}
	node = appendStringField(node, 4, opType)
	for _, attr := range attrs {
		node = appendBytesField(node, 5, attr)
	}
	return node
}

func encodeIntsAttr(name string, vals []int64) []byte {
	var packed []byte
	for _, v := range vals {
		packed = appendVarint(packed, uint64(v)) //nolint:gosec // test values are non-negative
	}
	var attr []byte
	attr = appendStringField(attr, 1, name)
	attr = appendBytesField(attr, 8, packed)
	return appendVarintField(attr, 20, AttributeProtoInts)
}

func encodeTensorAttr(name string, tensor []byte) []byte {
	var attr []byte
	attr = appendStringField(attr, 1, name)
	attr = appendBytesField(attr, 5, tensor)
	return appendVarintField(attr, 20, AttributeProtoTensor)
}

func encodeTensor(name string, dataType int64, dims []int64, raw []byte) []byte {
	var t []byte
	for _, d := range dims {
		t = appendVarintField(t, 1, uint64(d)) //nolint:gosec // test dims are positive
	}
	t = appendVarintField(t, 2, uint64(dataType)) //nolint:gosec // test values are small
	t = appendStringField(t, 8, name)
	return appendBytesField(t, 9, raw)
}

func encodeModel(graph []byte) []byte {
	var opset []byte
	opset = appendStringField(opset, 1, "")
	opset = appendVarintField(opset, 2, 13)

	var m []byte
	m = appendVarintField(m, 1, 8) // ir_version
	m = appendStringField(m, 2, "pytorch")
	m = appendBytesField(m, 7, graph)
	m = appendBytesField(m, 8, opset)
	return m
}

// buildAddModel builds a minimal model: Z = Add(X, Y).
func buildAddModel() []byte {
	var g []byte
	g = appendStringField(g, 2, "simple_add")
	g = appendBytesField(g, 1, encodeNode("Add", []string{"X", "Y"}, []string{"Z"}))
	g = appendBytesField(g, 11, encodeValueInfo("X", TensorProtoFloat, []int64{1, 4}))
	g = appendBytesField(g, 11, encodeValueInfo("Y", TensorProtoFloat, []int64{1, 4}))
	g = appendBytesField(g, 12, encodeValueInfo("Z", TensorProtoFloat, []int64{1, 4}))
	return encodeModel(g)
}

func TestParseAddModel(t *testing.T) {
	model, err := Parse(buildAddModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if model.IRVersion != 8 {
		t.Errorf("expected IR version 8, got %d", model.IRVersion)
	}
	if model.ProducerName != "pytorch" {
		t.Errorf("expected producer pytorch, got %q", model.ProducerName)
	}
	if len(model.OpsetImport) != 1 || model.OpsetImport[0].Version != 13 {
		t.Errorf("unexpected opset import: %+v", model.OpsetImport)
	}

	if model.Graph == nil {
		t.Fatal("graph is nil")
	}
	if model.Graph.Name != "simple_add" {
		t.Errorf("expected graph name simple_add, got %q", model.Graph.Name)
	}
	if len(model.Graph.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(model.Graph.Nodes))
	}

	node := model.Graph.Nodes[0]
	if node.OpType != "Add" {
		t.Errorf("expected op type Add, got %q", node.OpType)
	}
	if len(node.Inputs) != 2 || node.Inputs[0] != "X" || node.Inputs[1] != "Y" {
		t.Errorf("unexpected inputs: %v", node.Inputs)
	}
	if len(node.Outputs) != 1 || node.Outputs[0] != "Z" {
		t.Errorf("unexpected outputs: %v", node.Outputs)
	}
}

func TestParseValueInfoShape(t *testing.T) {
	model, err := Parse(buildAddModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(model.Graph.Inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(model.Graph.Inputs))
	}
	in := model.Graph.Inputs[0]
	if in.Name != "X" {
		t.Errorf("expected input name X, got %q", in.Name)
	}
	if in.Type == nil || in.Type.TensorType == nil || in.Type.TensorType.Shape == nil {
		t.Fatal("input type info missing")
	}
	if in.Type.TensorType.ElemType != TensorProtoFloat {
		t.Errorf("expected float elem type, got %d", in.Type.TensorType.ElemType)
	}
	dims := in.Type.TensorType.Shape.Dims
	if len(dims) != 2 || dims[0].DimValue != 1 || dims[1].DimValue != 4 {
		t.Errorf("unexpected dims: %+v", dims)
	}
}

func TestParseSymbolicDim(t *testing.T) {
	var g []byte
	g = appendBytesField(g, 11, encodeValueInfo("X", TensorProtoFloat, []int64{-1, 4}))
	model, err := Parse(encodeModel(g))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	dims := model.Graph.Inputs[0].Type.TensorType.Shape.Dims
	if dims[0].DimParam != "batch" {
		t.Errorf("expected symbolic dim, got %+v", dims[0])
	}
	if dims[1].DimValue != 4 {
		t.Errorf("expected static dim 4, got %+v", dims[1])
	}
}

func TestParseInitializer(t *testing.T) {
	raw := make([]byte, 16)
	binary.LittleEndian.PutUint32(raw, math.Float32bits(1.5))

	var g []byte
	g = appendBytesField(g, 5, encodeTensor("W", TensorProtoFloat, []int64{2, 2}, raw))
	model, err := Parse(encodeModel(g))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(model.Graph.Initializers) != 1 {
		t.Fatalf("expected 1 initializer, got %d", len(model.Graph.Initializers))
	}
	init := model.Graph.Initializers[0]
	if init.Name != "W" {
		t.Errorf("expected initializer W, got %q", init.Name)
	}
	if init.DataType != TensorProtoFloat {
		t.Errorf("expected float data type, got %d", init.DataType)
	}
	if len(init.Dims) != 2 || init.Dims[0] != 2 || init.Dims[1] != 2 {
		t.Errorf("unexpected dims: %v", init.Dims)
	}
	if len(init.RawData) != 16 {
		t.Errorf("expected 16 raw bytes, got %d", len(init.RawData))
	}
}

func TestParseIntsAttribute(t *testing.T) {
	node := encodeNode("Unsqueeze", []string{"X"}, []string{"Y"},
		encodeIntsAttr("axes", []int64{0, 2}))
	var g []byte
	g = appendBytesField(g, 1, node)
	model, err := Parse(encodeModel(g))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	attrs := model.Graph.Nodes[0].Attributes
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Name != "axes" {
		t.Errorf("expected attribute axes, got %q", attrs[0].Name)
	}
	if attrs[0].Type != AttributeProtoInts {
		t.Errorf("expected ints attribute, got type %d", attrs[0].Type)
	}
	if len(attrs[0].Ints) != 2 || attrs[0].Ints[0] != 0 || attrs[0].Ints[1] != 2 {
		t.Errorf("unexpected ints: %v", attrs[0].Ints)
	}
}

func TestParseTensorAttribute(t *testing.T) {
	raw := make([]byte, 16)
	binary.LittleEndian.PutUint64(raw, 2)
	binary.LittleEndian.PutUint64(raw[8:], 3)
	tensor := encodeTensor("", TensorProtoInt64, []int64{2}, raw)
	node := encodeNode("Constant", nil, []string{"C"}, encodeTensorAttr("value", tensor))

	var g []byte
	g = appendBytesField(g, 1, node)
	model, err := Parse(encodeModel(g))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	attrs := model.Graph.Nodes[0].Attributes
	if len(attrs) != 1 || attrs[0].T == nil {
		t.Fatalf("expected tensor attribute, got %+v", attrs)
	}
	if attrs[0].T.DataType != TensorProtoInt64 {
		t.Errorf("expected int64 tensor, got %d", attrs[0].T.DataType)
	}
	if len(attrs[0].T.RawData) != 16 {
		t.Errorf("expected 16 raw bytes, got %d", len(attrs[0].T.RawData))
	}
}

func TestParseSkipsUnknownFields(t *testing.T) {
	data := buildAddModel()
	// Append an unknown length-delimited field (number 63).
	data = appendBytesField(data, 63, []byte("future extension"))

	model, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed on unknown field: %v", err)
	}
	if len(model.Graph.Nodes) != 1 {
		t.Errorf("expected 1 node, got %d", len(model.Graph.Nodes))
	}
}

func TestParseTruncated(t *testing.T) {
	data := buildAddModel()
	if _, err := Parse(data[:len(data)/2]); err == nil {
		t.Fatal("expected error for truncated input")
	}
}

func TestParseFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "add.onnx")
	if err := os.WriteFile(path, buildAddModel(), 0o600); err != nil {
		t.Fatalf("write temp model: %v", err)
	}

	model, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if model.Graph == nil || len(model.Graph.Nodes) != 1 {
		t.Fatal("unexpected model structure")
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.onnx")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
