// Package onnx deserializes the ONNX exchange format.
//
// It implements a minimal hand-written protobuf wire decoder for .onnx
// files, with no code generation and no external protobuf dependency. The
// decoded ModelProto mirrors the subset of the ONNX schema the importer
// needs: the graph, its nodes, boundary declarations, initializer tensors,
// and node attributes (including tensor-valued attributes, which Constant
// nodes use).
//
// This package stops at faithful deserialization. All semantic work —
// name resolution, rewriting, shape inference — happens in
// internal/onnxir.
package onnx
