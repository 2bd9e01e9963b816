// Package onnxir imports ONNX models into a typed intermediate
// representation for code generation.
//
// The importer turns the loosely specified exchange format — name-based
// references, omitted optional inputs, constants folded into attributes or
// split into nodes, renamed legacy operators — into a graph with unique
// positional names, resolved shapes and types, lifted constants, and no
// dead nodes or boundary values.
//
// # Example Usage
//
//	graph, err := onnxir.ParseFile("resnet18.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, node := range graph.Nodes {
//	    fmt.Printf("%s (%s): %d inputs, %d outputs\n",
//	        node.Name, node.Type, len(node.Inputs), len(node.Outputs))
//	}
//
// Importing either yields a complete, valid graph or fails: a file that
// violates its own naming contract or is not topologically sorted is
// rejected, never partially imported.
package onnxir

import (
	internal "github.com/loom-ml/loom/internal/onnxir"
)

// Graph is the imported IR: topologically ordered nodes plus the pruned
// boundary argument lists.
type Graph = internal.Graph

// Node is one operator application in the IR.
type Node = internal.Node

// NodeType is the operator kind of a node.
type NodeType = internal.NodeType

// Argument is a named value flowing along one edge of the graph.
type Argument = internal.Argument

// ArgType is the resolved type of an Argument.
type ArgType = internal.ArgType

// Data is a compile-time-known literal carried by an Argument.
type Data = internal.Data

// ParseOptions configures graph import.
type ParseOptions = internal.ParseOptions

// ModelInfo summarizes an ONNX model without importing it.
type ModelInfo = internal.ModelInfo

// Errors surfaced by the importer.
var (
	ErrInvalidGraph = internal.ErrInvalidGraph
	ErrNotTopSorted = internal.ErrNotTopSorted
)

// ParseFile imports an ONNX model from a file into the IR.
//
// Example:
//
//	graph, err := onnxir.ParseFile("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d nodes, %d inputs, %d outputs\n",
//	    len(graph.Nodes), len(graph.Inputs), len(graph.Outputs))
//
// Pass ParseOptions to run the standalone topological validity check up
// front:
//
//	graph, err := onnxir.ParseFile("model.onnx", onnxir.ParseOptions{Validate: true})
func ParseFile(path string, opts ...ParseOptions) (*Graph, error) {
	return internal.ParseFile(path, opts...)
}

// Info extracts summary metadata from an ONNX file without importing it.
//
// Example:
//
//	info, err := onnxir.Info("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Producer: %s, opset %d, %d nodes\n",
//	    info.ProducerName, info.OpsetVersion, info.NodeCount)
func Info(path string) (*ModelInfo, error) {
	return internal.Info(path)
}
