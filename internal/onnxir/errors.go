package onnxir

import "errors"

// Common errors.
var (
	// ErrInvalidGraph indicates the file violated its own internal naming
	// contract: referencing a graph output as a node input, renaming a
	// fixed entry, or renaming a name the registry has never seen.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrNotTopSorted indicates the file's nodes are not in topological
	// order, which the ONNX specification requires.
	ErrNotTopSorted = errors.New("nodes are not topologically sorted")

	// ErrUnsupportedOperator indicates an op_type outside the supported
	// operator set.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrConstantNoValue indicates a Constant node carrying none of the
	// recognized value attributes.
	ErrConstantNoValue = errors.New("constant node has no value attribute")

	// ErrNoGraph indicates a model container without a graph.
	ErrNoGraph = errors.New("model has no graph")
)
