package onnxir

import (
	"fmt"
	"log/slog"

	"github.com/loom-ml/loom/internal/onnx"
)

// ioKind tags the origin of a registered name.
type ioKind uint8

const (
	ioInput ioKind = iota
	ioOutput
	ioNode
)

// ioEntry locates a name in one of the three backing sequences: graph
// inputs, graph outputs, or the node-output pool.
type ioEntry struct {
	kind ioKind
	idx  int
}

// GraphIO is the name-resolution registry. It maps every name ever seen in
// the file to its current live Argument across the three disjoint
// namespaces, and absorbs the renames later pipeline stages apply. A name
// maps to at most one entry.
type GraphIO struct {
	// Inputs are the graph inputs, renamed to positional placeholders
	// (input1, input2, ...) at construction.
	Inputs []Argument
	// Outputs are the graph outputs under their original names until a
	// producing node renames them.
	Outputs []Argument

	// initializers holds pure compile-time constants by original name.
	initializers map[string]Argument
	// nodeOut pools the renamed outputs of already-processed nodes.
	nodeOut []Argument
	// oldNames maps every original file name to its current entry.
	oldNames map[string]ioEntry
}

// NewGraphIO builds the registry from the file's declared inputs, outputs,
// and initializer constants. Inputs that share a name with an initializer
// and lack a literal value adopt the initializer's value; this merges the
// "optional input with default" shape some exporters emit.
func NewGraphIO(inputs, outputs []onnx.ValueInfoProto, initializers []onnx.TensorProto) (*GraphIO, error) {
	constants := make(map[string]Argument, len(initializers))
	for i := range initializers {
		arg, err := argumentFromInitializer(&initializers[i])
		if err != nil {
			return nil, fmt.Errorf("initializer %q: %w", initializers[i].Name, err)
		}
		constants[initializers[i].Name] = arg
	}

	gio := &GraphIO{
		initializers: constants,
		oldNames:     make(map[string]ioEntry, len(inputs)+len(outputs)),
	}

	gio.Inputs = make([]Argument, 0, len(inputs))
	for i := range inputs {
		gio.oldNames[inputs[i].Name] = ioEntry{kind: ioInput, idx: i}
		arg, err := argumentFromValueInfo(&inputs[i])
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", inputs[i].Name, err)
		}
		if init, ok := constants[inputs[i].Name]; ok && arg.Value == nil {
			arg.CopyValue(&init)
		}
		arg.Name = fmt.Sprintf("input%d", i+1)
		gio.Inputs = append(gio.Inputs, arg)
	}

	gio.Outputs = make([]Argument, 0, len(outputs))
	for i := range outputs {
		gio.oldNames[outputs[i].Name] = ioEntry{kind: ioOutput, idx: i}
		arg, err := argumentFromValueInfo(&outputs[i])
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", outputs[i].Name, err)
		}
		gio.Outputs = append(gio.Outputs, arg)
	}

	return gio, nil
}

// InitIn resolves an original input name to the Argument a freshly
// converted node should hold. Graph inputs come back marked passed; names
// known only as initializers come back as that constant; unknown names get
// a fresh unset Argument, a tolerated legacy shape where a graph input
// shows up only as an initializer.
func (gio *GraphIO) InitIn(name string) (Argument, error) {
	entry, ok := gio.oldNames[name]
	if !ok {
		if init, found := gio.initializers[name]; found {
			return init.Clone(), nil
		}
		return NewArgument(name), nil
	}
	switch entry.kind {
	case ioInput:
		arg := gio.Inputs[entry.idx].Clone()
		arg.Name = name
		arg.Passed = true
		return arg, nil
	case ioNode:
		arg := gio.nodeOut[entry.idx].Clone()
		arg.Name = name
		return arg, nil
	default: // ioOutput
		slog.Error("graph output can't be a node input", "name", name)
		return Argument{}, fmt.Errorf("%w: graph output %q used as node input", ErrInvalidGraph, name)
	}
}

// nameResolution classifies the outcome of GetNewName.
type nameResolution uint8

const (
	// nameResolved: the slot adopts the returned name.
	nameResolved nameResolution = iota
	// nameCleared: the slot is cleared rather than aliased; the name is a
	// pure initializer reference the IR deliberately leaves unnamed.
	nameCleared
	// nameUnchanged: the registry has never seen the name; the slot keeps
	// it as-is. Identity-redirected names and synthesized constants land
	// here.
	nameUnchanged
)

// GetNewName returns the name the pipeline uses downstream for a node
// input.
//
// Initializers are, per the format's spec, default values for optional
// inputs; resolving them to no-name instead is a deliberate simplification
// kept for compatibility with the generated-code consumers.
func (gio *GraphIO) GetNewName(oldName string) (string, nameResolution, error) {
	entry, found := gio.oldNames[oldName]
	if !found {
		if _, isInit := gio.initializers[oldName]; isInit {
			return "", nameCleared, nil
		}
		return oldName, nameUnchanged, nil
	}
	switch entry.kind {
	case ioInput:
		// A node references this input, so it survives pruning even when
		// the reference resolves to no name.
		gio.Inputs[entry.idx].Passed = true
		if _, isInit := gio.initializers[oldName]; isInit {
			return "", nameCleared, nil
		}
		return gio.Inputs[entry.idx].Name, nameResolved, nil
	case ioNode:
		return gio.nodeOut[entry.idx].Name, nameResolved, nil
	default: // ioOutput
		slog.Error("tried to get an updated name on a graph output", "name", oldName)
		return "", nameCleared, fmt.Errorf("%w: graph output %q used as node input", ErrInvalidGraph, oldName)
	}
}

// UpdateName records that arg now goes by newName. Input entries are fixed
// at construction and cannot be renamed; unmapped names are an error too,
// a path reached historically by constants and casts that predate the
// naming fix.
func (gio *GraphIO) UpdateName(arg *Argument, newName string) error {
	entry, ok := gio.oldNames[arg.Name]
	if !ok {
		slog.Error("tried to rename an unmapped entry", "from", arg.Name, "to", newName)
		return fmt.Errorf("%w: no entry for name %q", ErrInvalidGraph, arg.Name)
	}
	switch entry.kind {
	case ioInput:
		slog.Error("input names are set from the beginning", "name", arg.Name)
		return fmt.Errorf("%w: cannot rename graph input %q", ErrInvalidGraph, arg.Name)
	case ioOutput:
		gio.Outputs[entry.idx].Name = newName
	case ioNode:
		gio.nodeOut[entry.idx].Name = newName
	}
	return nil
}

// Insert registers a Constant or Identity node output under newName. When
// the name already maps to a node-output slot still carrying it, the
// rename happens in place; otherwise a fresh slot is allocated.
func (gio *GraphIO) Insert(arg *Argument, newName string) {
	if entry, ok := gio.oldNames[arg.Name]; ok {
		if entry.kind == ioNode {
			if gio.nodeOut[entry.idx].Name == arg.Name {
				gio.nodeOut[entry.idx].Name = newName
				return
			}
		} else {
			slog.Error("entry with old name is a graph IO", "name", arg.Name)
		}
	}
	idx := len(gio.nodeOut)
	gio.oldNames[arg.Name] = ioEntry{kind: ioNode, idx: idx}
	pooled := arg.Clone()
	pooled.Name = newName
	gio.nodeOut = append(gio.nodeOut, pooled)
}

// UpdateTensorOutput propagates a node's finalized outputs into the
// registry: boundary slots with the same name adopt the value and type,
// previously unseen names get a node-output slot.
func (gio *GraphIO) UpdateTensorOutput(node *Node) {
	for i := range node.Outputs {
		out := &node.Outputs[i]
		entry, ok := gio.oldNames[out.Name]
		if !ok {
			slog.Debug("registering node output", "name", out.Name)
			idx := len(gio.nodeOut)
			gio.oldNames[out.Name] = ioEntry{kind: ioNode, idx: idx}
			gio.nodeOut = append(gio.nodeOut, out.Clone())
			continue
		}
		switch entry.kind {
		case ioInput:
			gio.Inputs[entry.idx].CopyValue(out)
		case ioOutput:
			gio.Outputs[entry.idx].CopyValue(out)
			// A node produced this output, so it survives pruning.
			gio.Outputs[entry.idx].Passed = true
		case ioNode:
			slog.Error("output already produced by another node", "name", out.Name)
		}
	}
}

// GetNodeOutput is a non-mutating lookup restricted to graph boundary
// names. It returns nil when the name is not a boundary, and fails when
// the name resolves to a prior node output, which callers of this query
// must never pass.
func (gio *GraphIO) GetNodeOutput(oldName string) (*Argument, error) {
	entry, ok := gio.oldNames[oldName]
	if !ok {
		return nil, nil
	}
	switch entry.kind {
	case ioInput:
		return &gio.Inputs[entry.idx], nil
	case ioOutput:
		return &gio.Outputs[entry.idx], nil
	default: // ioNode
		slog.Error("boundary lookup hit a previous node's output", "name", oldName)
		return nil, fmt.Errorf("%w: %q is a node output, not a graph boundary", ErrInvalidGraph, oldName)
	}
}
