package onnxir

import (
	"fmt"
	"log/slog"

	"github.com/loom-ml/loom/internal/onnx"
)

// liftConstantTypes is the operator set whose constant operands must be
// literal before code generation.
var liftConstantTypes = map[NodeType]struct{}{
	NodeBatchNormalization: {},
	NodeClip:               {},
	NodeConv1d:             {},
	NodeConv2d:             {},
	NodeDropout:            {},
	NodeReshape:            {},
	NodeUnsqueeze:          {},
}

// constantValueKeys are the attribute keys a Constant node may store its
// value under, checked in order; the first present wins.
var constantValueKeys = [...]string{
	"value",
	"value_float",
	"value_floats",
	"value_int",
	"value_ints",
	"value_string",
	"value_strings",
	"sparse_value",
}

// ParseOptions configures graph import.
type ParseOptions struct {
	// Validate runs the standalone topological-order check before building.
	// The check also runs automatically as a diagnostic on registry errors.
	Validate bool
}

// ParseFile imports an ONNX model from a file into the IR.
//
// The returned graph has uniquely named nodes, fully resolved argument
// names, lifted constants, and no dead nodes or boundary values. Any error
// means the file is malformed; there is no partial result.
func ParseFile(path string, opts ...ParseOptions) (*Graph, error) {
	slog.Info("parsing ONNX file", "path", path)
	model, err := onnx.ParseFile(path)
	if err != nil {
		return nil, err
	}
	b := newGraphBuilder(path, model)
	if len(opts) > 0 && opts[0].Validate {
		if err := b.checkValidity(); err != nil {
			return nil, err
		}
	}
	return b.build()
}

// ParseModel imports an already-deserialized model into the IR.
func ParseModel(model *onnx.ModelProto, opts ...ParseOptions) (*Graph, error) {
	b := newGraphBuilder("", model)
	if len(opts) > 0 && opts[0].Validate {
		if err := b.checkValidity(); err != nil {
			return nil, err
		}
	}
	return b.build()
}

// graphBuilder holds the per-parse pipeline state: the accumulating node
// list, the auxiliary index-keyed maps, and the removal set. One instance
// serves exactly one parse and is never shared.
type graphBuilder struct {
	path  string
	model *onnx.ModelProto

	nodes []Node
	// nodeNameCounter assigns per-operator-kind monotonic counters for the
	// generated node names.
	nodeNameCounter map[NodeType]int
	// nodesToRemove marks file-order indices dropped by the final filter.
	nodesToRemove map[int]struct{}
	// constantsMap maps constant-producing output names to node indices.
	constantsMap map[string]int
	// identityIdx maps elided Identity output names to node indices.
	identityIdx map[string]int
}

func newGraphBuilder(path string, model *onnx.ModelProto) *graphBuilder {
	return &graphBuilder{
		path:            path,
		model:           model,
		nodeNameCounter: make(map[NodeType]int),
		nodesToRemove:   make(map[int]struct{}),
		constantsMap:    make(map[string]int),
		identityIdx:     make(map[string]int),
	}
}

// build runs the import pipeline: every raw node passes through the fixed
// stage sequence in strict file order, mutating the registry as it goes,
// then the removal filter and boundary pruning produce the final IR. The
// stage order is load-bearing; resolution of node N's inputs depends on
// the side effects of nodes 1..N-1.
func (b *graphBuilder) build() (*Graph, error) {
	if b.model.Graph == nil {
		return nil, ErrNoGraph
	}
	graph := b.model.Graph
	slog.Debug("building graph",
		"nodes", len(graph.Nodes),
		"inputs", len(graph.Inputs),
		"outputs", len(graph.Outputs),
		"initializers", len(graph.Initializers))

	gio, err := NewGraphIO(graph.Inputs, graph.Outputs, graph.Initializers)
	if err != nil {
		return nil, err
	}

	cursor := &nodeCursor{nodes: graph.Nodes}
	idx := 0
	for {
		np, ok := cursor.Next()
		if !ok {
			break
		}
		node, err := convertNodeProto(np, gio)
		if err != nil {
			return nil, err
		}
		remapNodeType(&node)
		if err := coalesce(&node, cursor, gio); err != nil {
			return nil, err
		}
		b.handleNodeRenaming(&node)
		b.handleIdentity(&node, idx)
		if err := b.checkConstants(&node, idx); err != nil {
			return nil, err
		}
		if err := b.handleUnsqueeze(&node, gio); err != nil {
			return nil, err
		}
		inferDimensions(&node, gio)
		if err := b.renameIO(&node, gio); err != nil {
			return nil, err
		}
		b.nodes = append(b.nodes, node)
		idx++
	}

	kept := make([]Node, 0, len(b.nodes))
	for i := range b.nodes {
		if _, removed := b.nodesToRemove[i]; !removed {
			kept = append(kept, b.nodes[i])
		}
	}

	inputs, outputs := pruneUnusedBoundaries(gio.Inputs, gio.Outputs)
	slog.Info("finished parsing ONNX file", "path", b.path, "nodes", len(kept))
	return &Graph{Nodes: kept, Inputs: inputs, Outputs: outputs}, nil
}

// handleNodeRenaming assigns the final unique node name from the
// per-operator-kind counter. Names depend only on operator kind and
// appearance order, never on file-supplied names.
func (b *graphBuilder) handleNodeRenaming(node *Node) {
	slog.Debug("renaming node", "name", node.Name, "type", node.Type)
	b.nodeNameCounter[node.Type]++
	node.Name = fmt.Sprintf("%s%d", node.Type.lower(), b.nodeNameCounter[node.Type])
}

// handleIdentity elides pass-through Identity nodes. A valueless Identity
// is marked removable and remembered by output name; every other node has
// its input names redirected past previously elided Identities. This must
// run before constant checking and dimension inference so the
// substitutions are visible there.
func (b *graphBuilder) handleIdentity(node *Node, idx int) {
	if node.Type == NodeIdentity && len(node.Inputs) > 0 && node.Inputs[0].Value == nil {
		slog.Debug("found pass-through identity node", "name", node.Name)
		b.identityIdx[node.Outputs[0].Name] = idx
		b.nodesToRemove[idx] = struct{}{}
		return
	}
	for i := range node.Inputs {
		if identIdx, ok := b.identityIdx[node.Inputs[i].Name]; ok {
			node.Inputs[i].Name = b.nodes[identIdx].Inputs[0].Name
		}
	}
}

// checkConstants registers constant producers and lifts their literal
// values into consuming nodes. Only operators in liftConstantTypes
// participate, and only their inputs after the first: the first operand is
// always the primary tensor, never a constant-foldable parameter.
func (b *graphBuilder) checkConstants(node *Node, idx int) error {
	if node.Type == NodeConstant ||
		(node.Type == NodeIdentity && len(node.Inputs) > 0 && node.Inputs[0].Value != nil) {
		b.constantsMap[node.Outputs[0].Name] = idx
		return nil
	}
	if _, ok := liftConstantTypes[node.Type]; !ok {
		return nil
	}
	slog.Debug("checking node for constants", "name", node.Name)
	for i := 1; i < len(node.Inputs); i++ {
		input := &node.Inputs[i]
		constIdx, ok := b.constantsMap[input.Name]
		if !ok {
			continue
		}
		constant := &b.nodes[constIdx]
		slog.Debug("input matched constant node", "input", input.Name, "constant", constant.Name)
		if len(constant.Inputs) > 0 && constant.Inputs[0].Value != nil {
			// The value comes from an Identity input.
			input.Value = constant.Inputs[0].Value
			input.Type = constant.Inputs[0].Type
		} else {
			arg, err := convertConstantValue(constant)
			if err != nil {
				return fmt.Errorf("node %q: %w", constant.Name, err)
			}
			input.Value = arg.Value
			input.Type = arg.Type
		}
		b.nodesToRemove[constIdx] = struct{}{}
	}
	return nil
}

// handleUnsqueeze rewrites an Unsqueeze whose axes input stayed non-literal
// after constant lifting into a Reshape, when its output is a graph
// boundary with a concrete shape. Must run after renaming (the generated
// constant borrows the node name) and after constant lifting (otherwise
// liftable axes would trigger it). A genuine registry error here runs the
// topological diagnostic before propagating.
func (b *graphBuilder) handleUnsqueeze(node *Node, gio *GraphIO) error {
	if node.Type != NodeUnsqueeze || len(node.Inputs) < 2 || node.Inputs[1].Value != nil {
		return nil
	}
	boundary, err := gio.GetNodeOutput(node.Outputs[0].Name)
	if err != nil {
		if verr := b.checkValidity(); verr != nil {
			return verr
		}
		return err
	}
	if boundary != nil {
		remapUnsqueezeToReshape(node, boundary)
	}
	return nil
}

// remapUnsqueezeToReshape rewrites the node in place into a Reshape
// targeting the boundary's concrete shape. The synthesized shape constant
// is deliberately not marked passed so it can be pruned when nothing else
// needs it.
func remapUnsqueezeToReshape(node *Node, boundary *Argument) {
	if boundary.Type.Kind != ArgTensor {
		return
	}
	shape := boundary.Type.Tensor.Shape
	if shape == nil {
		return
	}
	target := make([]int64, len(shape))
	for i, d := range shape {
		target[i] = int64(d)
	}
	shapeArg := Argument{
		Name:  fmt.Sprintf("%s_generated_const", node.Name),
		Type:  TensorArg(ElementInt64, 1, []int{len(target)}),
		Value: &Data{Kind: DataInt64s, I64s: target},
	}
	node.Inputs[1] = shapeArg
	node.Outputs[0] = boundary.Clone()
	node.Type = NodeReshape
	slog.Debug("remapped unsqueeze to reshape", "name", node.Name, "shape", target)
}

// renameIO resolves the node's input names against the registry and
// assigns the final positional output names. Pure initializer references
// resolve to no name: the slot is cleared rather than aliased. Registry
// errors run the topological diagnostic first.
func (b *graphBuilder) renameIO(node *Node, gio *GraphIO) error {
	slog.Debug("resolving io for node", "name", node.Name)
	for i := range node.Inputs {
		input := &node.Inputs[i]
		newName, res, err := gio.GetNewName(input.Name)
		if err != nil {
			if verr := b.checkValidity(); verr != nil {
				return verr
			}
			return err
		}
		switch res {
		case nameResolved:
			input.Passed = true
			input.Name = newName
		case nameCleared:
			input.Name = ""
			input.Passed = false
		case nameUnchanged:
			// Already a final name (identity redirection) or a value the
			// node itself carries (synthesized reshape target).
		}
	}

	if node.Type == NodeConstant || node.Type == NodeIdentity {
		newName := fmt.Sprintf("%s_out1", node.Name)
		gio.Insert(&node.Outputs[0], newName)
		node.Outputs[0].Name = newName
		return nil
	}
	for i := range node.Outputs {
		newName := fmt.Sprintf("%s_out%d", node.Name, i+1)
		if err := gio.UpdateName(&node.Outputs[i], newName); err != nil {
			return err
		}
		node.Outputs[i].Name = newName
	}
	return nil
}

// convertConstantValue extracts the literal value of a bare Constant node
// from its attributes.
func convertConstantValue(node *Node) (Argument, error) {
	for _, key := range constantValueKeys {
		attr, ok := node.Attrs[key]
		if !ok {
			continue
		}
		return argumentFromAttribute(attr), nil
	}
	return Argument{}, ErrConstantNoValue
}

// argumentFromAttribute converts an attribute value into an unnamed
// constant Argument.
func argumentFromAttribute(attr AttributeValue) Argument {
	var arg Argument
	switch attr.Kind {
	case AttrTensor:
		if attr.Tensor != nil {
			arg.Type = TensorArg(attr.Tensor.Elem, len(attr.Tensor.Shape), attr.Tensor.Shape)
			arg.Value = attr.Tensor.Data
		}
	case AttrFloat:
		arg.Type = ArgType{Kind: ArgScalar, Scalar: ElementFloat32}
		arg.Value = &Data{Kind: DataFloat32, F32: attr.F}
	case AttrInt:
		arg.Type = ArgType{Kind: ArgScalar, Scalar: ElementInt64}
		arg.Value = &Data{Kind: DataInt64, I64: attr.I}
	case AttrString:
		arg.Type = ArgType{Kind: ArgScalar, Scalar: ElementString}
		arg.Value = &Data{Kind: DataString, Str: attr.Str}
	case AttrFloats:
		arg.Type = TensorArg(ElementFloat32, 1, []int{len(attr.Floats)})
		arg.Value = &Data{Kind: DataFloat32s, F32s: attr.Floats}
	case AttrInts:
		arg.Type = TensorArg(ElementInt64, 1, []int{len(attr.Ints)})
		arg.Value = &Data{Kind: DataInt64s, I64s: attr.Ints}
	case AttrStrings:
		arg.Type = TensorArg(ElementString, 1, []int{len(attr.Strs)})
		arg.Value = &Data{Kind: DataStrings, Strs: attr.Strs}
	}
	return arg
}

// pruneUnusedBoundaries drops every graph input and output never marked
// passed. Older models declare boundary values no node touches; dropping
// them keeps the generated code clean. The filter is idempotent: it reads
// an already-stable flag.
func pruneUnusedBoundaries(inputs, outputs []Argument) ([]Argument, []Argument) {
	keptIn := make([]Argument, 0, len(inputs))
	for _, in := range inputs {
		if in.Passed {
			keptIn = append(keptIn, in)
		}
	}
	keptOut := make([]Argument, 0, len(outputs))
	for _, out := range outputs {
		if out.Passed {
			keptOut = append(keptOut, out)
		}
	}
	return keptIn, keptOut
}
