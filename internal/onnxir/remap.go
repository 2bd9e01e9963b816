package onnxir

// aliasRemap rewrites operator kinds that were renamed or merged across
// opset versions.
var aliasRemap = map[NodeType]NodeType{
	NodeSpatialBN: NodeBatchNormalization,
	NodeUpsample:  NodeResize,
}

// remapNodeType rewrites legacy operator aliases and splits rank-generic
// operators into their ranked variants based on the kernel_shape
// attribute. It never fails: a node it does not recognize passes through
// unchanged.
func remapNodeType(node *Node) {
	if mapped, ok := aliasRemap[node.Type]; ok {
		node.Type = mapped
		return
	}
	switch node.Type {
	case NodeConv:
		node.Type = rankedVariant(node, NodeConv1d, NodeConv2d)
	case NodeMaxPool:
		node.Type = rankedVariant(node, NodeMaxPool1d, NodeMaxPool2d)
	case NodeAveragePool:
		node.Type = rankedVariant(node, NodeAveragePool1d, NodeAveragePool2d)
	}
}

// rankedVariant picks the 1-D or 2-D variant from the kernel_shape rank.
// A missing kernel_shape means the 2-D variant, the overwhelmingly common
// case in image models.
func rankedVariant(node *Node, oneD, twoD NodeType) NodeType {
	if attr, ok := node.Attrs["kernel_shape"]; ok && len(attr.Ints) == 1 {
		return oneD
	}
	return twoD
}
