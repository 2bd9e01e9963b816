package onnxir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemapNodeType(t *testing.T) {
	kernel := func(dims ...int64) map[string]AttributeValue {
		return map[string]AttributeValue{
			"kernel_shape": {Kind: AttrInts, Ints: dims},
		}
	}

	tests := []struct {
		name string
		node Node
		want NodeType
	}{
		{"spatial bn alias", Node{Type: NodeSpatialBN}, NodeBatchNormalization},
		{"upsample alias", Node{Type: NodeUpsample}, NodeResize},
		{"conv 1d kernel", Node{Type: NodeConv, Attrs: kernel(3)}, NodeConv1d},
		{"conv 2d kernel", Node{Type: NodeConv, Attrs: kernel(3, 3)}, NodeConv2d},
		{"conv no kernel defaults 2d", Node{Type: NodeConv, Attrs: map[string]AttributeValue{}}, NodeConv2d},
		{"maxpool 1d", Node{Type: NodeMaxPool, Attrs: kernel(2)}, NodeMaxPool1d},
		{"maxpool 2d", Node{Type: NodeMaxPool, Attrs: kernel(2, 2)}, NodeMaxPool2d},
		{"averagepool 1d", Node{Type: NodeAveragePool, Attrs: kernel(2)}, NodeAveragePool1d},
		{"averagepool 2d", Node{Type: NodeAveragePool, Attrs: kernel(2, 2)}, NodeAveragePool2d},
		{"unrelated untouched", Node{Type: NodeRelu}, NodeRelu},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remapNodeType(&tt.node)
			assert.Equal(t, tt.want, tt.node.Type)
		})
	}
}
