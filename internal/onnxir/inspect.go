package onnxir

import "github.com/loom-ml/loom/internal/onnx"

// ModelInfo summarizes an ONNX model without importing it.
type ModelInfo struct {
	IRVersion        int64
	OpsetVersion     int64
	ProducerName     string
	ProducerVersion  string
	GraphName        string
	InputNames       []string
	OutputNames      []string
	NodeCount        int
	InitializerCount int
	// OpCounts maps operator type to occurrence count.
	OpCounts map[string]int
}

// Info extracts summary information from an ONNX file.
func Info(path string) (*ModelInfo, error) {
	model, err := onnx.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return InfoFromModel(model), nil
}

// InfoFromModel extracts summary information from a parsed model.
func InfoFromModel(model *onnx.ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       model.IRVersion,
		ProducerName:    model.ProducerName,
		ProducerVersion: model.ProducerVersion,
		OpCounts:        make(map[string]int),
	}
	for _, opset := range model.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			info.OpsetVersion = opset.Version
			break
		}
	}
	graph := model.Graph
	if graph == nil {
		return info
	}
	info.GraphName = graph.Name
	info.NodeCount = len(graph.Nodes)
	info.InitializerCount = len(graph.Initializers)

	// Inputs backed by initializers are weights, not real model inputs.
	initNames := make(map[string]bool, len(graph.Initializers))
	for i := range graph.Initializers {
		initNames[graph.Initializers[i].Name] = true
	}
	for i := range graph.Inputs {
		if !initNames[graph.Inputs[i].Name] {
			info.InputNames = append(info.InputNames, graph.Inputs[i].Name)
		}
	}
	for i := range graph.Outputs {
		info.OutputNames = append(info.OutputNames, graph.Outputs[i].Name)
	}
	for i := range graph.Nodes {
		info.OpCounts[graph.Nodes[i].OpType]++
	}
	return info
}
