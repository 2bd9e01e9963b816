// Package main provides the Loom graph-import CLI.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/loom-ml/loom/onnxir"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "version":
		fmt.Printf("Loom %s\n", version)
	case "inspect":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: loom inspect <model.onnx>")
			os.Exit(2)
		}
		if err := inspect(os.Args[2]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "ir":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: loom ir <model.onnx>")
			os.Exit(2)
		}
		if err := dumpIR(os.Args[2]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("Loom - ONNX graph importer")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version              Show version")
	fmt.Println("  inspect <model>      Summarize an ONNX model")
	fmt.Println("  ir <model>           Import a model and dump the IR")
}

func inspect(path string) error {
	info, err := onnxir.Info(path)
	if err != nil {
		return err
	}
	fmt.Printf("Graph:    %s\n", info.GraphName)
	fmt.Printf("Producer: %s %s\n", info.ProducerName, info.ProducerVersion)
	fmt.Printf("IR/opset: %d/%d\n", info.IRVersion, info.OpsetVersion)
	fmt.Printf("Inputs:   %v\n", info.InputNames)
	fmt.Printf("Outputs:  %v\n", info.OutputNames)
	fmt.Printf("Nodes:    %d (%d initializers)\n", info.NodeCount, info.InitializerCount)

	ops := make([]string, 0, len(info.OpCounts))
	for op := range info.OpCounts {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		fmt.Printf("  %-24s %d\n", op, info.OpCounts[op])
	}
	return nil
}

func dumpIR(path string) error {
	graph, err := onnxir.ParseFile(path, onnxir.ParseOptions{Validate: true})
	if err != nil {
		return err
	}
	fmt.Printf("inputs:  %d\n", len(graph.Inputs))
	for _, in := range graph.Inputs {
		fmt.Printf("  %s\n", in.Name)
	}
	fmt.Printf("outputs: %d\n", len(graph.Outputs))
	for _, out := range graph.Outputs {
		fmt.Printf("  %s\n", out.Name)
	}
	fmt.Printf("nodes:   %d\n", len(graph.Nodes))
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		fmt.Printf("  %-20s %s", node.Name, node.Type)
		for _, in := range node.Inputs {
			if in.Name != "" {
				fmt.Printf(" <%s", in.Name)
			} else if in.Value != nil {
				fmt.Print(" <const")
			}
		}
		for _, out := range node.Outputs {
			fmt.Printf(" >%s", out.Name)
		}
		fmt.Println()
	}
	return nil
}
