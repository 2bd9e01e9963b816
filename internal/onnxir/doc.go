// Package onnxir imports ONNX computation graphs into a statically typed
// intermediate representation suitable for code generation.
//
// The exchange format is loosely specified: nodes reference each other by
// name, optional inputs may be omitted, constants can live in attributes
// or as separate nodes, and operators have been renamed and merged across
// spec versions. The importer reconciles all of that into an IR with
// unique positional names, resolved shape and type information, and no
// dead nodes.
//
// Each raw node passes through a fixed stage sequence in strict file
// order: conversion, operator remapping, coalescing, renaming, identity
// elision, constant lifting, the unsqueeze-to-reshape rewrite, dimension
// inference, and I/O name resolution. The GraphIO registry is mutated as
// each node is processed, so a node's resolution depends on the side
// effects of every node before it; the order of stages and of nodes must
// not change.
//
// The whole import is a single-threaded, synchronous file-to-structure
// transform. It either produces a complete pruned Graph or fails; there is
// no partial result.
package onnxir
