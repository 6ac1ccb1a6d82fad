// Copyright 2025 The Feedline Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pipeline provides the public API for building and running
// feedline pipelines: declare an operator chain in a Definition, build
// it with New, then drive it with Run or the Start/Next prefetching
// pair.
//
// Example:
//
//	p, err := pipeline.New(pipeline.Definition{
//		BatchSize: 32,
//		Ops: []pipeline.OpSpec{
//			{Op: "record_reader", Args: map[string]any{"path": "train.rec"}},
//			{Op: "make_contiguous"},
//			{Op: "brightness_contrast", Args: map[string]any{"brightness": 1.2}},
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//	out, err := p.Run()
package pipeline

import (
	"github.com/feedline-ml/feedline/internal/ops"
	"github.com/feedline-ml/feedline/internal/pipeline"
)

// Definition declares a pipeline: batch geometry, execution resources
// and the operator chain.
type Definition = pipeline.Definition

// OpSpec describes one operator instance: registered name, arguments
// and optional device placement.
type OpSpec = ops.OpSpec

// Pipeline is a built operator chain ready to run.
type Pipeline = pipeline.Pipeline

// Outputs holds the committed results of one iteration.
type Outputs = pipeline.Outputs

// Stats reports resource usage over the pipeline lifetime.
type Stats = pipeline.Stats

// Error conditions surfaced while building or running pipelines.
var (
	// ErrInvalidConfiguration marks a malformed definition or operator
	// spec; the pipeline fails to build.
	ErrInvalidConfiguration = ops.ErrInvalidConfiguration

	// ErrInvalidInput marks a shape, type or layout violation detected
	// during an iteration; only that iteration is discarded.
	ErrInvalidInput = ops.ErrInvalidInput
)

// New validates def, constructs its operators and returns a runnable
// pipeline.
func New(def Definition) (*Pipeline, error) {
	return pipeline.New(def)
}

// Operators returns the sorted names of all registered operators.
func Operators() []string {
	return ops.Registered()
}
