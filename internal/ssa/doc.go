// Package ssa is the Go front end of tmelide.
//
// The package contains:
//   - Builder: converts an SSA function into a procedure graph of shadow,
//     taint and unmodelable effects
//   - Oracle: intraprocedural alias oracle over identity roots
//   - Bearing: the functions whose calls may emit events, from the static
//     call graph
//   - Analyzer: ties the three together per function
//
// Architecture follows mechanism vs policy separation:
//   - tracer.RootTracer: HOW to follow identity through SSA values (mechanism)
//   - Oracle: WHAT two roots say about aliasing (policy)
package ssa
