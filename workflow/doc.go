// Package workflow executes a directed graph of data-processing tasks as a
// single observable activity.
//
// # Overview
//
// An Executor wraps one workflow Definition and is itself an
// activity.Activity producing a WorkflowReport, so it is started, cancelled,
// and observed through an activity.Control like any other unit of work. Each
// node of the graph runs on its own goroutine once every upstream node has
// completed; the outputs of the upstream nodes are fed to the task's input
// slots in declared order via the external Registry.
//
// # Failure policy
//
// A failed node skips its dependent subgraph while disjoint branches keep
// running. Every node's outcome, including skips, is recorded in the
// aggregated report; Run returns an error listing the failed and skipped
// tasks once all runnable branches have finished.
//
// # Variable datasets
//
// A definition may declare placeholder data sources and sinks that are bound
// to concrete datasets per run. CheckVariableDatasets verifies the bindings
// before any task executes and names every uncovered placeholder in one
// error, so a misconfigured run fails fast with no partial side effects.
//
// # Report aggregation
//
// Each task execution gets a nested monitor whose value cell holds the
// task's latest ExecutionReport. The RunContext subscribes every task cell
// and folds updates into the top-level WorkflowReport through the cell's
// atomic Update, which serializes concurrent completions from sibling tasks:
// no task's report can be lost to a concurrent write, and per-task updates
// reach the aggregate in the order the task produced them.
package workflow
