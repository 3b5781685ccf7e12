// Package taskrt is a cooperative task runtime for a small number of cores.
//
// It is split into:
//   - Task definitions: name, priority, stack budget and body, fixed at Spawn
//   - Mutable execution state (ExecutionState): per-task status for one Run
//
// Tasks run by priority level, highest first. Every task in a level must
// terminate before any task of the next level starts, so a level can rely on
// everything above it having finished. Within a level, tasks start in lexical
// name order and at most Cores of them hold a core at once.
package taskrt
