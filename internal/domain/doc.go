// Package domain contains the engine's core entities: deletion tasks,
// batches, confirmation events and audit entries, plus the task state
// machine and the failure taxonomy. Entities validate themselves; all
// persistence and orchestration live in other packages.
package domain
