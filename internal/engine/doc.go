// Package engine is the deletion orchestration core: method selection
// and execution, retry scheduling with exponential backoff, the
// dispatcher's bounded worker pool over an atomically claimed task
// store, inbound confirmation correlation, and retention of completed
// work through its undo window.
package engine
