// Package service exposes the engine's operator-facing operations:
// batch submission, task inspection, manual retry, undo, dispatch
// pause/resume and audited credential reveal. The API layer talks only
// to this package, never to the stores or engine components directly.
package service
