// Package mocks provides hand-rolled test doubles for the store
// interfaces and external collaborators. Each mock carries function
// fields to override individual calls plus an in-memory default
// implementation good enough for most tests.
package mocks
