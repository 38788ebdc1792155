// Package testutil contains fluent builders used across tests to construct
// conversation histories and events with little boilerplate. It depends on
// core only, so any package test may import it.
package testutil
