// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing core objects (threads, messages, tool
// call/result parts) and a scripted model for driving deterministic agent
// turns. Not intended for production usage.
package testutil
