// Package dispatch executes claimed work items.
//
// A Dispatcher owns a Pool of goroutines sized between the configured minimum
// and maximum. Each task marks its item PROCESSING, runs the registered
// Handler with panic recovery, and deletes the item whether the handler
// succeeded or not. There is no retry and no dead-letter store.
//
// Handlers are looked up in a snapshot of the Registry taken by New.
package dispatch
