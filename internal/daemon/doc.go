// Package daemon coordinates the long-running localqueue process.
//
// It wires configuration, the queue facade, the scheduler, and the dispatcher
// into a single lifecycle with flock-based locking so only one daemon serves
// a data directory. The daemon also exposes the queue maintenance helpers
// used by the IPC server and an optional read-only HTTP status API.
//
// Keep orchestration here: claiming and execution belong to the scheduler
// and dispatch packages, while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
