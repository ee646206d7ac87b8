// Package main hosts the localqueue CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon, translates terminal
// invocations into IPC calls against it, and falls back to opening the queue
// store directly when no daemon is listening. It centralizes configuration
// resolution and socket discovery so subcommands can focus on output.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
