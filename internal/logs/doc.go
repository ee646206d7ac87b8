// Package logs tails the daemon log file for the CLI.
//
// The daemon writes one file per run and repoints localqueue.log at it on
// every start. Tail follows that pointer, so a follow session survives a
// daemon restart and a truncated file is reread from the beginning.
package logs
