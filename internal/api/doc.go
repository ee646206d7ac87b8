// Package api is the in-process entry point to the queue and the home of the
// transport types shared by the IPC server and the CLI.
//
// # Queue
//
// Queue wraps a queue.Manager for producers. Enqueue either propagates storage
// failures or logs and swallows them, depending on
// queue.exception_on_enqueue_fail. Open builds the whole persistence stack
// (store, fingerprint factory, manager) from a Config, or from defaults when
// none is given.
//
// # Transport Types
//
// QueueItem, QueueListResponse, QueueStatsResponse and DaemonStatus use
// camelCase JSON tags. Fingerprints are carried as numbers and as zero-padded
// hex; timestamps are RFC3339 with milliseconds.
package api
