// Package queueaccess gives CLI commands one queue interface whether the
// daemon is reachable over IPC or the store must be opened directly.
package queueaccess
