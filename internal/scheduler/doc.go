// Package scheduler polls the queue and hands PENDING items to the dispatcher
// as capacity allows.
package scheduler
