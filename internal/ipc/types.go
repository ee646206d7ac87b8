package ipc

import "localqueue/internal/api"

// StartRequest resumes claiming and execution.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest pauses claiming and drains running work.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueItem mirrors the HTTP API queue DTO for IPC callers.
type QueueItem = api.QueueItem

// StatusResponse mirrors the HTTP API daemon status payload.
type StatusResponse = api.DaemonStatus

// EnqueueRequest stores a work item through the daemon's queue.
type EnqueueRequest struct {
	WorkType string `json:"work_type"`
	Payload  string `json:"payload"`
}

// EnqueueResponse returns the stored (or already outstanding) item.
type EnqueueResponse struct {
	Item QueueItem `json:"item"`
}

// QueueListRequest filters queue listing by state.
type QueueListRequest struct {
	States []string `json:"states"`
	Limit  int      `json:"limit"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by fingerprint.
type QueueDescribeRequest struct {
	Fingerprint int64 `json:"fingerprint"`
}

// QueueDescribeResponse contains the requested item.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// QueueStatsRequest fetches per-state totals.
type QueueStatsRequest struct{}

// QueueStatsResponse contains zero-filled per-state totals.
type QueueStatsResponse struct {
	Counts map[string]int64 `json:"counts"`
}

// QueueClearItemRequest deletes one item regardless of its state.
type QueueClearItemRequest struct {
	Fingerprint int64 `json:"fingerprint"`
}

// QueueClearItemResponse reports whether a row was deleted.
type QueueClearItemResponse struct {
	Removed bool `json:"removed"`
}

// QueueClearRequest removes every item.
type QueueClearRequest struct{}

// QueueClearResponse returns number of removed items.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}
