package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a work item in a transport-friendly format.
type QueueItem struct {
	Fingerprint    int64  `json:"fingerprint"`
	FingerprintHex string `json:"fingerprintHex"`
	WorkType       string `json:"workType"`
	Payload        string `json:"payload"`
	State          string `json:"state,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running           bool             `json:"running"`
	PID               int              `json:"pid"`
	Driver            string           `json:"driver"`
	DatabaseLocation  string           `json:"databaseLocation"`
	LockFilePath      string           `json:"lockFilePath"`
	SocketPath        string           `json:"socketPath,omitempty"`
	SchedulerRunning  bool             `json:"schedulerRunning"`
	AvailableCapacity int              `json:"availableCapacity"`
	WorkTypes         []string         `json:"workTypes"`
	QueueStats        map[string]int64 `json:"queueStats"`
	LastError         string           `json:"lastError,omitempty"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int64 `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}
