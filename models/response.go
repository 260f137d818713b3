package models

// SubmitResponse is returned when a job is accepted.
type SubmitResponse struct {
	TaskID  string `json:"task_id"`
	Domain  string `json:"domain"`
	Status  string `json:"status"`
	Proxy   string `json:"proxy,omitempty"`
	Message string `json:"message,omitempty"`
}

// BatchSubmitResponse is returned for a batch submission.
type BatchSubmitResponse struct {
	Message string   `json:"message"`
	TaskIDs []string `json:"task_ids"`
}

// ResultResponse is the lookup payload for GET /api/v1/result/:id.
type ResultResponse struct {
	Task   *Task         `json:"task"`
	Result *ScrapeResult `json:"result,omitempty"`
	Error  *ErrorDetail  `json:"error,omitempty"`
}

// JobListResponse is the payload for GET /api/v1/jobs.
type JobListResponse struct {
	Total int     `json:"total"`
	Jobs  []*Task `json:"jobs"`
}

// QueueResponse is the payload for GET /api/v1/queue.
type QueueResponse struct {
	QueueSize int          `json:"queue_size"`
	Active    int          `json:"active"`
	Queue     []QueueEntry `json:"queue"`
}

// QueueEntry is one pending task in the queue listing.
type QueueEntry struct {
	TaskID   string `json:"task_id"`
	Domain   string `json:"domain"`
	HasProxy bool   `json:"has_proxy"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string         `json:"status"` // "healthy" or "degraded"
	Uptime       string         `json:"uptime"`
	PoolStats    PoolStats      `json:"pool_stats"`
	Scheduler    SchedulerStats `json:"scheduler"`
	NeedsRestart bool           `json:"needs_restart"`
	Version      string         `json:"version"`
}

// ErrorResponse is the generic failure envelope.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
