package models

import "time"

// RunSummary describes one invocation of the engine entry point.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Skipped    bool          `json:"skipped"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Candidates int           `json:"candidates"`
	Eligible   int           `json:"eligible"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Outcomes   []TaskOutcome `json:"outcomes,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// TaskOutcome is the result of a single Task Runner invocation.
type TaskOutcome struct {
	TaskID    uint       `json:"task_id"`
	Status    TaskStatus `json:"status"`
	Listed    int        `json:"listed"`
	Kept      int        `json:"kept"`
	Recorded  int        `json:"recorded"`
	ErrorCode string     `json:"error_code,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string      `json:"status"`
	Uptime  string      `json:"uptime"`
	Running bool        `json:"running"`
	LastRun *RunSummary `json:"last_run,omitempty"`
	Version string      `json:"version"`
}

// CreateTaskRequest is the body of POST /api/v1/tasks.
type CreateTaskRequest struct {
	TaskName     string    `json:"task_name"`
	MerchantID   string    `json:"merchant_id" binding:"required"`
	MinPrice     int       `json:"min_price"`
	MaxPrice     int       `json:"max_price" binding:"required"`
	ScheduleType int       `json:"schedule_type"`
	ProxyURL     string    `json:"proxy_url"`
	Frequency    Frequency `json:"frequency" binding:"required"`
}

// ProxyRequest is the body of PUT /api/v1/proxy.
type ProxyRequest struct {
	ProxyURL string `json:"proxy_url" binding:"required"`
}

// ListResponse wraps collection results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// ErrorResponse wraps a single error detail.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
