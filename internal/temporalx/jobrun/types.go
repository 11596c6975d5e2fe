package jobrun

import "time"

const (
	WorkflowName = "job_run"
	ActivityTick = "job_run_tick"
)

type TickResult struct {
	JobID      string        `json:"job_id"`
	Status     string        `json:"status"`
	Attempts   int           `json:"attempts,omitempty"`
	Message    string        `json:"message,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}
