package models

import "time"

// JobState represents the lifecycle state of a scheduled job.
type JobState string

const (
	// JobStateQueued means the job is waiting for a free worker slot.
	JobStateQueued JobState = "queued"
	// JobStateProcessing means a worker is currently executing the job's task.
	JobStateProcessing JobState = "processing"
	// JobStateRetrying means the task failed and the job was requeued.
	JobStateRetrying JobState = "retrying"
	// JobStateCompleted means the task finished successfully.
	JobStateCompleted JobState = "completed"
	// JobStateFailed means the task failed and attempts are exhausted.
	JobStateFailed JobState = "failed"
)

// IsTerminal reports whether the state is final. Terminal statuses are kept
// for a retention window and then swept.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// JobStatus is the externally observable projection of a scheduled job.
// Progress is 0-100 and never decreases while the job is processing.
// StartedAt marks the latest attempt start; CompletedAt is set once the job
// reaches a terminal state.
type JobStatus struct {
	JobID       string                 `json:"job_id"`
	Status      JobState               `json:"status"`
	Progress    int                    `json:"progress"`
	Attempts    int                    `json:"attempts"`
	LastError   string                 `json:"last_error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to subscribers.
func (s *JobStatus) Clone() JobStatus {
	out := *s
	if s.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
