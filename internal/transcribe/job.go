package transcribe

import (
	"fmt"
	"time"
)

// JobState is the lifecycle state of one transcription job.
type JobState string

const (
	// StateSubmitted means the provider accepted the job.
	StateSubmitted JobState = "submitted"
	// StatePolling means the job is being polled for completion.
	StatePolling JobState = "polling"
	// StateCompleted means the job finished and its result was persisted.
	StateCompleted JobState = "completed"
	// StateFailed means a stage failed terminally.
	StateFailed JobState = "failed"
)

// validTransitions lists the allowed state edges.
var validTransitions = map[JobState][]JobState{
	StateSubmitted: {StatePolling, StateFailed},
	StatePolling:   {StateCompleted, StateFailed},
}

// Job tracks one in-flight transcription against the provider.
type Job struct {
	ProviderID  string
	State       JobState
	SubmittedAt time.Time
	LastPollAt  time.Time
}

// transition moves the job to the target state, rejecting invalid edges.
func (j *Job) transition(to JobState) error {
	for _, allowed := range validTransitions[j.State] {
		if allowed == to {
			j.State = to
			return nil
		}
	}
	return fmt.Errorf("transcribe: invalid job transition %s -> %s", j.State, to)
}
