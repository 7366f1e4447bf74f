package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewInlineJobID generates a job ID for the synchronous inline-fallback path.
// The prefix makes fallback executions distinguishable in logs and polling.
func NewInlineJobID() string {
	return "inline_" + uuid.New().String()
}
