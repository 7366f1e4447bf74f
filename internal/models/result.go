package models

import "time"

// JobStatus is the polling-visible status of a job. Exactly three values are
// exposed to clients; "processing" is implicit (pending until terminal).
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ResultRecord is the durable, polling-visible state for a job, keyed by job
// ID. It exists from the moment a job is accepted (seeded as pending) until
// explicitly evicted. Transitions are monotonic: pending -> completed or
// pending -> failed, never back to pending.
type ResultRecord struct {
	JobID      string     `json:"job_id"`
	Domain     string     `json:"domain,omitempty"`
	Status     JobStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempt    int        `json:"attempt,omitempty"`

	// Status-specific payload. Which fields are populated depends on the job
	// kind that produced the record.
	Threshold     int            `json:"threshold,omitempty"`
	Contacts      []Contact      `json:"contacts,omitempty"`
	Verifications []Verification `json:"verifications,omitempty"`
	Draft         string         `json:"draft,omitempty"`
}

// ResultPayload carries the terminal outcome of a successful job into the
// result store. Nil/zero fields leave the corresponding record fields alone.
type ResultPayload struct {
	Contacts      []Contact
	Verifications []Verification
	Draft         string
	Threshold     *int
	Attempt       int
}

// FieldUpdate is the narrow mutation path for a record; pointer fields are
// applied only when set so unrelated fields are never clobbered.
type FieldUpdate struct {
	Threshold *int `json:"threshold,omitempty"`
}

// ApplyPayload copies the populated payload fields onto the record. Nil/zero
// fields leave the record untouched so unrelated state survives the merge.
func (r *ResultRecord) ApplyPayload(p ResultPayload) {
	if p.Contacts != nil {
		r.Contacts = p.Contacts
	}
	if p.Verifications != nil {
		r.Verifications = p.Verifications
	}
	if p.Draft != "" {
		r.Draft = p.Draft
	}
	if p.Threshold != nil {
		r.Threshold = *p.Threshold
	}
	if p.Attempt > 0 {
		r.Attempt = p.Attempt
	}
}

// PendingStub synthesizes a pending record for a job ID with no stored state.
// Polling an unknown ID is treated as "still pending", never as an error, to
// tolerate the seed-vs-poll race.
func PendingStub(jobID string) *ResultRecord {
	return &ResultRecord{
		JobID:     jobID,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
}
