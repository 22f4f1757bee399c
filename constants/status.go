package constants

// JobStatus is the canonical status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending JobStatus = "PENDING" // created, analysis in flight
	JobStatusDone    JobStatus = "DONE"    // terminal success
	JobStatusFailed  JobStatus = "FAILED"  // terminal failure
)

// JobStatuses holds the allowed values for the status field in Job.
var JobStatuses = []string{
	string(JobStatusPending),
	string(JobStatusDone),
	string(JobStatusFailed),
}

// Terminal reports whether a status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}
