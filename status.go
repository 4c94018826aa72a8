package jobstatus

// Status represents a job's lifecycle state as recorded in the status store.
// Valid values: queued, working, completed, failed, killed.
// Kept as string so stored records stay readable by external consumers.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusWorking   Status = "working"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusQueued,
	StatusWorking,
	StatusCompleted,
	StatusFailed,
	StatusKilled,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusWorking, StatusCompleted, StatusFailed, StatusKilled:
		return true
	}
	return false
}

// Terminal reports whether s is a sink state. No transition leaves a
// terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusKilled
}

func (s Status) String() string { return string(s) }
