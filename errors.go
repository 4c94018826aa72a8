package jobstatus

import "errors"

var (
	// ErrNotFound is returned when no record exists for a uuid, or the stored
	// value cannot be decoded.
	ErrNotFound = errors.New("jobstatus: status not found")

	// ErrKilled is the cooperative cancellation signal. Tick, At and Kill
	// return it; job bodies must return it unchanged (or wrapped) so the
	// runner can finalize the job as killed.
	ErrKilled = errors.New("jobstatus: job killed")

	// ErrInvalidTotal is returned by At when total is not positive.
	ErrInvalidTotal = errors.New("jobstatus: total must be greater than 0")

	// ErrUnknownJob is returned when no job is registered under a name.
	ErrUnknownJob = errors.New("jobstatus: unknown job")

	// ErrInvalidStatus is returned when a write would store an unknown status.
	ErrInvalidStatus = errors.New("jobstatus: invalid status")

	// ErrEnqueueRejected is returned when the gateway vetoes an enqueue.
	ErrEnqueueRejected = errors.New("jobstatus: enqueue rejected")
)

// IsKilled reports whether err carries the kill signal.
func IsKilled(err error) bool { return errors.Is(err, ErrKilled) }
