package model

import "fmt"

const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusError       = "error"
	StatusCancelled   = "cancelled"
)

// Transitions are one-directional; the three terminal states accept nothing.
var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusDownloading: true,
		StatusCancelled:   true,
		// A task whose process never started still ends in error.
		StatusError: true,
	},
	StatusDownloading: {
		StatusCompleted: true,
		StatusError:     true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusError:     {},
	StatusCancelled: {},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionTaskStatus(task *DownloadTask, toStatus string) error {
	from := task.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid task status transition: %q -> %q (task_id=%s)", from, toStatus, task.ID)
	}
	task.Status = toStatus
	return nil
}
