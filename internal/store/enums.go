package store

// Scheduled Call ENUMs
const (
	CallStatusPending    = "pending"
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
)
