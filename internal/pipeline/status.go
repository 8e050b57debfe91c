package pipeline

// State enumerates the orchestrator's local lifecycle states.
type State string

const (
	StateIdle        State = "idle"
	StateGenerating  State = "generating"
	StatePolling     State = "polling"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StateError       State = "error"
)

// Status is the progress projection pushed to callers while a job runs. The
// message is written for direct display; raw exception text only appears as
// a last-resort fallback.
type Status struct {
	State         State  `json:"status"`
	Progress      int    `json:"progress"`
	Message       string `json:"message"`
	OperationName string `json:"operationName,omitempty"`
}

// StatusFunc receives status updates for a single job.
type StatusFunc func(Status)
