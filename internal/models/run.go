package models

// RunStatus buckets the remote service's run states. The provider vocabulary is
// wider (cancelled, expired, ...); terminal states this side cannot recover from
// are folded into RunFailed.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
)

// Run is a snapshot of one asynchronous assistant execution.
type Run struct {
	ID            string
	Status        RunStatus
	ToolCalls     []ToolCall
	FailureReason string
}

// ToolCall is a function-execution request issued by a run paused in
// requires_action.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput pairs a tool call with its result payload. Every pending ToolCall
// must receive exactly one ToolOutput before the run can resume.
type ToolOutput struct {
	ToolCallID string
	Output     string
}
