package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookingchat/internal/models"
)

// AssistantClient is everything the chat core needs from the remote assistant
// service. *assistant.Client satisfies it.
type AssistantClient interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, text string, hidden bool) error
	StartRun(ctx context.Context, threadID string) (string, error)
	GetRun(ctx context.Context, threadID, runID string) (*models.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []models.ToolOutput) error
	ListMessages(ctx context.Context, threadID string) ([]models.ThreadMessage, error)
}

// ErrRunTimeout is returned when a run does not reach a terminal state within
// the poll budget.
var ErrRunTimeout = errors.New("assistant run timed out")

// RunFailedError reports a run that terminated unsuccessfully on the remote
// service.
type RunFailedError struct {
	Reason string
}

func (e *RunFailedError) Error() string {
	if e.Reason == "" {
		return "assistant run failed"
	}
	return "assistant run failed: " + e.Reason
}

const noReplyFallback = "No response from assistant"

// PollPolicy bounds how long a turn waits on a run: one GetRun per Interval,
// giving up with ErrRunTimeout once MaxWait of sleeping has accumulated.
type PollPolicy struct {
	Interval time.Duration
	MaxWait  time.Duration
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = time.Second
	}
	if p.MaxWait <= 0 {
		p.MaxWait = 2 * time.Minute
	}
	return p
}

// Orchestrator drives one conversational turn end to end: resolve the thread,
// append the message, start a run, poll it to completion while answering tool
// calls, and read back the reply.
type Orchestrator struct {
	registry *ThreadRegistry
	client   AssistantClient
	tools    *ToolDispatcher
	poll     PollPolicy

	// sleep is swapped out in tests so poll loops run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the turn loop to its collaborators.
func NewOrchestrator(registry *ThreadRegistry, client AssistantClient, tools *ToolDispatcher, poll PollPolicy) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		client:   client,
		tools:    tools,
		poll:     poll.withDefaults(),
		sleep:    sleepContext,
	}
}

// RunTurn appends userText to the session's thread, runs the assistant over it
// and returns the assistant's reply text.
func (o *Orchestrator) RunTurn(ctx context.Context, session SessionKey, userText string, hidden bool) (string, error) {
	threadID, err := o.registry.GetOrCreate(ctx, session)
	if err != nil {
		return "", err
	}
	if err := o.client.AddMessage(ctx, threadID, userText, hidden); err != nil {
		return "", err
	}
	runID, err := o.client.StartRun(ctx, threadID)
	if err != nil {
		return "", err
	}
	return o.awaitRun(ctx, threadID, runID)
}

// awaitRun polls the run until it completes, fails or exhausts the poll
// budget. Runs paused in requires_action are resumed immediately and do not
// consume budget.
func (o *Orchestrator) awaitRun(ctx context.Context, threadID, runID string) (string, error) {
	var waited time.Duration
	for {
		run, err := o.client.GetRun(ctx, threadID, runID)
		if err != nil {
			return "", err
		}
		switch run.Status {
		case models.RunCompleted:
			return o.latestReply(ctx, threadID)
		case models.RunFailed:
			return "", &RunFailedError{Reason: run.FailureReason}
		case models.RunRequiresAction:
			if err := o.answerToolCalls(ctx, threadID, runID, run.ToolCalls); err != nil {
				return "", err
			}
			continue
		}
		if waited >= o.poll.MaxWait {
			return "", ErrRunTimeout
		}
		if err := o.sleep(ctx, o.poll.Interval); err != nil {
			return "", err
		}
		waited += o.poll.Interval
	}
}

// answerToolCalls dispatches every pending call in order and submits all
// outputs in a single request. The provider rejects partial submissions, so
// dispatch failures surface as error payloads instead of short output lists.
func (o *Orchestrator) answerToolCalls(ctx context.Context, threadID, runID string, calls []models.ToolCall) error {
	outputs := make([]models.ToolOutput, 0, len(calls))
	for _, call := range calls {
		outputs = append(outputs, o.tools.Dispatch(ctx, call))
	}
	if err := o.client.SubmitToolOutputs(ctx, threadID, runID, outputs); err != nil {
		return fmt.Errorf("resume run %s: %w", runID, err)
	}
	return nil
}

// latestReply returns the newest assistant message on the thread, or the
// fallback text when the run produced none.
func (o *Orchestrator) latestReply(ctx context.Context, threadID string) (string, error) {
	messages, err := o.client.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}
	// Provider order is newest first.
	for _, msg := range messages {
		if msg.Role == models.RoleAssistant {
			return msg.Text(), nil
		}
	}
	return noReplyFallback, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
