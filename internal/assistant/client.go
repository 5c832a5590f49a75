package assistant

import (
	"context"
	"errors"
	"fmt"

	"bookingchat/internal/config"
	"bookingchat/internal/models"

	openai "github.com/sashabaranov/go-openai"
)

const hiddenMetadataKey = "hidden"

// Client drives the remote assistant service: threads, messages, runs and
// tool-output submission. It holds the fixed assistant configuration every run
// executes against.
type Client struct {
	api         *openai.Client
	assistantID string
}

// New builds a client from the assistant section of the app config.
func New(cfg config.AssistantConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("assistant api key required")
	}
	if cfg.AssistantID == "" {
		return nil, errors.New("assistant id required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(clientCfg),
		assistantID: cfg.AssistantID,
	}, nil
}

// CreateThread starts a fresh remote conversation thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

// AddMessage appends a user message to the thread. Hidden messages are tagged
// via metadata so history projection can drop them later.
func (c *Client) AddMessage(ctx context.Context, threadID, text string, hidden bool) error {
	req := openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	}
	if hidden {
		req.Metadata = map[string]any{hiddenMetadataKey: "true"}
	}
	if _, err := c.api.CreateMessage(ctx, threadID, req); err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// StartRun launches a run of the configured assistant on the thread.
func (c *Client) StartRun(ctx context.Context, threadID string) (string, error) {
	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: c.assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

// GetRun fetches the run's current state, bucketing the provider's status
// vocabulary and surfacing pending tool calls when the run paused for action.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*models.Run, error) {
	run, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("retrieve run: %w", err)
	}
	return convertRun(run), nil
}

// SubmitToolOutputs resumes a paused run with one output per pending tool call.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []models.ToolOutput) error {
	req := openai.SubmitToolOutputsRequest{
		ToolOutputs: make([]openai.ToolOutput, 0, len(outputs)),
	}
	for _, out := range outputs {
		req.ToolOutputs = append(req.ToolOutputs, openai.ToolOutput{
			ToolCallID: out.ToolCallID,
			Output:     out.Output,
		})
	}
	if _, err := c.api.SubmitToolOutputs(ctx, threadID, runID, req); err != nil {
		return fmt.Errorf("submit tool outputs: %w", err)
	}
	return nil
}

// ListMessages returns the thread's messages in the provider's default order,
// newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]models.ThreadMessage, error) {
	list, err := c.api.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages := make([]models.ThreadMessage, 0, len(list.Messages))
	for _, msg := range list.Messages {
		messages = append(messages, convertMessage(msg))
	}
	return messages, nil
}

func convertRun(run openai.Run) *models.Run {
	out := &models.Run{ID: run.ID}
	switch run.Status {
	case openai.RunStatusCompleted:
		out.Status = models.RunCompleted
	case openai.RunStatusRequiresAction:
		out.Status = models.RunRequiresAction
		if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
			for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
				out.ToolCalls = append(out.ToolCalls, models.ToolCall{
					ID:        call.ID,
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				})
			}
		}
	case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusIncomplete:
		out.Status = models.RunFailed
		out.FailureReason = string(run.Status)
		if run.LastError != nil && run.LastError.Message != "" {
			out.FailureReason = run.LastError.Message
		}
	case openai.RunStatusQueued:
		out.Status = models.RunQueued
	default:
		out.Status = models.RunInProgress
	}
	return out
}

func convertMessage(msg openai.Message) models.ThreadMessage {
	out := models.ThreadMessage{
		ID:        msg.ID,
		Role:      models.Role(msg.Role),
		CreatedAt: int64(msg.CreatedAt),
	}
	if v, ok := msg.Metadata[hiddenMetadataKey]; ok {
		if flag, ok := v.(string); ok && flag == "true" {
			out.Hidden = true
		}
	}
	for _, part := range msg.Content {
		if part.Text != nil {
			out.Segments = append(out.Segments, part.Text.Value)
		}
	}
	return out
}
