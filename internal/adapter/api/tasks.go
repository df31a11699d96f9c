package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"buildwatch/internal/domain"
)

var _ domain.TaskLauncher = (*Client)(nil)

type executeResponse struct {
	TaskID string `json:"task_id"`
}

// Execute starts a build of projectID with tag and returns the task id. An
// empty tag means domain.DefaultTag.
func (c *Client) Execute(ctx context.Context, projectID, tag string) (string, error) {
	if strings.TrimSpace(projectID) == "" {
		return "", domain.NewDomainError("Client.Execute", domain.ErrInvalidInput, "project id is required")
	}
	if tag == "" {
		tag = domain.DefaultTag
	}

	path := "/tasks/execute/" + url.PathEscape(projectID)
	data, err := c.do(ctx, http.MethodPost, path, url.Values{"tag": {tag}}, nil)
	if err != nil {
		return "", err
	}
	resp, err := decode[executeResponse](http.MethodPost, path, data)
	if err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("POST %s: response has no task_id: %w", path, domain.ErrServer)
	}
	return resp.TaskID, nil
}

// History lists the server-side task runs of projectID.
func (c *Client) History(ctx context.Context, projectID string) ([]domain.TaskRecord, error) {
	path := "/tasks/projects/" + url.PathEscape(projectID) + "/logs"
	data, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]domain.TaskRecord](http.MethodGet, path, data)
}

// LogContent returns the archived log of a finished task.
func (c *Client) LogContent(ctx context.Context, taskID string) (string, error) {
	data, err := c.do(ctx, http.MethodGet, "/tasks/logs/"+url.PathEscape(taskID)+"/content", nil, nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteLog removes one task's log and history entry.
func (c *Client) DeleteLog(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/tasks/logs/"+url.PathEscape(taskID), nil, nil)
	return err
}

// ClearLogs removes every task log and history entry.
func (c *Client) ClearLogs(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/tasks/logs/clear_all", nil, nil)
	return err
}
