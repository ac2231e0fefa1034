package bpm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ListProcessDefinitions lists deployed process definitions. req may be nil.
func (c *Client) ListProcessDefinitions(ctx context.Context, req *ListProcessDefinitionsRequest) (*DataResponse[ProcessDefinition], error) {
	params, err := ParamsOf(req)
	if err != nil {
		return nil, AsError(err)
	}
	return doJSON[DataResponse[ProcessDefinition]](ctx, c, http.MethodGet, "/repository/process-definitions", params)
}

// ExecuteProcessDefinitionAction suspends or activates a process definition.
func (c *Client) ExecuteProcessDefinitionAction(ctx context.Context, processDefinitionID string, req ProcessDefinitionActionRequest) (*ProcessDefinition, error) {
	return sendJSON[ProcessDefinition](ctx, c, http.MethodPut, "/repository/process-definitions/"+url.PathEscape(processDefinitionID), req)
}

// ListProcessDefinitionIdentityLinks returns the candidate starters of a process definition.
func (c *Client) ListProcessDefinitionIdentityLinks(ctx context.Context, processDefinitionID string) ([]RestIdentityLink, error) {
	links, err := doJSON[[]RestIdentityLink](ctx, c, http.MethodGet, "/repository/process-definitions/"+url.PathEscape(processDefinitionID)+"/identitylinks", nil)
	if err != nil {
		return nil, err
	}
	return *links, nil
}

// ListProcessInstances lists process instances. req may be nil.
func (c *Client) ListProcessInstances(ctx context.Context, req *ListProcessInstancesRequest) (*DataResponse[ProcessInstance], error) {
	params, err := ParamsOf(req)
	if err != nil {
		return nil, AsError(err)
	}
	return doJSON[DataResponse[ProcessInstance]](ctx, c, http.MethodGet, "/runtime/process-instances", params)
}

// QueryProcessInstances queries process instances, including by variable values.
func (c *Client) QueryProcessInstances(ctx context.Context, req ProcessInstanceQueryRequest) (*DataResponse[ProcessInstance], error) {
	return sendJSON[DataResponse[ProcessInstance]](ctx, c, http.MethodPost, "/query/process-instances", req)
}

// StartProcessInstance starts a process instance.
func (c *Client) StartProcessInstance(ctx context.Context, req ProcessInstanceCreateRequest) (*ProcessInstance, error) {
	return sendJSON[ProcessInstance](ctx, c, http.MethodPost, "/runtime/process-instances", req)
}

// QueryTasks queries tasks.
func (c *Client) QueryTasks(ctx context.Context, req TaskQueryRequest) (*DataResponse[Task], error) {
	return sendJSON[DataResponse[Task]](ctx, c, http.MethodPost, "/query/tasks", req)
}

// ExecuteTaskAction completes, claims, delegates or resolves a task.
// The response is returned undecoded; the caller must close its body.
func (c *Client) ExecuteTaskAction(ctx context.Context, taskID string, req TaskActionRequest) (*http.Response, error) {
	return sendRaw(ctx, c, http.MethodPost, "/runtime/tasks/"+url.PathEscape(taskID), req)
}

// UpdateProcessInstanceVariables creates or updates process instance variables.
// The response is returned undecoded; the caller must close its body.
func (c *Client) UpdateProcessInstanceVariables(ctx context.Context, processInstanceID string, variables []RestVariable) (*http.Response, error) {
	return sendRaw(ctx, c, http.MethodPut, "/runtime/process-instances/"+url.PathEscape(processInstanceID)+"/variables", variables)
}

// ListProcessInstanceVariables returns the variables of a process instance.
func (c *Client) ListProcessInstanceVariables(ctx context.Context, processInstanceID string) ([]RestVariable, error) {
	vars, err := doJSON[[]RestVariable](ctx, c, http.MethodGet, "/runtime/process-instances/"+url.PathEscape(processInstanceID)+"/variables", nil)
	if err != nil {
		return nil, err
	}
	return *vars, nil
}

// doJSON sends body through Do and decodes the JSON response into T.
func doJSON[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	res, err := c.Do(ctx, method, path, body, &RequestOptions{HandleAs: HandleAsJSON})
	if err != nil {
		return nil, err
	}

	var out T
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// sendJSON serializes req and decodes the JSON response into T.
func sendJSON[T any](ctx context.Context, c *Client, method, path string, req any) (*T, error) {
	body, err := marshal(req)
	if err != nil {
		return nil, err
	}
	return doJSON[T](ctx, c, method, path, body)
}

// sendRaw serializes req and returns the raw response.
func sendRaw(ctx context.Context, c *Client, method, path string, req any) (*http.Response, error) {
	body, err := marshal(req)
	if err != nil {
		return nil, err
	}

	res, err := c.Do(ctx, method, path, body, nil)
	if err != nil {
		return nil, err
	}
	if res.Response == nil {
		// 204 responses are always read as text
		return &http.Response{
			Status:     fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode)),
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       http.NoBody,
		}, nil
	}
	return res.Response, nil
}

func marshal(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, AsError(fmt.Errorf("encoding request: %w", err))
	}
	return body, nil
}
