package client

import (
	"context"

	"github.com/handoff-sh/handoff/pkg/apiresponses"
	"github.com/handoff-sh/handoff/pkg/broker"
	"github.com/handoff-sh/handoff/pkg/escalation"
)

// EscalationService wraps the broker's escalation endpoints.
type EscalationService struct {
	client *Client
}

func (c *Client) Escalations() *EscalationService {
	return &EscalationService{client: c}
}

// CreateResult is the broker's acknowledgement of a new escalation.
type CreateResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Create raises a new escalation and returns its assigned ID.
func (e *EscalationService) Create(ctx context.Context, req broker.CreateRequest) (*CreateResult, error) {
	var result CreateResult
	resp, err := e.client.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiresponses.APIError{}).
		Post("/api/escalation/")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPending returns all unresolved escalations, most urgent first.
func (e *EscalationService) ListPending(ctx context.Context) ([]*escalation.Record, error) {
	var records []*escalation.Record
	resp, err := e.client.rest.R().
		SetContext(ctx).
		SetResult(&records).
		SetError(&apiresponses.APIError{}).
		Get("/api/escalation/pending")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return records, nil
}

// Get fetches a single escalation, resolved or pending.
func (e *EscalationService) Get(ctx context.Context, id string) (*escalation.Record, error) {
	var record escalation.Record
	resp, err := e.client.rest.R().
		SetContext(ctx).
		SetResult(&record).
		SetError(&apiresponses.APIError{}).
		Get("/api/escalation/" + id)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &record, nil
}

// Resolve submits the human decision for a pending escalation. A conflict
// error means another operator already resolved it.
func (e *EscalationService) Resolve(ctx context.Context, id, responseText string) (*escalation.Record, error) {
	var record escalation.Record
	resp, err := e.client.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"responseText": responseText}).
		SetResult(&record).
		SetError(&apiresponses.APIError{}).
		Post("/api/escalation/" + id + "/resolve")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete withdraws a pending escalation.
func (e *EscalationService) Delete(ctx context.Context, id string) error {
	resp, err := e.client.rest.R().
		SetContext(ctx).
		SetError(&apiresponses.APIError{}).
		Delete("/api/escalation/" + id)
	return checkResponse(resp, err)
}
