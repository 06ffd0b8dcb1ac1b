package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParseRawMessage decodes a JSON ComputationRequest from a source message. A
// request without an ID takes the message key.
func ParseRawMessage(raw RawMessage) (ComputationRequest, error) {
	var req ComputationRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return ComputationRequest{}, fmt.Errorf("parse request: %w", err)
	}
	if req.ID == "" {
		req.ID = string(raw.Key)
	}
	return req, nil
}

// SerializeResponse encodes a Response for the sink topic. The key is the
// request ID so responses for one request land on one partition.
func SerializeResponse(resp Response) (OutputMessage, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return OutputMessage{}, fmt.Errorf("serialize response: %w", err)
	}
	headers := map[string]string{
		"status":      resp.Status,
		"computed_at": resp.ComputedAt.Format(time.RFC3339),
	}
	if resp.ErrorKind != "" {
		headers["error_kind"] = resp.ErrorKind
	}
	return OutputMessage{
		Key:     []byte(resp.RequestID),
		Value:   data,
		Headers: headers,
	}, nil
}
