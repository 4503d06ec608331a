package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ConnectionDetails is what the backend hands out for joining a room.
type ConnectionDetails struct {
	ServerURL        string `json:"serverUrl"`
	ParticipantToken string `json:"participantToken"`
	RoomName         string `json:"roomName,omitempty"`
	ParticipantName  string `json:"participantName,omitempty"`
}

type connectionRequest struct {
	ParticipantName string `json:"participantName,omitempty"`
}

// FetchConnectionDetails asks the backend for a server url and participant token.
func (c *Client) FetchConnectionDetails(ctx context.Context) (*ConnectionDetails, error) {
	status, body, err := c.postJSON(ctx, "connection_details", c.connectionURL, connectionRequest{ParticipantName: c.participantName})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch connection details: %w", err)
	}
	if !ok(status) {
		return nil, fmt.Errorf("failed to fetch connection details: %d", status)
	}

	var details ConnectionDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("parse connection details: %w", err)
	}
	if details.ServerURL == "" || details.ParticipantToken == "" {
		return nil, errors.New("connection details missing serverUrl or participantToken")
	}
	return &details, nil
}
