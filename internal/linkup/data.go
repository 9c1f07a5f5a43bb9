package linkup

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/glucolink/internal/common"
)

// Connections lists the CGM accounts shared with the logged-in follower.
// An account following nobody yields common.ErrNoConnections.
func (c *Client) Connections(ctx context.Context, auth AuthContext) ([]Connection, error) {
	var connections []Connection
	if err := c.getJSON(ctx, auth, "/llu/connections", &connections); err != nil {
		return nil, fmt.Errorf("connections: %w", err)
	}
	if len(connections) == 0 {
		return nil, common.ErrNoConnections
	}
	return connections, nil
}

// Graph returns the connection snapshot with its current reading plus
// roughly the last twelve hours of history.
func (c *Client) Graph(ctx context.Context, auth AuthContext, patientID string) (*GraphResponse, error) {
	var graph GraphResponse
	path := fmt.Sprintf("/llu/connections/%s/graph", patientID)
	if err := c.getJSON(ctx, auth, path, &graph); err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	return &graph, nil
}

// Logbook returns the scan and alarm history for a connection.
func (c *Client) Logbook(ctx context.Context, auth AuthContext, patientID string) ([]Measurement, error) {
	var entries []Measurement
	path := fmt.Sprintf("/llu/connections/%s/logbook", patientID)
	if err := c.getJSON(ctx, auth, path, &entries); err != nil {
		return nil, fmt.Errorf("logbook: %w", err)
	}
	return entries, nil
}
