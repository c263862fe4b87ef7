package upstream

import (
	"context"
	"net/url"

	"github.com/okian/pitscout/internal/domain/model"
)

// NexusAuthHeader carries the live-schedule API key.
const NexusAuthHeader = "Nexus-Api-Key"

// Nexus is the typed live-schedule API.
type Nexus struct {
	client *Client
}

// NewNexus wraps client.
func NewNexus(client *Client) *Nexus {
	return &Nexus{client: client}
}

// EventSchedule returns the live queueing schedule of an event.
func (n *Nexus) EventSchedule(ctx context.Context, eventKey string) (*model.NexusSchedule, error) {
	return getJSON(ctx, n.client, "/event/"+url.PathEscape(eventKey), (*model.NexusSchedule).Validate)
}
