// Package queue defines message payloads exchanged over the message broker.
package queue

import "github.com/iliyamo/parking-spot-reservation/internal/model"

// ExchangeName is the fanout exchange carrying spot status transitions.
// Every connected instance binds its own queue to it, so each one observes
// every transition — including the ones it caused itself.
const ExchangeName = "spot.status"

// SpotChangedEvent is published after every successful spot status
// transition.  Version carries the spot's change counter so consumers can
// drop stale deliveries for the same spot without relying on broker
// ordering across reconnects.
type SpotChangedEvent struct {
    SpotID     string           `json:"spot_id"`
    Label      string           `json:"label"`
    Status     model.SpotStatus `json:"status"`
    Version    uint64           `json:"version"`
    OccurredAt string           `json:"occurred_at"`
}
