// Package mail fetches and normalizes inbound email for task extraction.
//
// The Gmail source shells out to the `gog` CLI so we inherit its OAuth setup
// instead of reimplementing it. Everything downstream works on RawMessage,
// so other sources (or the placeholder set) slot in behind the same interface.
package mail

import (
	"context"
	"time"
)

// RawMessage is one fetched email before normalization.
type RawMessage struct {
	ID      string
	Sender  string
	Subject string
	Date    string
	Body    string
}

// Window bounds a fetch.
type Window struct {
	// After excludes messages received at or before this instant.
	After time.Time
	// MaxResults caps the number of messages returned (0 = source default).
	MaxResults int
}

// Source fetches messages for a time window.
type Source interface {
	Fetch(ctx context.Context, w Window) ([]RawMessage, error)
}

// PlaceholderMessages returns the built-in message set used when the live
// source is unavailable, so a run always produces demonstrable output.
func PlaceholderMessages() []RawMessage {
	return []RawMessage{
		{
			ID:      "placeholder-1",
			Sender:  "alice@example.com",
			Subject: "Project Update",
			Date:    "2025-09-18",
			Body:    "Please review the attached report by Friday.",
		},
		{
			ID:      "placeholder-2",
			Sender:  "bob@example.com",
			Subject: "Team Meeting",
			Date:    "2025-09-18",
			Body:    "Don't forget the team meeting tomorrow at 10am.",
		},
		{
			ID:      "placeholder-3",
			Sender:  "promo@store.com",
			Subject: "Special Offer",
			Date:    "2025-09-18",
			Body:    "This is a promotional offer, ignore.",
		},
	}
}
