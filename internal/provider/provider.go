package provider

import "context"

// Message is one rendered notification addressed to a concrete endpoint: an
// email address, a phone number, or a push endpoint with its auth key.
type Message struct {
	Endpoint string
	AuthKey  string
	Subject  string
	Body     string
}

// Sender is the outbound delivery port. One implementation exists per
// delivery method; the dispatcher and worker stay channel-agnostic.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Response, error)
}

// Response stores gateway call metadata for audit and persistence.
type Response struct {
	StatusCode int
	Body       string
	MessageID  string
}
