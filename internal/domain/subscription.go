package domain

import "time"

// PushSubscription is one device endpoint for push delivery. The dispatcher
// deactivates a subscription when the gateway reports the endpoint gone.
type PushSubscription struct {
	ID        string
	UserID    string
	Endpoint  string
	AuthKey   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
