// Package notify abstracts the sinks a poll cycle pushes grade alerts
// to. every sink hands back an id so the transient "checking" message
// can be dismissed once the cycle finishes.
package notify

import "context"

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// Silent marks housekeeping messages that should not ring the
	// user's device, like the transient progress notification.
	Silent bool `json:"silent"`
}

type Notifier interface {
	Push(ctx context.Context, notification Notification) (id string, err error)
	// Dismiss retracts a previously pushed notification. sinks that
	// cannot retract treat it as a no-op and return nil.
	Dismiss(ctx context.Context, id string) error
}
