// Package tracker is the event-source side of an invocation: it reads the
// triggering issue and delivers the outcome back to it.
package tracker

import "context"

// Issue is the part of a tracker item the bot reads
type Issue struct {
	Number int
	Title  string
	// Author is the login of the issue author, without the "@" prefix
	Author string
	State  string
	Labels []string
}

// Tracker is implemented by the GitHub client and by the in-memory recorder
type Tracker interface {
	Issue(ctx context.Context, number int) (*Issue, error)
	Comment(ctx context.Context, number int, body string) error
	// Close closes the issue and attaches labels in one update
	Close(ctx context.Context, number int, labels []string) error
	AddLabels(ctx context.Context, number int, labels []string) error
}
