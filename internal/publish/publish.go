// Package publish commits written logs to a git repository and pushes them.
package publish

import (
	"context"
	"errors"
)

// ErrPushRejected is returned when the remote kept refusing the push after
// every rebase attempt.
var ErrPushRejected = errors.New("push rejected by remote")

// Request names the files to commit and the commit message.
type Request struct {
	Paths   []string
	Message string
}

// Publisher durably shares a written document.
type Publisher interface {
	Publish(ctx context.Context, req Request) error
}
