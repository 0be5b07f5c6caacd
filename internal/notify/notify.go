// Package notify tells people and browser clients that a daily log was
// synced or failed to sync.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

type Kind string

const (
	KindSynced        Kind = "synced"
	KindSyncFailed    Kind = "sync_failed"
	KindPublishFailed Kind = "publish_failed"
)

// Event describes the outcome of one update cycle.
type Event struct {
	Kind    Kind         `json:"type"`
	Date    worklog.Date `json:"date"`
	Source  string       `json:"source"`
	Path    string       `json:"path,omitempty"`
	Message string       `json:"message,omitempty"`
	Time    time.Time    `json:"time"`
}

// Text is the human readable one-liner used by chat notifiers.
func (e Event) Text() string {
	switch e.Kind {
	case KindSynced:
		return fmt.Sprintf("✅ Work log %s synced (%s)", e.Date, e.Source)
	case KindPublishFailed:
		return fmt.Sprintf("⚠️ Work log %s saved but not pushed: %s", e.Date, e.Message)
	default:
		return fmt.Sprintf("❌ Work log %s sync failed: %s", e.Date, e.Message)
	}
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Multi fans an event out to every notifier. Failures are logged and do not
// stop delivery to the rest.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			logging.For("notify").WithError(err).WithField("type", e.Kind).Warn("notification failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
